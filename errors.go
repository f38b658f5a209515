// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package kex

import (
	"github.com/pkg/errors"

	"github.com/frekui/kex/internal/pkg/dh"
	"github.com/frekui/kex/internal/pkg/frame"
	"github.com/frekui/kex/internal/pkg/symenc"
)

var (
	// ErrUnexpectedClose is returned when the peer closed the connection
	// where the protocol requires another message.
	ErrUnexpectedClose = errors.New("peer closed connection")

	// ErrMalformedMessage is returned when a message can't be decoded.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrInvalidParameters is returned when received group parameters can't
	// be used.
	ErrInvalidParameters = dh.ErrInvalidGroup

	// ErrLoginFailed is returned by the SRP clients when the server rejected
	// the login. It is the only error that doesn't indicate a broken
	// connection or protocol violation.
	ErrLoginFailed = errors.New("server rejected login")

	// ErrTruncated is returned when the stream ended inside a message.
	ErrTruncated = frame.ErrTruncated

	// ErrDecrypt is returned by ReceiveEncrypted when a message doesn't
	// decrypt under the session key.
	ErrDecrypt = errors.New("decryption failed")
)

// decryptErr wraps symenc errors so that callers can test for ErrDecrypt
// without importing symenc.
func decryptErr(err error) error {
	switch errors.Cause(err) {
	case symenc.ErrInvalidPadding, symenc.ErrInvalidLength:
		return errors.Wrap(ErrDecrypt, err.Error())
	}
	return err
}
