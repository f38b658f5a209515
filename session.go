// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package kex

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/frekui/kex/internal/pkg/symenc"
)

// SendEncrypted encrypts plaintext under key with a fresh IV from randr and
// sends ciphertext || IV as one message.
func SendEncrypted(randr io.Reader, t Transport, key, plaintext []byte) error {
	msg, err := symenc.Encrypt(randOrDefault(randr), key, plaintext)
	if err != nil {
		return err
	}
	return t.Send(msg)
}

// ReceiveEncrypted receives one message and decrypts it under key. A message
// that doesn't decrypt results in an error wrapping ErrDecrypt. If the peer
// closed the connection io.EOF is returned.
func ReceiveEncrypted(t Transport, key []byte) ([]byte, error) {
	msg, err := t.Receive()
	if err != nil {
		return nil, err
	}
	return decrypt(key, msg)
}

func decrypt(key, msg []byte) ([]byte, error) {
	plaintext, err := symenc.Decrypt(key, msg)
	if err != nil {
		return nil, decryptErr(err)
	}
	return plaintext, nil
}

// Session is an encrypted Transport. The key is agreed on once, when the
// session is created, and never changes.
type Session struct {
	t     Transport
	key   []byte
	randr io.Reader
}

// NewSession runs h over t and returns a session using the resulting key. IVs
// and the handshake's ephemeral keys are read from randr; if randr is nil
// crypto/rand is used.
func NewSession(randr io.Reader, t Transport, h Handshake) (*Session, error) {
	randr = randOrDefault(randr)
	key, err := h.Handshake(randr, t)
	if err != nil {
		return nil, errors.Wrap(err, "handshake failed")
	}
	return &Session{t: t, key: key, randr: randr}, nil
}

// Send encrypts and sends message.
func (s *Session) Send(message []byte) error {
	return SendEncrypted(s.randr, s.t, s.key, message)
}

// Receive receives and decrypts one message. It returns io.EOF if the peer
// closed the connection.
func (s *Session) Receive() ([]byte, error) {
	return ReceiveEncrypted(s.t, s.key)
}

// Close closes the underlying transport if it can be closed.
func (s *Session) Close() error {
	if c, ok := s.t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Echo sends every message received on t back until the peer closes the
// connection.
func Echo(t Transport) error {
	n := 0
	for {
		msg, err := t.Receive()
		if err == io.EOF {
			logrus.WithFields(logrus.Fields{
				"function": "Echo",
				"messages": n,
			}).Debug("Peer closed connection")
			return nil
		}
		if err != nil {
			return err
		}
		if err := t.Send(msg); err != nil {
			return err
		}
		n++
	}
}
