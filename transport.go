// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package kex

import (
	"context"
	"io"
	"math/big"
	"net"

	"github.com/pkg/errors"

	"github.com/frekui/kex/internal/pkg/frame"
)

// Transport sends and receives discrete messages in order.
//
// Receive returns io.EOF, and nothing else, when the peer closed the
// connection cleanly between two messages.
type Transport interface {
	Send(message []byte) error
	Receive() ([]byte, error)
}

// TransportCloser is a Transport that can be shut down.
type TransportCloser interface {
	Transport
	io.Closer
}

// FramedConn is the length-framed Transport over a byte stream. Each message is
// a 4 byte little-endian length followed by the payload.
type FramedConn = frame.Conn

// NewFramedConn returns a FramedConn over rw.
func NewFramedConn(rw io.ReadWriter) *FramedConn {
	return frame.New(rw)
}

// Dial connects to the TCP address addr and returns a framed connection.
func Dial(ctx context.Context, addr string) (*FramedConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return frame.New(conn), nil
}

// receive reads one message which the protocol requires to be present.
func receive(t Transport, what string) ([]byte, error) {
	msg, err := t.Receive()
	if err == io.EOF {
		return nil, errors.Wrapf(ErrUnexpectedClose, "did not receive %s", what)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "receiving %s", what)
	}
	return msg, nil
}

// receiveInt reads a big-endian unsigned integer.
func receiveInt(t Transport, what string) (*big.Int, error) {
	msg, err := receive(t, what)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(msg), nil
}

func sendInt(t Transport, x *big.Int) error {
	return t.Send(x.Bytes())
}

func sendInts(t Transport, xs ...*big.Int) error {
	for _, x := range xs {
		if err := sendInt(t, x); err != nil {
			return err
		}
	}
	return nil
}
