// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

// Package frame delimits messages on a byte stream. Every message is sent as a
// 4 byte little-endian length followed by exactly that many payload bytes.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// PrefixLen is the length of the length prefix in bytes.
const PrefixLen = 4

// ErrTruncated is returned by Receive if the stream ends inside a length
// prefix or inside a payload.
var ErrTruncated = errors.New("frame: truncated message")

// ErrTooLarge is returned if a message exceeds Conn.MaxSize.
var ErrTooLarge = errors.New("frame: message too large")

// Conn sends and receives framed messages over a duplex byte stream.
//
// Send and Receive may be called concurrently with each other, but neither may
// be called concurrently with itself.
type Conn struct {
	rw io.ReadWriter

	// MaxSize bounds the payload length accepted by Receive and Send. Zero
	// means no limit.
	MaxSize uint32
}

// New returns a Conn reading from and writing to rw.
func New(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw}
}

// Send writes message as a single frame. Both the prefix and the payload are
// handed to the underlying stream in one write; a short write is an error.
func (c *Conn) Send(message []byte) error {
	if uint64(len(message)) > uint64(^uint32(0)) {
		return ErrTooLarge
	}
	if c.MaxSize != 0 && uint32(len(message)) > c.MaxSize {
		return ErrTooLarge
	}
	buf := make([]byte, PrefixLen+len(message))
	binary.LittleEndian.PutUint32(buf, uint32(len(message)))
	copy(buf[PrefixLen:], message)
	n, err := c.rw.Write(buf)
	if err != nil {
		return errors.Wrap(err, "frame: write failed")
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

// Receive blocks until a complete frame has been read and returns its payload.
//
// If the stream ends before the first byte of a new frame, Receive returns
// io.EOF. If it ends anywhere else, Receive returns an error wrapping
// ErrTruncated.
func (c *Conn) Receive() ([]byte, error) {
	var prefix [PrefixLen]byte
	if _, err := io.ReadFull(c.rw, prefix[:]); err != nil {
		return nil, readErr(err, "length prefix")
	}
	length := binary.LittleEndian.Uint32(prefix[:])
	if c.MaxSize != 0 && length > c.MaxSize {
		return nil, errors.Wrapf(ErrTooLarge, "frame: got length %d, limit %d", length, c.MaxSize)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.rw, payload); err != nil {
		if err == io.EOF {
			// The prefix has been consumed, so this is not a clean close.
			err = io.ErrUnexpectedEOF
		}
		return nil, readErr(err, fmt.Sprintf("payload of %d bytes", length))
	}
	return payload, nil
}

func readErr(err error, what string) error {
	switch err {
	case io.EOF:
		return io.EOF
	case io.ErrUnexpectedEOF:
		return errors.Wrapf(ErrTruncated, "frame: stream ended inside %s", what)
	}
	return errors.Wrapf(err, "frame: reading %s", what)
}

// Close closes the underlying stream if it implements io.Closer.
func (c *Conn) Close() error {
	if cl, ok := c.rw.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// CloseWrite half-closes the underlying stream if it supports it (e.g.,
// *net.TCPConn), otherwise it closes the stream.
func (c *Conn) CloseWrite() error {
	if cw, ok := c.rw.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return c.Close()
}
