// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package kex

import (
	"bytes"
	"crypto/aes"
	"io"
	"testing"

	"github.com/go-test/deep"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/frekui/kex/internal/pkg/symenc"
)

// sessionPair creates a client and a server session running v.
func sessionPair(t *testing.T, v Variant) (*Session, *Session) {
	ct, st := tcpPair(t)
	type result struct {
		s   *Session
		err error
	}
	done := make(chan result)
	go func() {
		s, err := NewSession(nil, st, v.Server())
		done <- result{s, err}
	}()
	client, err := NewSession(nil, ct, v.Client())
	require.NoError(t, err)
	res := <-done
	require.NoError(t, res.err)
	return client, res.s
}

func TestSession(t *testing.T) {
	for _, v := range []Variant{ClientDeterminesParameters, ServerCanOverrideParameters} {
		client, server := sessionPair(t, v)
		require.NoError(t, client.Send([]byte("This is a test")))
		msg, err := server.Receive()
		require.NoError(t, err)
		if diff := deep.Equal(msg, []byte("This is a test")); diff != nil {
			t.Fatalf("%v: %v", v, diff)
		}

		require.NoError(t, server.Send([]byte("reply")))
		msg, err = client.Receive()
		require.NoError(t, err)
		require.Equal(t, []byte("reply"), msg)

		require.NoError(t, client.Close())
		_, err = server.Receive()
		require.Equal(t, io.EOF, err)
	}
}

func TestEcho(t *testing.T) {
	client, server := sessionPair(t, ClientDeterminesParameters)
	done := make(chan error)
	go func() {
		done <- Echo(server)
	}()
	messages := [][]byte{
		[]byte("This is a test"),
		{},
		bytes.Repeat([]byte{'a'}, aes.BlockSize),
		bytes.Repeat([]byte{0}, 1000),
	}
	for _, m := range messages {
		require.NoError(t, client.Send(m))
		reply, err := client.Receive()
		require.NoError(t, err)
		require.True(t, bytes.Equal(m, reply), "sent %x got %x", m, reply)
	}
	require.NoError(t, client.Close())
	require.NoError(t, <-done)
}

func TestEncryptedWireFormat(t *testing.T) {
	a, b := tcpPair(t)
	key := bytes.Repeat([]byte{7}, symenc.KeySize)
	require.NoError(t, SendEncrypted(nil, a, key, []byte("This is a test")))
	msg, err := b.Receive()
	require.NoError(t, err)
	// One block of ciphertext followed by the IV.
	require.Len(t, msg, 2*aes.BlockSize)
	pt, err := symenc.Decrypt(key, msg)
	require.NoError(t, err)
	require.Equal(t, []byte("This is a test"), pt)
}

func TestReceiveEncryptedErrors(t *testing.T) {
	a, b := tcpPair(t)
	key := bytes.Repeat([]byte{7}, symenc.KeySize)

	// Not a whole number of blocks.
	require.NoError(t, a.Send(make([]byte, aes.BlockSize+1)))
	_, err := ReceiveEncrypted(b, key)
	require.True(t, errors.Is(err, ErrDecrypt), "got %v", err)

	// A block that decrypts to all zeros under a zero IV, which is not valid
	// padding.
	c, err := aes.NewCipher(key)
	require.NoError(t, err)
	ct := make([]byte, 2*aes.BlockSize)
	c.Encrypt(ct[:aes.BlockSize], make([]byte, aes.BlockSize))
	require.NoError(t, a.Send(ct))
	_, err = ReceiveEncrypted(b, key)
	require.True(t, errors.Is(err, ErrDecrypt), "got %v", err)

	require.NoError(t, a.Close())
	_, err = ReceiveEncrypted(b, key)
	require.Equal(t, io.EOF, err)
}

type failingHandshake struct{}

func (failingHandshake) Handshake(io.Reader, Transport) ([]byte, error) {
	return nil, ErrUnexpectedClose
}

func TestNewSessionHandshakeError(t *testing.T) {
	a, _ := tcpPair(t)
	_, err := NewSession(nil, a, failingHandshake{})
	require.True(t, errors.Is(err, ErrUnexpectedClose))
	require.Contains(t, err.Error(), "handshake failed")
}
