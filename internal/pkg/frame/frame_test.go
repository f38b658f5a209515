// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package frame

import (
	"bytes"
	"io"
	"testing"

	"github.com/go-test/deep"
	"github.com/pkg/errors"
)

type shortWriter struct{}

func (shortWriter) Read(b []byte) (int, error)  { return 0, io.EOF }
func (shortWriter) Write(b []byte) (int, error) { return len(b) / 2, nil }

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	msgs := [][]byte{
		{},
		{0},
		[]byte("This is a test"),
		bytes.Repeat([]byte{0xab}, 70000),
	}
	for _, m := range msgs {
		if err := c.Send(m); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}
	for _, m := range msgs {
		got, err := c.Receive()
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if diff := deep.Equal(got, m); diff != nil {
			t.Fatalf("diff: %v", diff)
		}
	}
	if _, err := c.Receive(); err != io.EOF {
		t.Fatalf("Expected io.EOF after last frame, got %v", err)
	}
}

func TestWireFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf).Send([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	expected := []byte{3, 0, 0, 0, 1, 2, 3}
	if diff := deep.Equal(buf.Bytes(), expected); diff != nil {
		t.Fatalf("diff: %v", diff)
	}
}

func TestTruncated(t *testing.T) {
	for _, tst := range []struct {
		name string
		in   []byte
	}{
		{"inside prefix", []byte{5, 0}},
		{"empty payload", []byte{5, 0, 0, 0}},
		{"inside payload", []byte{5, 0, 0, 0, 1, 2}},
	} {
		_, err := New(bytes.NewBuffer(tst.in)).Receive()
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("%s: expected ErrTruncated, got %v", tst.name, err)
		}
	}
}

func TestCleanClose(t *testing.T) {
	_, err := New(new(bytes.Buffer)).Receive()
	if err != io.EOF {
		t.Fatalf("Expected io.EOF, got %v", err)
	}
}

func TestMaxSize(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)
	c.MaxSize = 4
	if err := c.Send([]byte{1, 2, 3, 4, 5}); err != ErrTooLarge {
		t.Fatalf("Expected ErrTooLarge from Send, got %v", err)
	}

	buf.Write([]byte{5, 0, 0, 0, 1, 2, 3, 4, 5})
	if _, err := c.Receive(); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Expected ErrTooLarge from Receive, got %v", err)
	}
}

func TestShortWrite(t *testing.T) {
	if err := New(shortWriter{}).Send([]byte("hello")); err != io.ErrShortWrite {
		t.Fatalf("Expected io.ErrShortWrite, got %v", err)
	}
}
