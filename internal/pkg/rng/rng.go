// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

// Package rng provides a deterministic random stream. It is meant for tests
// and for reproducible demonstrations of the attacks; it must never be used to
// protect anything.
package rng

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF can't produce more than 255 hash lengths of output per expansion, so
// the stream is a sequence of such expansions with increasing block numbers.
const blockLen = 255 * sha256.Size

type reader struct {
	seed  []byte
	block uint64
	r     io.Reader
	left  int
}

// New returns a reader producing an endless stream of bytes determined by
// seed. Two readers with the same seed produce the same stream.
func New(seed []byte) io.Reader {
	d := &reader{seed: append([]byte{}, seed...)}
	d.next()
	return d
}

func (d *reader) next() {
	var info [8]byte
	binary.BigEndian.PutUint64(info[:], d.block)
	d.block++
	d.r = hkdf.New(sha256.New, d.seed, nil, info[:])
	d.left = blockLen
}

func (d *reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if d.left == 0 {
			d.next()
		}
		k := len(p) - n
		if k > d.left {
			k = d.left
		}
		m, err := io.ReadFull(d.r, p[n:n+k])
		n += m
		d.left -= m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
