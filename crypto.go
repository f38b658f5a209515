// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package kex

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"math/big"
)

var randr = rand.Reader

// randOrDefault returns r, or crypto/rand if r is nil.
func randOrDefault(r io.Reader) io.Reader {
	if r == nil {
		return randr
	}
	return r
}

// This hash function is used as H in SRP.
func hasher() hash.Hash {
	return sha256.New()
}

// hashInt returns H(data...) interpreted as a big-endian integer.
func hashInt(data ...[]byte) *big.Int {
	h := hasher()
	for _, d := range data {
		h.Write(d)
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

func hmacSum(key, data []byte) []byte {
	mac := hmac.New(hasher, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// short renders a value for logs without dumping it entirely.
func short(x *big.Int) string {
	b := x.Bytes()
	if len(b) > 8 {
		return hex.EncodeToString(b[:8]) + "..."
	}
	return hex.EncodeToString(b)
}
