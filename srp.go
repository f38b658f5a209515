// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.
//
// This file contains the parts of SRP shared by the client, the server and the
// oracle.
//
// Notation:
//   N: group modulus, g: generator, k: multiplier
//   x = H(salt || password)
//   v = g^x mod N (verifier)
//   A = g^a mod N, B = g^b + k*v mod N
//   S = (B - k*g^x)^(a + u*x) = (A*v^u)^b mod N
//   M = HMAC(H(S), salt)
// where H is SHA-256 and HMAC is HMAC-SHA256.

package kex

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/pkg/errors"

	"github.com/frekui/kex/internal/pkg/dh"
)

// SaltSize is the length of the salts generated at registration.
const SaltSize = 128

// Status byte sent by the server as the last message of a login.
const (
	statusSuccess byte = 0
	statusFailure byte = 1
)

// SRPParams are the group and multiplier used by SRP.
type SRPParams struct {
	N *big.Int
	G *big.Int
	K *big.Int
}

// DefaultSRPParams uses the 1536-bit MODP group with g = 2 and k = 3.
func DefaultSRPParams() SRPParams {
	return SRPParams{N: dh.Rfc3526_1536.P, G: dh.Rfc3526_1536.G, K: big.NewInt(3)}
}

// SimplifiedSRPParams is DefaultSRPParams with k = 0, so that B = g^b doesn't
// depend on the verifier.
func SimplifiedSRPParams() SRPParams {
	p := DefaultSRPParams()
	p.K = big.NewInt(0)
	return p
}

func (p SRPParams) group() dh.Group {
	return dh.Group{G: p.G, P: p.N}
}

func computeX(salt, password []byte) *big.Int {
	return hashInt(salt, password)
}

func (p SRPParams) verifier(salt, password []byte) *big.Int {
	return new(big.Int).Exp(p.G, computeX(salt, password), p.N)
}

// hashSecret returns the token M = HMAC(H(S), salt).
func hashSecret(S *big.Int, salt []byte) []byte {
	h := hasher()
	h.Write(S.Bytes())
	return hmacSum(h.Sum(nil), salt)
}

func generateSalt(randr io.Reader) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(randr, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Randomizer decides how the client and the server obtain the scrambling
// parameter u.
type Randomizer interface {
	// ServerU is run by the server after it has sent B.
	ServerU(randr io.Reader, t Transport, A, B *big.Int) (*big.Int, error)

	// ClientU is run by the client after it has received B.
	ClientU(t Transport, A, B *big.Int) (*big.Int, error)
}

// HashRandomizer computes u = H(A || B) on both sides. Nothing is sent.
type HashRandomizer struct{}

func (HashRandomizer) ServerU(_ io.Reader, _ Transport, A, B *big.Int) (*big.Int, error) {
	return hashInt(A.Bytes(), B.Bytes()), nil
}

func (HashRandomizer) ClientU(_ Transport, A, B *big.Int) (*big.Int, error) {
	return hashInt(A.Bytes(), B.Bytes()), nil
}

// ExplicitRandomizer lets the server pick a random 128-bit u and send it to
// the client.
type ExplicitRandomizer struct{}

var maxU = new(big.Int).Lsh(big.NewInt(1), 128)

func (ExplicitRandomizer) ServerU(randr io.Reader, t Transport, _, _ *big.Int) (*big.Int, error) {
	u, err := rand.Int(randOrDefault(randr), maxU)
	if err != nil {
		return nil, err
	}
	if err := sendInt(t, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (ExplicitRandomizer) ClientU(t Transport, _, _ *big.Int) (*big.Int, error) {
	return receiveInt(t, "u")
}

// readStatus reads the status byte ending a login.
func readStatus(t Transport) (bool, error) {
	msg, err := receive(t, "login status")
	if err != nil {
		return false, err
	}
	if len(msg) != 1 {
		return false, errors.Wrapf(ErrMalformedMessage, "login status has %d bytes", len(msg))
	}
	switch msg[0] {
	case statusSuccess:
		return true, nil
	case statusFailure:
		return false, nil
	}
	return false, errors.Wrapf(ErrMalformedMessage, "unknown login status %d", msg[0])
}

func sendStatus(t Transport, ok bool) error {
	if ok {
		return t.Send([]byte{statusSuccess})
	}
	return t.Send([]byte{statusFailure})
}
