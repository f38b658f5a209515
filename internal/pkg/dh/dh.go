// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.
//
// This file contains an implementation of Diffie-Hellman key exchange over the
// group Z^*_p for a prime p.

package dh

import (
	"crypto/rand"
	"crypto/sha1"
	"io"
	"math/big"

	"github.com/pkg/errors"
)

// KeySize is the length of keys returned by SecretToKey.
const KeySize = 16

// ErrInvalidGroup is returned by NewGroup for a modulus that can't be used for
// key generation.
var ErrInvalidGroup = errors.New("dh: invalid group parameters")

// Group represents the group Z^*_p.
type Group struct {
	// Group generator.
	G *big.Int

	// Group order.
	P *big.Int
}

// NewGroup returns the group with modulus p and generator g. The generator is
// not validated (several of the attacks depend on that), but p must be larger
// than two so that non-zero private keys exist.
func NewGroup(p, g *big.Int) (Group, error) {
	if p == nil || g == nil || p.Cmp(big.NewInt(2)) <= 0 {
		return Group{}, ErrInvalidGroup
	}
	return Group{G: new(big.Int).Set(g), P: new(big.Int).Set(p)}, nil
}

// Rfc3526_1536 is the 1536-bit MODP Group from RFC 3526 with generator 2.
var Rfc3526_1536 Group

func init() {
	p, ok := new(big.Int).SetString("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA237327FFFFFFFFFFFFFFFF", 16)
	if !ok {
		panic("big.Int SetString failed")
	}
	g := new(big.Int).SetInt64(2)
	Rfc3526_1536 = Group{G: g, P: p}
}

// IsInSmallSubgroup returns true if x belongs to a small subgroup of Z^*_p.
//
// Precondition: p is a safe prime (i.e., p is prime and (p-1)/2 is prime.).
//
// As p is a safe prime there are only three sizes of subgroups: one, two, and,
// (p-1)/2 elements. The subgroups containing one and two elements are
// considered to be small.
func IsInSmallSubgroup(x *big.Int, p *big.Int) bool {
	if x.Cmp(big.NewInt(1)) == 0 {
		return true
	}
	sq := new(big.Int)
	sq.Exp(x, big.NewInt(2), p)
	if sq.Cmp(big.NewInt(1)) == 0 {
		return true
	}

	return false
}

// GeneratePrivateKey returns a uniformly random exponent in [1, p-1] read from
// randr. If randr is nil crypto/rand is used.
func GeneratePrivateKey(randr io.Reader, g Group) (*big.Int, error) {
	if randr == nil {
		randr = rand.Reader
	}
	for {
		key, err := rand.Int(randr, g.P)
		if err != nil {
			return nil, err
		}
		if key.Sign() != 0 {
			return key, nil
		}
	}
}

func GeneratePublicKey(g Group, privKey *big.Int) *big.Int {
	ret := new(big.Int)
	return ret.Exp(g.G, privKey, g.P)
}

// Secret returns otherPubKey^privKey mod p.
func Secret(g Group, privKey *big.Int, otherPubKey *big.Int) *big.Int {
	s := new(big.Int)
	return s.Exp(otherPubKey, privKey, g.P)
}

// SecretToKey hashes a raw Diffie-Hellman secret to a symmetric key: the first
// KeySize bytes of SHA-1 over the big-endian encoding of s.
func SecretToKey(s *big.Int) []byte {
	h := sha1.Sum(s.Bytes())
	return h[:KeySize]
}

// SharedKey is SecretToKey(Secret(g, privKey, otherPubKey)).
func SharedKey(g Group, privKey *big.Int, otherPubKey *big.Int) []byte {
	return SecretToKey(Secret(g, privKey, otherPubKey))
}
