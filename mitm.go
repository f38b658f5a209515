// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.
//
// This file contains handshakes for a person-in-the-middle that sits between a
// client and a server running one of the Diffie-Hellman handshakes in
// handshake.go. Each one tampers with the exchanged values so that the
// resulting shared secrets can be computed without knowing any private key.

package kex

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/frekui/kex/internal/pkg/dh"
)

// MitmHandshake runs the handshake with a real client and a real server.
//
// On success it returns the session keys used by the client and by the server.
// A nil key means the value couldn't be predicted for that side.
type MitmHandshake interface {
	Handshake(client, server Transport) (clientKey, serverKey []byte, err error)

	// Variant is the handshake the real client and server must run.
	Variant() Variant
}

// ParseAttack returns the MitmHandshake with the given name. Valid names are
// "public-key", "generator-one", "generator-p" and "generator-p-minus-one".
func ParseAttack(s string) (MitmHandshake, error) {
	switch s {
	case "public-key":
		return FakePublicKey{}, nil
	case "generator-one":
		return FakeGenerator{Mode: GeneratorOne}, nil
	case "generator-p":
		return FakeGenerator{Mode: GeneratorP}, nil
	case "generator-p-minus-one":
		return FakeGenerator{Mode: GeneratorPMinusOne}, nil
	}
	return nil, errors.Errorf("unknown attack %q", s)
}

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
)

// predictSecret computes peer^x mod p for a party that used generator g and
// published own = g^x mod p, without knowing x. It only succeeds for the
// degenerate values the attacks produce.
func predictSecret(p, g, own, peer *big.Int) (*big.Int, bool) {
	peer = new(big.Int).Mod(peer, p)
	pMinusOne := new(big.Int).Sub(p, one)
	switch {
	case peer.Cmp(zero) == 0:
		// Private keys are never zero.
		return big.NewInt(0), true
	case peer.Cmp(one) == 0:
		return big.NewInt(1), true
	case peer.Cmp(pMinusOne) == 0:
		// (-1)^x depends only on the parity of x, which can be read off
		// own if g is -1 as well.
		gm := new(big.Int).Mod(g, p)
		if gm.Cmp(pMinusOne) != 0 || !dh.IsInSmallSubgroup(own, p) {
			return nil, false
		}
		return new(big.Int).Mod(own, p), true
	}
	return nil, false
}

func predictKey(side string, p, g, own, peer *big.Int) []byte {
	s, ok := predictSecret(p, g, own, peer)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "predictKey",
			"side":     side,
			"own_pub":  short(own),
			"peer_pub": short(peer),
		}).Warn("Could not predict shared secret")
		return nil
	}
	return dh.SecretToKey(s)
}

// FakePublicKey attacks ClientDeterminesParameters by replacing both public
// values with p. Both sides then compute p^x mod p = 0.
type FakePublicKey struct{}

func (FakePublicKey) Variant() Variant { return ClientDeterminesParameters }

func (FakePublicKey) Handshake(client, server Transport) ([]byte, []byte, error) {
	g, err := receiveGroup(client)
	if err != nil {
		return nil, nil, errors.Wrap(err, "client")
	}
	if err := sendInts(server, g.P, g.G); err != nil {
		return nil, nil, errors.Wrap(err, "server")
	}
	A, err := receiveInt(client, "A")
	if err != nil {
		return nil, nil, errors.Wrap(err, "client")
	}
	B, err := receiveInt(server, "B")
	if err != nil {
		return nil, nil, errors.Wrap(err, "server")
	}
	if err := sendInt(client, g.P); err != nil {
		return nil, nil, errors.Wrap(err, "client")
	}
	if err := sendInt(server, g.P); err != nil {
		return nil, nil, errors.Wrap(err, "server")
	}
	clientKey := predictKey("client", g.P, g.G, A, g.P)
	serverKey := predictKey("server", g.P, g.G, B, g.P)
	return clientKey, serverKey, nil
}

// GeneratorMode is the generator substituted by FakeGenerator.
type GeneratorMode int

const (
	// GeneratorOne makes every public value, and the secret, 1.
	GeneratorOne GeneratorMode = iota

	// GeneratorP makes every public value, and the secret, 0.
	GeneratorP

	// GeneratorPMinusOne makes every public value 1 or p-1. The secret is 1
	// unless both private keys are odd, in which case it's p-1.
	GeneratorPMinusOne
)

func (m GeneratorMode) generator(p *big.Int) *big.Int {
	switch m {
	case GeneratorP:
		return new(big.Int).Set(p)
	case GeneratorPMinusOne:
		return new(big.Int).Sub(p, one)
	}
	return big.NewInt(1)
}

// FakeGenerator attacks ServerCanOverrideParameters by substituting the
// generator in both directions before any public value is sent.
type FakeGenerator struct {
	Mode GeneratorMode
}

func (FakeGenerator) Variant() Variant { return ServerCanOverrideParameters }

func (f FakeGenerator) Handshake(client, server Transport) ([]byte, []byte, error) {
	proposed, err := receiveGroup(client)
	if err != nil {
		return nil, nil, errors.Wrap(err, "client")
	}
	fake := f.Mode.generator(proposed.P)
	if err := sendInts(server, proposed.P, fake); err != nil {
		return nil, nil, errors.Wrap(err, "server")
	}
	// The server normally echoes p and the fake generator, but it may
	// override them. Whatever it uses is what its key depends on.
	serverGroup, err := receiveGroup(server)
	if err != nil {
		return nil, nil, errors.Wrap(err, "server")
	}
	if err := sendInts(client, proposed.P, fake); err != nil {
		return nil, nil, errors.Wrap(err, "client")
	}
	A, err := receiveInt(client, "A")
	if err != nil {
		return nil, nil, errors.Wrap(err, "client")
	}
	B, err := receiveInt(server, "B")
	if err != nil {
		return nil, nil, errors.Wrap(err, "server")
	}
	if err := sendInt(client, B); err != nil {
		return nil, nil, errors.Wrap(err, "client")
	}
	if err := sendInt(server, A); err != nil {
		return nil, nil, errors.Wrap(err, "server")
	}
	clientKey := predictKey("client", proposed.P, fake, A, B)
	serverKey := predictKey("server", serverGroup.P, serverGroup.G, B, A)
	return clientKey, serverKey, nil
}
