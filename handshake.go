// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.
//
// This file contains the Diffie-Hellman handshakes run over a Transport before
// a Session starts.

package kex

import (
	"io"
	"math/big"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/frekui/kex/internal/pkg/dh"
)

// Handshake agrees on a session key with the peer on the other end of t. All
// randomness is read from randr.
type Handshake interface {
	Handshake(randr io.Reader, t Transport) (key []byte, err error)
}

// Variant selects a matching pair of client and server handshakes.
type Variant int

const (
	// ClientDeterminesParameters: the client sends p, g and A, the server
	// answers with B.
	ClientDeterminesParameters Variant = iota

	// ServerCanOverrideParameters: the client proposes p and g, the server
	// echoes the parameters it wants to use, then A and B are exchanged.
	ServerCanOverrideParameters
)

var variantNames = map[Variant]string{
	ClientDeterminesParameters:  "dh",
	ServerCanOverrideParameters: "dh-ack",
}

func (v Variant) String() string {
	if s, ok := variantNames[v]; ok {
		return s
	}
	return "unknown"
}

// ParseVariant is the inverse of Variant.String.
func ParseVariant(s string) (Variant, error) {
	for v, name := range variantNames {
		if name == s {
			return v, nil
		}
	}
	return 0, errors.Errorf("unknown handshake variant %q", s)
}

// Client returns the client side of v using the default group.
func (v Variant) Client() Handshake {
	if v == ServerCanOverrideParameters {
		return ClientHandshakeAck{}
	}
	return ClientHandshake{}
}

// Server returns the server side of v.
func (v Variant) Server() Handshake {
	if v == ServerCanOverrideParameters {
		return ServerHandshakeAck{}
	}
	return ServerHandshake{}
}

func groupOrDefault(g dh.Group) dh.Group {
	if g.P == nil || g.G == nil {
		return dh.Rfc3526_1536
	}
	return g
}

// receiveGroup reads p and g.
func receiveGroup(t Transport) (dh.Group, error) {
	p, err := receiveInt(t, "p")
	if err != nil {
		return dh.Group{}, err
	}
	g, err := receiveInt(t, "g")
	if err != nil {
		return dh.Group{}, err
	}
	group, err := dh.NewGroup(p, g)
	if err != nil {
		return dh.Group{}, errors.Wrapf(err, "p has %d bits", p.BitLen())
	}
	return group, nil
}

type keyPair struct {
	priv, pub *big.Int
}

func generateKeyPair(randr io.Reader, g dh.Group) (keyPair, error) {
	priv, err := dh.GeneratePrivateKey(randr, g)
	if err != nil {
		return keyPair{}, err
	}
	return keyPair{priv: priv, pub: dh.GeneratePublicKey(g, priv)}, nil
}

func logHandshake(function string, g dh.Group, own, peer *big.Int) {
	logrus.WithFields(logrus.Fields{
		"function": function,
		"p_bits":   g.P.BitLen(),
		"g":        short(g.G),
		"own_pub":  short(own),
		"peer_pub": short(peer),
	}).Debug("Handshake completed")
}

// ClientHandshake is the client side of ClientDeterminesParameters.
type ClientHandshake struct {
	// Group to propose. The zero value means dh.Rfc3526_1536.
	Group dh.Group
}

func (h ClientHandshake) Handshake(randr io.Reader, t Transport) ([]byte, error) {
	g := groupOrDefault(h.Group)
	if err := sendInts(t, g.P, g.G); err != nil {
		return nil, err
	}
	kp, err := generateKeyPair(randr, g)
	if err != nil {
		return nil, err
	}
	if err := sendInt(t, kp.pub); err != nil {
		return nil, err
	}
	B, err := receiveInt(t, "B")
	if err != nil {
		return nil, err
	}
	logHandshake("ClientHandshake", g, kp.pub, B)
	return dh.SharedKey(g, kp.priv, B), nil
}

// ServerHandshake is the server side of ClientDeterminesParameters. It uses
// whatever parameters the client sends.
type ServerHandshake struct{}

func (ServerHandshake) Handshake(randr io.Reader, t Transport) ([]byte, error) {
	g, err := receiveGroup(t)
	if err != nil {
		return nil, err
	}
	kp, err := generateKeyPair(randr, g)
	if err != nil {
		return nil, err
	}
	if err := sendInt(t, kp.pub); err != nil {
		return nil, err
	}
	A, err := receiveInt(t, "A")
	if err != nil {
		return nil, err
	}
	logHandshake("ServerHandshake", g, kp.pub, A)
	return dh.SharedKey(g, kp.priv, A), nil
}

// ClientHandshakeAck is the client side of ServerCanOverrideParameters. It
// proposes Group but adopts whatever the server echoes.
type ClientHandshakeAck struct {
	// Group to propose. The zero value means dh.Rfc3526_1536.
	Group dh.Group
}

func (h ClientHandshakeAck) Handshake(randr io.Reader, t Transport) ([]byte, error) {
	proposed := groupOrDefault(h.Group)
	if err := sendInts(t, proposed.P, proposed.G); err != nil {
		return nil, err
	}
	g, err := receiveGroup(t)
	if err != nil {
		return nil, err
	}
	kp, err := generateKeyPair(randr, g)
	if err != nil {
		return nil, err
	}
	if err := sendInt(t, kp.pub); err != nil {
		return nil, err
	}
	B, err := receiveInt(t, "B")
	if err != nil {
		return nil, err
	}
	logHandshake("ClientHandshakeAck", g, kp.pub, B)
	return dh.SharedKey(g, kp.priv, B), nil
}

// ServerHandshakeAck is the server side of ServerCanOverrideParameters.
type ServerHandshakeAck struct {
	// Override, if set, is echoed instead of the client's proposal.
	Override *dh.Group
}

func (h ServerHandshakeAck) Handshake(randr io.Reader, t Transport) ([]byte, error) {
	g, err := receiveGroup(t)
	if err != nil {
		return nil, err
	}
	if h.Override != nil {
		g = *h.Override
	}
	if err := sendInts(t, g.P, g.G); err != nil {
		return nil, err
	}
	kp, err := generateKeyPair(randr, g)
	if err != nil {
		return nil, err
	}
	if err := sendInt(t, kp.pub); err != nil {
		return nil, err
	}
	A, err := receiveInt(t, "A")
	if err != nil {
		return nil, err
	}
	logHandshake("ServerHandshakeAck", g, kp.pub, A)
	return dh.SharedKey(g, kp.priv, A), nil
}
