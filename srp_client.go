// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package kex

import (
	"io"
	"math/big"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SRPClient registers with and logs in to an SRPServer.
type SRPClient struct {
	Params     SRPParams
	Randomizer Randomizer
	Username   []byte
	Password   []byte
}

// NewSRPClient returns a client for a server created by NewSRPServer.
func NewSRPClient(username, password []byte) *SRPClient {
	return &SRPClient{
		Params:     DefaultSRPParams(),
		Randomizer: HashRandomizer{},
		Username:   username,
		Password:   password,
	}
}

// NewSimplifiedSRPClient returns a client for a server created by
// NewSimplifiedSRPServer.
func NewSimplifiedSRPClient(username, password []byte) *SRPClient {
	return &SRPClient{
		Params:     SimplifiedSRPParams(),
		Randomizer: ExplicitRandomizer{},
		Username:   username,
		Password:   password,
	}
}

// Register sends the username and the password. The server doesn't answer, so
// a nil error only means that both messages were sent.
func (c *SRPClient) Register(t Transport) error {
	if err := t.Send(c.Username); err != nil {
		return err
	}
	return t.Send(c.Password)
}

// Login runs the login protocol. It returns ErrLoginFailed if the server
// rejected the password and another non-nil error if the protocol failed.
func (c *SRPClient) Login(randr io.Reader, t Transport) error {
	if err := t.Send(c.Username); err != nil {
		return err
	}
	g := c.Params.group()
	kp, err := generateKeyPair(randOrDefault(randr), g)
	if err != nil {
		return err
	}
	if err := sendInt(t, kp.pub); err != nil {
		return err
	}
	salt, err := receive(t, "salt")
	if err != nil {
		return err
	}
	B, err := receiveInt(t, "B")
	if err != nil {
		return err
	}
	u, err := c.Randomizer.ClientU(t, kp.pub, B)
	if err != nil {
		return err
	}

	N := c.Params.N
	x := computeX(salt, c.Password)
	base := new(big.Int).Exp(c.Params.G, x, N)
	base.Mul(base, c.Params.K)
	base.Sub(B, base)
	base.Mod(base, N)
	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, kp.priv)
	S := new(big.Int).Exp(base, exp, N)

	if err := t.Send(hashSecret(S, salt)); err != nil {
		return err
	}
	return loginResult(t, c.Username)
}

func loginResult(t Transport, username []byte) error {
	ok, err := readStatus(t)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{
		"function": "Login",
		"username": string(username),
	})
	if !ok {
		log.Warn("Login rejected")
		return errors.WithStack(ErrLoginFailed)
	}
	log.Info("Logged in")
	return nil
}

// FakeClientWithZeroKey logs in as Username without knowing the password. It
// sends A = 0, which makes the server's secret 0 whatever the verifier is.
// Servers that check A mod N != 0 are not fooled.
type FakeClientWithZeroKey struct {
	Username []byte

	// Randomizer must match the server's. Nil means HashRandomizer.
	Randomizer Randomizer
}

func (c FakeClientWithZeroKey) Login(t Transport) error {
	if err := t.Send(c.Username); err != nil {
		return err
	}
	if err := sendInt(t, zero); err != nil {
		return err
	}
	salt, err := receive(t, "salt")
	if err != nil {
		return err
	}
	B, err := receiveInt(t, "B")
	if err != nil {
		return err
	}
	// u doesn't matter, but it has to be read if the server sends it.
	if c.Randomizer != nil {
		if _, err := c.Randomizer.ClientU(t, zero, B); err != nil {
			return err
		}
	}
	if err := t.Send(hashSecret(zero, salt)); err != nil {
		return err
	}
	return loginResult(t, c.Username)
}
