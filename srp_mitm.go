// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.
//
// This file contains a fake server for the simplified SRP variant. It answers a
// single login with salt = "", B = g and u = g. The client then computes
//   S = B^(a + u*x) = g^a * g^(g*x) = A * g^(g*x) mod N
// so the token it sends can be checked against candidate passwords offline.

package kex

import (
	"bytes"
	"math/big"

	"github.com/sirupsen/logrus"
)

// SRPMitm poses as a server created by NewSimplifiedSRPServer.
type SRPMitm struct {
	Params SRPParams
}

func NewSRPMitm() *SRPMitm {
	return &SRPMitm{Params: SimplifiedSRPParams()}
}

// HandleClient captures one login attempt. The client is always told that the
// login succeeded.
func (m *SRPMitm) HandleClient(t Transport) (*PasswordOracle, error) {
	username, err := receive(t, "username")
	if err != nil {
		return nil, err
	}
	A, err := receiveInt(t, "A")
	if err != nil {
		return nil, err
	}
	g := m.Params.G
	if err := t.Send(nil); err != nil {
		return nil, err
	}
	if err := sendInts(t, g, g); err != nil {
		return nil, err
	}
	token, err := receive(t, "token")
	if err != nil {
		return nil, err
	}
	if err := sendStatus(t, true); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"function": "HandleClient",
		"username": string(username),
		"A":        short(A),
	}).Info("Captured login")
	return &PasswordOracle{
		Username: username,
		params:   m.Params,
		A:        A,
		token:    token,
	}, nil
}

// PasswordOracle tells whether a candidate is the password used in a captured
// login.
type PasswordOracle struct {
	Username []byte

	params SRPParams
	A      *big.Int
	token  []byte
}

// IsPassword reports whether the captured client used password.
func (o *PasswordOracle) IsPassword(password []byte) bool {
	N := o.params.N
	g := o.params.G
	x := computeX(nil, password)
	e := new(big.Int).Mul(g, x)
	S := new(big.Int).Exp(g, e, N)
	S.Mul(S, o.A)
	S.Mod(S, N)
	return bytes.Equal(hashSecret(S, nil), o.token)
}

// Crack returns the first entry of dictionary that is the password.
func (o *PasswordOracle) Crack(dictionary [][]byte) ([]byte, bool) {
	for i, pw := range dictionary {
		if o.IsPassword(pw) {
			logrus.WithFields(logrus.Fields{
				"function": "Crack",
				"username": string(o.Username),
				"tries":    i + 1,
			}).Info("Password found")
			return pw, true
		}
	}
	return nil, false
}
