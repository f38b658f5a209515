// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package kex

import (
	"crypto/hmac"
	"io"
	"math/big"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/frekui/kex/internal/pkg/rng"
)

// SRPServer registers users and authenticates them. It is safe to handle
// several connections concurrently if Users is.
type SRPServer struct {
	Params     SRPParams
	Randomizer Randomizer
	Users      UserStore

	// DisableRegistration makes connections for unknown users run a login
	// that always fails instead of a registration.
	DisableRegistration bool

	dummyOnce sync.Once
	dummyKey  []byte
}

// NewSRPServer returns a server using DefaultSRPParams and HashRandomizer.
func NewSRPServer(users UserStore) *SRPServer {
	return &SRPServer{
		Params:     DefaultSRPParams(),
		Randomizer: HashRandomizer{},
		Users:      users,
	}
}

// NewSimplifiedSRPServer returns a server using SimplifiedSRPParams and
// ExplicitRandomizer.
func NewSimplifiedSRPServer(users UserStore) *SRPServer {
	return &SRPServer{
		Params:     SimplifiedSRPParams(),
		Randomizer: ExplicitRandomizer{},
		Users:      users,
	}
}

// HandleClient serves one connection. The first message is the username. A
// known user is authenticated, an unknown one registered.
//
// A rejected login is not an error.
func (s *SRPServer) HandleClient(randr io.Reader, t Transport) error {
	randr = randOrDefault(randr)
	username, err := receive(t, "username")
	if err != nil {
		return err
	}
	if _, ok := s.Users.Lookup(username); ok || s.DisableRegistration {
		_, err := s.Authenticate(randr, t, username)
		return err
	}
	return s.Register(randr, t, username)
}

// Register receives the password for username and stores a new record,
// replacing any existing one.
func (s *SRPServer) Register(randr io.Reader, t Transport, username []byte) error {
	password, err := receive(t, "password")
	if err != nil {
		return err
	}
	salt, err := generateSalt(randOrDefault(randr))
	if err != nil {
		return err
	}
	s.Users.Store(username, UserRecord{Salt: salt, Verifier: s.Params.verifier(salt, password)})
	logrus.WithFields(logrus.Fields{
		"function": "Register",
		"username": string(username),
	}).Info("User registered")
	return nil
}

// Authenticate runs the server side of a login for username, after the
// username has been received. It reports whether the client proved knowledge
// of the password.
//
// Unknown users get a made up record that is stable across attempts, so the
// exchange looks the same as for a user with another password.
func (s *SRPServer) Authenticate(randr io.Reader, t Transport, username []byte) (bool, error) {
	randr = randOrDefault(randr)
	rec, known := s.Users.Lookup(username)
	if !known {
		var err error
		if rec, err = s.dummyRecord(randr, username); err != nil {
			return false, err
		}
	}

	A, err := receiveInt(t, "A")
	if err != nil {
		return false, err
	}
	N := s.Params.N
	kp, err := generateKeyPair(randr, s.Params.group())
	if err != nil {
		return false, err
	}
	B := new(big.Int).Mul(s.Params.K, rec.Verifier)
	B.Add(B, kp.pub)
	B.Mod(B, N)
	if err := t.Send(rec.Salt); err != nil {
		return false, err
	}
	if err := sendInt(t, B); err != nil {
		return false, err
	}
	u, err := s.Randomizer.ServerU(randr, t, A, B)
	if err != nil {
		return false, err
	}

	S := new(big.Int).Exp(rec.Verifier, u, N)
	S.Mul(S, A)
	S.Mod(S, N)
	S.Exp(S, kp.priv, N)
	expected := hashSecret(S, rec.Salt)

	token, err := receive(t, "token")
	if err != nil {
		return false, err
	}
	ok := known && hmac.Equal(token, expected)
	if err := sendStatus(t, ok); err != nil {
		return false, err
	}

	log := logrus.WithFields(logrus.Fields{
		"function": "Authenticate",
		"username": string(username),
		"A":        short(A),
	})
	if ok {
		log.Info("Login succeeded")
	} else {
		log.Warn("Login failed")
	}
	return ok, nil
}

func (s *SRPServer) dummyRecord(randr io.Reader, username []byte) (UserRecord, error) {
	var err error
	s.dummyOnce.Do(func() {
		s.dummyKey = make([]byte, 32)
		_, err = io.ReadFull(randOrDefault(randr), s.dummyKey)
	})
	if err != nil {
		return UserRecord{}, errors.Wrap(err, "generating dummy key")
	}
	r := rng.New(hmacSum(s.dummyKey, username))
	salt, err := generateSalt(r)
	if err != nil {
		return UserRecord{}, err
	}
	password := make([]byte, 32)
	if _, err := io.ReadFull(r, password); err != nil {
		return UserRecord{}, err
	}
	return UserRecord{Salt: salt, Verifier: s.Params.verifier(salt, password)}, nil
}
