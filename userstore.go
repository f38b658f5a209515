// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package kex

import (
	"encoding/hex"
	"io"
	"math/big"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// UserRecord is what an SRP server stores for a user. The password itself is
// never stored.
type UserRecord struct {
	Salt     []byte
	Verifier *big.Int
}

// UserStore maps usernames to records. Implementations must be safe for
// concurrent use as an SRPServer handles connections in parallel.
type UserStore interface {
	Lookup(username []byte) (UserRecord, bool)

	// Store inserts or replaces the record for username.
	Store(username []byte, rec UserRecord)
}

// MemoryUserStore is a UserStore kept in memory.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]UserRecord
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]UserRecord)}
}

func (s *MemoryUserStore) Lookup(username []byte) (UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[string(username)]
	return rec, ok
}

func (s *MemoryUserStore) Store(username []byte, rec UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[string(username)] = rec
}

// Len returns the number of users.
func (s *MemoryUserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// encodedUser is the on-disk form of a user. Usernames are arbitrary bytes so
// everything is hex encoded.
type encodedUser struct {
	Username string `yaml:"username"`
	Salt     string `yaml:"salt"`
	Verifier string `yaml:"verifier"`
}

// Save writes all users to w as YAML.
func (s *MemoryUserStore) Save(w io.Writer) error {
	s.mu.RLock()
	users := make([]encodedUser, 0, len(s.users))
	for name, rec := range s.users {
		users = append(users, encodedUser{
			Username: hex.EncodeToString([]byte(name)),
			Salt:     hex.EncodeToString(rec.Salt),
			Verifier: rec.Verifier.Text(16),
		})
	}
	s.mu.RUnlock()
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(users); err != nil {
		return errors.Wrap(err, "encoding users")
	}
	return enc.Close()
}

// LoadMemoryUserStore reads users written by Save.
func LoadMemoryUserStore(r io.Reader) (*MemoryUserStore, error) {
	var users []encodedUser
	if err := yaml.NewDecoder(r).Decode(&users); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decoding users")
	}
	s := NewMemoryUserStore()
	for i, u := range users {
		name, err := hex.DecodeString(u.Username)
		if err != nil {
			return nil, errors.Wrapf(err, "user %d: username", i)
		}
		salt, err := hex.DecodeString(u.Salt)
		if err != nil {
			return nil, errors.Wrapf(err, "user %d: salt", i)
		}
		v, ok := new(big.Int).SetString(u.Verifier, 16)
		if !ok {
			return nil, errors.Errorf("user %d: invalid verifier %q", i, u.Verifier)
		}
		s.Store(name, UserRecord{Salt: salt, Verifier: v})
	}
	return s, nil
}
