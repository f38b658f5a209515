// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package kex

import (
	"math/big"
	"testing"

	"github.com/go-test/deep"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// withServer runs f on a new connection served by srv and returns f's error
// once srv is done with the connection.
func withServer(t *testing.T, srv *SRPServer, f func(t Transport) error) error {
	ct, st := tcpPair(t)
	done := make(chan error, 1)
	go func() {
		err := srv.HandleClient(nil, st)
		st.Close()
		done <- err
	}()
	err := f(ct)
	ct.Close()
	if serr := <-done; serr != nil && err == nil {
		t.Fatalf("server: %v", serr)
	}
	return err
}

func srpVariants() []struct {
	name   string
	server func(UserStore) *SRPServer
	client func(username, password []byte) *SRPClient
} {
	return []struct {
		name   string
		server func(UserStore) *SRPServer
		client func(username, password []byte) *SRPClient
	}{
		{"srp", NewSRPServer, NewSRPClient},
		{"srp-simplified", NewSimplifiedSRPServer, NewSimplifiedSRPClient},
	}
}

func TestSRPLogin(t *testing.T) {
	for _, v := range srpVariants() {
		t.Run(v.name, func(t *testing.T) {
			users := NewMemoryUserStore()
			srv := v.server(users)
			client := v.client([]byte("foo"), []byte("baz"))
			require.NoError(t, withServer(t, srv, client.Register))
			require.Equal(t, 1, users.Len())

			rec, ok := users.Lookup([]byte("foo"))
			require.True(t, ok)
			require.Len(t, rec.Salt, SaltSize)
			require.Equal(t, 0, rec.Verifier.Cmp(srv.Params.verifier(rec.Salt, []byte("baz"))))

			login := func(t Transport) error { return client.Login(nil, t) }
			require.NoError(t, withServer(t, srv, login))
			require.NoError(t, withServer(t, srv, login))

			for _, pw := range []string{"", "bar", "baz ", "Baz"} {
				wrong := v.client([]byte("foo"), []byte(pw))
				err := withServer(t, srv, func(t Transport) error { return wrong.Login(nil, t) })
				require.True(t, errors.Is(err, ErrLoginFailed), "password %q: %v", pw, err)
			}
		})
	}
}

func TestSRPUnknownUser(t *testing.T) {
	users := NewMemoryUserStore()
	srv := NewSRPServer(users)
	srv.DisableRegistration = true
	client := NewSRPClient([]byte("nobody"), []byte("baz"))

	login := func(t Transport) error { return client.Login(nil, t) }
	err := withServer(t, srv, login)
	require.True(t, errors.Is(err, ErrLoginFailed), "got %v", err)
	require.Equal(t, 0, users.Len())

	// Repeated attempts see the same salt.
	r1, err := srv.dummyRecord(nil, []byte("nobody"))
	require.NoError(t, err)
	r2, err := srv.dummyRecord(nil, []byte("nobody"))
	require.NoError(t, err)
	if diff := deep.Equal(r1.Salt, r2.Salt); diff != nil {
		t.Fatal(diff)
	}
	require.Equal(t, 0, r1.Verifier.Cmp(r2.Verifier))
	r3, err := srv.dummyRecord(nil, []byte("somebody"))
	require.NoError(t, err)
	require.NotEqual(t, r1.Salt, r3.Salt)

	// The zero key doesn't help for users that don't exist.
	fake := FakeClientWithZeroKey{Username: []byte("nobody")}
	err = withServer(t, srv, fake.Login)
	require.True(t, errors.Is(err, ErrLoginFailed), "got %v", err)
}

func TestSRPUnknownUserRegisters(t *testing.T) {
	users := NewMemoryUserStore()
	srv := NewSRPServer(users)
	client := NewSRPClient([]byte("foo"), []byte("baz"))
	// Logging in as an unknown user starts a registration with A as the
	// password, after which the server closes the connection.
	err := withServer(t, srv, func(t Transport) error { return client.Login(nil, t) })
	require.True(t, errors.Is(err, ErrUnexpectedClose), "got %v", err)
	require.Equal(t, 1, users.Len())
}

func TestSRPZeroKey(t *testing.T) {
	for _, v := range srpVariants() {
		t.Run(v.name, func(t *testing.T) {
			srv := v.server(NewMemoryUserStore())
			client := v.client([]byte("foo"), []byte("a password nobody can guess"))
			require.NoError(t, withServer(t, srv, client.Register))

			fake := FakeClientWithZeroKey{Username: []byte("foo"), Randomizer: srv.Randomizer}
			require.NoError(t, withServer(t, srv, fake.Login))
		})
	}
}

func TestSRPMalformedStatus(t *testing.T) {
	for _, status := range [][]byte{{}, {0, 0}, {2}} {
		ct, st := tcpPair(t)
		go func() {
			st.Receive()
			st.Receive()
			st.Send([]byte("salt"))
			sendInt(st, big.NewInt(2))
			st.Receive()
			st.Send(status)
		}()
		err := NewSRPClient([]byte("foo"), []byte("bar")).Login(nil, ct)
		require.True(t, errors.Is(err, ErrMalformedMessage), "status %v: %v", status, err)
	}
}

func TestSRPServerEarlyClose(t *testing.T) {
	srv := NewSRPServer(NewMemoryUserStore())
	for _, msgs := range [][][]byte{
		nil,
		{[]byte("foo")},
	} {
		ct, st := tcpPair(t)
		for _, m := range msgs {
			require.NoError(t, ct.Send(m))
		}
		require.NoError(t, ct.CloseWrite())
		err := srv.HandleClient(nil, st)
		require.True(t, errors.Is(err, ErrUnexpectedClose), "got %v", err)
	}
}

func TestHashSecret(t *testing.T) {
	salt := []byte("salt")
	m := hashSecret(big.NewInt(0), salt)
	require.Len(t, m, 32)
	require.Equal(t, m, hashSecret(new(big.Int), salt))
	require.NotEqual(t, m, hashSecret(big.NewInt(1), salt))
	require.NotEqual(t, m, hashSecret(big.NewInt(0), []byte("pepper")))
	require.Equal(t, 0, computeX(nil, []byte("pw")).Cmp(hashInt([]byte("pw"))))
}
