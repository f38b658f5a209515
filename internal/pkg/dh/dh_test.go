// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package dh

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/go-test/deep"

	"github.com/frekui/kex/internal/pkg/rng"
)

func TestDh(t *testing.T) {
	dhGroup := Rfc3526_1536
	privA, err := GeneratePrivateKey(nil, dhGroup)
	if err != nil {
		panic(err)
	}
	pubA := GeneratePublicKey(dhGroup, privA)

	privB, err := GeneratePrivateKey(nil, dhGroup)
	if err != nil {
		panic(err)
	}
	pubB := GeneratePublicKey(dhGroup, privB)

	sharedA := SharedKey(dhGroup, privA, pubB)
	sharedB := SharedKey(dhGroup, privB, pubA)
	if !bytes.Equal(sharedA, sharedB) {
		t.Fatalf("sharedA != sharedB")
	}
	if len(sharedA) != KeySize {
		t.Fatalf("len(sharedA) = %d", len(sharedA))
	}
}

func TestDhSmallGroups(t *testing.T) {
	r := rng.New([]byte("small groups"))
	for _, tst := range []struct{ p, g int64 }{{37, 5}, {23, 5}, {11, 2}} {
		group, err := NewGroup(big.NewInt(tst.p), big.NewInt(tst.g))
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 20; i++ {
			a, err := GeneratePrivateKey(r, group)
			if err != nil {
				t.Fatal(err)
			}
			b, err := GeneratePrivateKey(r, group)
			if err != nil {
				t.Fatal(err)
			}
			if a.Sign() <= 0 || a.Cmp(group.P) >= 0 {
				t.Fatalf("private key %v out of range", a)
			}
			sA := Secret(group, a, GeneratePublicKey(group, b))
			sB := Secret(group, b, GeneratePublicKey(group, a))
			if diff := deep.Equal(sA.Bytes(), sB.Bytes()); diff != nil {
				t.Fatalf("p=%d g=%d diff: %v", tst.p, tst.g, diff)
			}
		}
	}
}

func TestDeterministicKeys(t *testing.T) {
	a1, err := GeneratePrivateKey(rng.New([]byte("x")), Rfc3526_1536)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := GeneratePrivateKey(rng.New([]byte("x")), Rfc3526_1536)
	if err != nil {
		t.Fatal(err)
	}
	if a1.Cmp(a2) != 0 {
		t.Fatalf("same seed gave different keys")
	}
}

func TestNewGroup(t *testing.T) {
	for _, tst := range []struct {
		p        int64
		expected error
	}{
		{-5, ErrInvalidGroup},
		{0, ErrInvalidGroup},
		{1, ErrInvalidGroup},
		{2, ErrInvalidGroup},
		{3, nil},
		{37, nil},
	} {
		_, err := NewGroup(big.NewInt(tst.p), big.NewInt(2))
		if err != tst.expected {
			t.Fatalf("p=%d got %v", tst.p, err)
		}
	}
	if _, err := NewGroup(nil, big.NewInt(2)); err != ErrInvalidGroup {
		t.Fatalf("nil p accepted")
	}
}

func TestSecretToKey(t *testing.T) {
	// The key for the secret zero is what the fake public key attack
	// predicts, so it must not depend on anything but the value.
	k0 := SecretToKey(big.NewInt(0))
	if diff := deep.Equal(k0, SecretToKey(new(big.Int))); diff != nil {
		t.Fatalf("diff: %v", diff)
	}
	if bytes.Equal(k0, SecretToKey(big.NewInt(1))) {
		t.Fatalf("keys for 0 and 1 coincide")
	}
}

// isSafePrime returns true if x is probably a safe prime (i.e., p is prime and
// (p-1)/2 is prime.).
func isSafePrime(x *big.Int) bool {
	if !x.ProbablyPrime(100) {
		return false
	}
	q := new(big.Int)
	q.Sub(x, big.NewInt(1))
	q.Div(q, big.NewInt(2))
	return q.ProbablyPrime(100)
}

func TestIsSafePrime(t *testing.T) {
	// List from https://oeis.org/A005385
	for _, x := range []int64{5, 7, 11, 23, 47, 59, 83, 107, 167, 179, 227, 263, 347, 359, 383, 467, 479, 503, 563, 587, 719, 839, 863, 887, 983, 1019} {
		if !isSafePrime(big.NewInt(x)) {
			t.Fatalf("%v is safe but isSafePrime returned false", x)
		}
	}
	for _, x := range []int64{17, 37} {
		if isSafePrime(big.NewInt(x)) {
			t.Fatalf("%v is not safe but isSafePrime returned true", x)
		}
	}

	if !isSafePrime(Rfc3526_1536.P) {
		t.Fatalf("Rfc3526_1536.P is not safe")
	}
	if Rfc3526_1536.P.BitLen() != 1536 {
		t.Fatalf("Rfc3526_1536.P has %d bits", Rfc3526_1536.P.BitLen())
	}
}

func TestIsInSmallSubgroup(t *testing.T) {
	for _, x := range []int64{2, 3, 4, 5, 6, 7, 8, 9} {
		if IsInSmallSubgroup(big.NewInt(x), big.NewInt(11)) {
			t.Fatalf("%v unexpectedly in small subgroup", x)
		}
	}
	for _, x := range []int64{1, 10} {
		if !IsInSmallSubgroup(big.NewInt(x), big.NewInt(11)) {
			t.Fatalf("%v unexpectedly not in small subgroup", x)
		}
	}
}
