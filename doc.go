// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

/*
Package kex contains Diffie-Hellman and SRP key exchanges over a message based
transport, together with a number of active attacks against them.

All protocols run over a Transport, which sends and receives whole messages.
FramedConn implements Transport on top of a byte stream (e.g., a TCP
connection) by prefixing every message with its length as a 4 byte
little-endian integer. Integers are sent as big-endian byte strings without
leading zeros.

A Session is created by running a Handshake (see Variant for the two
Diffie-Hellman handshakes). After that every message is encrypted with
AES-128-CBC under the agreed key; the random IV is sent after the ciphertext.

The DH attacks implement MitmHandshake. NewMitmSession runs one of them between
a real client and a real server and MitmSession.Relay then forwards all
messages while decrypting them with the predicted keys.

SRPClient and SRPServer implement SRP [1] using SHA-256. The simplified variant
(NewSimplifiedSRPClient, NewSimplifiedSRPServer) uses k = 0 and lets the server
pick u. FakeClientWithZeroKey logs in to an SRPServer without knowing the
password, and SRPMitm turns one login attempt by a simplified client into a
PasswordOracle for an offline dictionary attack.

Functions that need randomness take an io.Reader as their first argument. If
it's nil crypto/rand is used. internal/pkg/rng provides a deterministic reader
for tests.

IMPORTANT NOTE: This code has been written for educational purposes only. The
protocols are deliberately weak. Do not use it for anything important.

[1] T. Wu, "The SRP Authentication and Key Exchange System", RFC 2945.
*/
package kex
