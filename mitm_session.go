// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package kex

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Intercepted holds what a MitmSession could read while relaying.
type Intercepted struct {
	// Client and Server are the decrypted messages sent by the client and
	// by the server, in order.
	Client [][]byte
	Server [][]byte

	// Undecryptable is the number of relayed messages that didn't decrypt
	// under the predicted key.
	Undecryptable int
}

// MitmSession relays messages between a client and a server after a
// MitmHandshake, decrypting a copy of everything it forwards.
type MitmSession struct {
	client, server       TransportCloser
	clientKey, serverKey []byte
}

// NewMitmSession runs m against client and server. Both real parties must use
// the handshake variant given by m.Variant().
func NewMitmSession(client, server TransportCloser, m MitmHandshake) (*MitmSession, error) {
	clientKey, serverKey, err := m.Handshake(client, server)
	if err != nil {
		return nil, errors.Wrap(err, "mitm handshake failed")
	}
	logrus.WithFields(logrus.Fields{
		"function":   "NewMitmSession",
		"client_key": clientKey != nil,
		"server_key": serverKey != nil,
	}).Info("Handshake intercepted")
	return &MitmSession{
		client:    client,
		server:    server,
		clientKey: clientKey,
		serverKey: serverKey,
	}, nil
}

var errRelayDone = errors.New("relay done")

// Relay forwards messages unmodified in both directions until one side closes
// its connection cleanly. Then both connections are closed and the decrypted
// messages are returned. Relay also stops, with ctx.Err(), if ctx is done.
func (s *MitmSession) Relay(ctx context.Context) (*Intercepted, error) {
	g, gctx := errgroup.WithContext(ctx)
	var fromClient, fromServer pumpResult
	g.Go(func() error {
		return pump("client", s.client, s.server, s.clientKey, &fromClient)
	})
	g.Go(func() error {
		return pump("server", s.server, s.client, s.serverKey, &fromServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.client.Close()
		s.server.Close()
		return nil
	})
	err := g.Wait()
	if err == errRelayDone {
		err = nil
	} else if ctx.Err() != nil {
		err = ctx.Err()
	}
	ret := &Intercepted{
		Client:        fromClient.plaintexts,
		Server:        fromServer.plaintexts,
		Undecryptable: fromClient.undecryptable + fromServer.undecryptable,
	}
	return ret, err
}

type pumpResult struct {
	plaintexts    [][]byte
	undecryptable int
}

// pump forwards messages from src to dst. It returns errRelayDone when src is
// closed cleanly.
func pump(side string, src, dst Transport, key []byte, res *pumpResult) error {
	log := logrus.WithFields(logrus.Fields{
		"function": "pump",
		"from":     side,
	})
	for {
		msg, err := src.Receive()
		if err == io.EOF {
			log.Debug("Connection closed")
			return errRelayDone
		}
		if err != nil {
			return errors.Wrapf(err, "receiving from %s", side)
		}
		if err := dst.Send(msg); err != nil {
			return errors.Wrapf(err, "forwarding from %s", side)
		}
		if key == nil {
			continue
		}
		plaintext, err := decrypt(key, msg)
		if err != nil {
			res.undecryptable++
			log.WithError(err).Warn("Could not decrypt relayed message")
			continue
		}
		log.WithField("len", len(plaintext)).Debug("Decrypted relayed message")
		res.plaintexts = append(res.plaintexts, plaintext)
	}
}
