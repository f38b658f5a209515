// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package kex

import (
	"context"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ServeConfig controls Serve.
type ServeConfig struct {
	// MaxConns bounds the number of connections handled at once. Zero means
	// no limit. When the limit is reached no more connections are accepted
	// until a handler returns.
	MaxConns int

	// MaxMessageSize is set as MaxSize on every connection.
	MaxMessageSize uint32
}

// ConnHandler handles one accepted connection. The connection is closed when
// the handler returns. ctx is done when the server shuts down.
type ConnHandler func(ctx context.Context, t TransportCloser) error

// Serve accepts connections on ln and runs h for each of them in its own
// goroutine. Errors returned by h are logged, they don't stop the server.
//
// When ctx is done Serve closes ln and all open connections, waits for the
// handlers to return, and returns nil. Any other accept error is returned.
func Serve(ctx context.Context, ln net.Listener, cfg ServeConfig, h ConnHandler) error {
	var g errgroup.Group
	if cfg.MaxConns > 0 {
		g.SetLimit(cfg.MaxConns)
	}
	var mu sync.Mutex
	conns := make(map[net.Conn]struct{})
	closing := false

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		ln.Close()
		mu.Lock()
		closing = true
		for c := range conns {
			c.Close()
		}
		mu.Unlock()
	}()

	log := logrus.WithFields(logrus.Fields{
		"function": "Serve",
		"addr":     ln.Addr().String(),
	})
	log.Info("Listening")
	var err error
	for {
		var conn net.Conn
		conn, err = ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				err = nil
			} else {
				err = errors.Wrap(err, "accept failed")
			}
			break
		}
		mu.Lock()
		if closing {
			mu.Unlock()
			conn.Close()
			continue
		}
		conns[conn] = struct{}{}
		mu.Unlock()

		g.Go(func() error {
			defer func() {
				mu.Lock()
				delete(conns, conn)
				mu.Unlock()
				conn.Close()
			}()
			serveConn(ctx, conn, cfg, h)
			return nil
		})
	}
	g.Wait()
	log.Info("Stopped listening")
	return err
}

func serveConn(ctx context.Context, conn net.Conn, cfg ServeConfig, h ConnHandler) {
	log := logrus.WithFields(logrus.Fields{
		"function": "serveConn",
		"conn":     uuid.New().String(),
		"remote":   conn.RemoteAddr().String(),
	})
	log.Debug("Accepted connection")
	fc := NewFramedConn(conn)
	fc.MaxSize = cfg.MaxMessageSize
	if err := h(ctx, fc); err != nil {
		log.WithError(err).Warn("Connection failed")
		return
	}
	log.Debug("Connection done")
}
