// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/frekui/kex"
	"github.com/frekui/kex/internal/pkg/config"
	"github.com/frekui/kex/internal/pkg/util"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%s is a simple demo server for the kex package. It can be used together with cmd/client and cmd/mitm.\nUsage:\n", os.Args[0])
		flag.PrintDefaults()
	}

	cfgPath := flag.String("config", "", "YAML configuration file.")
	flag.String("l", "", "Address to listen on.")
	flag.String("protocol", "", "One of dh, dh-ack, srp and srp-simplified.")
	flag.Bool("no-registration", false, "Don't let unknown SRP users register.")
	flag.String("users", "", "File to load SRP users from and save them to.")
	flag.String("seed", "", "Seed for deterministic randomness.")
	flag.Parse()

	cfg, err := util.LoadConfig(*cfgPath)
	if err == nil {
		err = applyFlags(cfg)
	}
	if err == nil {
		err = util.SetupLogging(cfg.Logging)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config) error {
	flag.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "l":
			cfg.Listen = v
		case "protocol":
			cfg.Protocol = v
		case "no-registration":
			cfg.Registration = v != "true"
		case "users":
			cfg.Users = v
		case "seed":
			cfg.Seed = v
		}
	})
	return cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config) error {
	randr := util.Randomness(cfg.Seed)
	var handler kex.ConnHandler
	var save func() error
	switch cfg.Protocol {
	case "srp", "srp-simplified":
		users, err := loadUsers(cfg.Users)
		if err != nil {
			return err
		}
		server := kex.NewSRPServer(users)
		if cfg.Protocol == "srp-simplified" {
			server = kex.NewSimplifiedSRPServer(users)
		}
		server.DisableRegistration = !cfg.Registration
		handler = func(_ context.Context, t kex.TransportCloser) error {
			return server.HandleClient(randr, t)
		}
		save = func() error { return saveUsers(cfg.Users, users) }
	default:
		variant, err := kex.ParseVariant(cfg.Protocol)
		if err != nil {
			return err
		}
		handler = func(_ context.Context, t kex.TransportCloser) error {
			sess, err := kex.NewSession(randr, t, variant.Server())
			if err != nil {
				return err
			}
			return kex.Echo(sess)
		}
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	sc := kex.ServeConfig{MaxConns: cfg.MaxConns, MaxMessageSize: cfg.MaxMessageSize}
	if err := kex.Serve(ctx, ln, sc, handler); err != nil {
		return err
	}
	if save != nil {
		return save()
	}
	return nil
}

func loadUsers(path string) (*kex.MemoryUserStore, error) {
	if path == "" {
		return kex.NewMemoryUserStore(), nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return kex.NewMemoryUserStore(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	users, err := kex.LoadMemoryUserStore(f)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"function": "loadUsers",
		"path":     path,
		"users":    users.Len(),
	}).Info("Loaded users")
	return users, nil
}

func saveUsers(path string, users *kex.MemoryUserStore) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := users.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
