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

	"github.com/pkg/errors"

	"github.com/frekui/kex"
	"github.com/frekui/kex/internal/pkg/config"
	"github.com/frekui/kex/internal/pkg/util"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%s listens for clients from cmd/client and attacks their connections to cmd/server.\nUsage:\n", os.Args[0])
		flag.PrintDefaults()
	}

	cfgPath := flag.String("config", "", "YAML configuration file.")
	flag.String("l", "", "Address to listen on.")
	flag.String("conn", "", "Address of the real server.")
	flag.String("attack", "", "One of public-key, generator-one, generator-p, generator-p-minus-one and srp-oracle.")
	flag.String("dictionary", "", "Password list used with srp-oracle.")
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
		case "conn":
			cfg.Server = v
		case "attack":
			cfg.Attack = v
		case "dictionary":
			cfg.Dictionary = v
		}
	})
	return cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config) error {
	var handler kex.ConnHandler
	if cfg.Attack == "srp-oracle" {
		if cfg.Dictionary == "" {
			return errors.New("srp-oracle needs a dictionary")
		}
		dictionary, err := util.ReadDictionaryFile(cfg.Dictionary)
		if err != nil {
			return err
		}
		handler = func(ctx context.Context, t kex.TransportCloser) error {
			return crackPassword(ctx, cfg, dictionary, t)
		}
	} else {
		attack, err := kex.ParseAttack(cfg.Attack)
		if err != nil {
			return err
		}
		handler = func(ctx context.Context, t kex.TransportCloser) error {
			return relay(ctx, cfg, attack, t)
		}
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	sc := kex.ServeConfig{MaxConns: cfg.MaxConns, MaxMessageSize: cfg.MaxMessageSize}
	return kex.Serve(ctx, ln, sc, handler)
}

func relay(ctx context.Context, cfg *config.Config, attack kex.MitmHandshake, client kex.TransportCloser) error {
	server, err := kex.Dial(ctx, cfg.Server)
	if err != nil {
		return err
	}
	server.MaxSize = cfg.MaxMessageSize
	defer server.Close()
	sess, err := kex.NewMitmSession(client, server, attack)
	if err != nil {
		return err
	}
	intercepted, err := sess.Relay(ctx)
	if err != nil {
		return err
	}
	for _, m := range intercepted.Client {
		util.Success("client: %q", m)
	}
	for _, m := range intercepted.Server {
		util.Success("server: %q", m)
	}
	if intercepted.Undecryptable > 0 {
		util.Failure("%d messages could not be decrypted", intercepted.Undecryptable)
	}
	return nil
}

// crackPassword captures a login, finds the password and uses it to log in to
// the real server.
func crackPassword(ctx context.Context, cfg *config.Config, dictionary [][]byte, client kex.TransportCloser) error {
	oracle, err := kex.NewSRPMitm().HandleClient(client)
	if err != nil {
		return err
	}
	password, ok := oracle.Crack(dictionary)
	if !ok {
		util.Failure("Password of %s is not in the dictionary", oracle.Username)
		return nil
	}
	util.Success("Password of %s is %q", oracle.Username, password)

	server, err := kex.Dial(ctx, cfg.Server)
	if err != nil {
		return err
	}
	defer server.Close()
	impostor := kex.NewSimplifiedSRPClient(oracle.Username, password)
	if err := impostor.Login(util.Randomness(cfg.Seed), server); err != nil {
		return errors.Wrap(err, "impostor login")
	}
	util.Success("Logged in to %s as %s", cfg.Server, oracle.Username)
	return nil
}
