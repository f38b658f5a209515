// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/frekui/kex"
	"github.com/frekui/kex/internal/pkg/config"
	"github.com/frekui/kex/internal/pkg/util"
)

type options struct {
	username, password string
	register, zeroKey  bool
	message            string
	trace              bool
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%s is a simple demo client for the kex package. It can be used together with cmd/server and cmd/mitm.\nUsage:\n", os.Args[0])
		flag.PrintDefaults()
	}

	cfgPath := flag.String("config", "", "YAML configuration file.")
	flag.String("conn", "", "Host to connect to.")
	flag.String("protocol", "", "One of dh, dh-ack, srp and srp-simplified.")
	flag.String("seed", "", "Seed for deterministic randomness.")
	var opts options
	flag.StringVar(&opts.username, "username", "", "SRP username.")
	flag.StringVar(&opts.password, "password", "", "SRP password.")
	flag.BoolVar(&opts.register, "register", false, "Register with the SRP server before logging in.")
	flag.BoolVar(&opts.zeroKey, "zero-key", false, "Log in to the SRP server without the password.")
	flag.StringVar(&opts.message, "message", "This is a test", "Message to send over a DH session.")
	flag.BoolVar(&opts.trace, "trace", false, "Print all messages sent and received.")
	flag.Parse()

	cfg, err := util.LoadConfig(*cfgPath)
	if err == nil {
		err = applyFlags(cfg)
	}
	if err == nil {
		err = util.SetupLogging(cfg.Logging)
	}
	if err == nil {
		err = run(context.Background(), cfg, opts)
	}
	if err != nil {
		util.Failure("%v", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config) error {
	flag.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "conn":
			cfg.Server = v
		case "protocol":
			cfg.Protocol = v
		case "seed":
			cfg.Seed = v
		}
	})
	return cfg.Validate()
}

type conn struct {
	kex.Transport
	io.Closer
}

func dial(ctx context.Context, cfg *config.Config, opts options) (kex.TransportCloser, error) {
	fc, err := kex.Dial(ctx, cfg.Server)
	if err != nil {
		return nil, err
	}
	fc.MaxSize = cfg.MaxMessageSize
	if opts.trace {
		return conn{util.Trace{T: fc}, fc}, nil
	}
	return fc, nil
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	randr := util.Randomness(cfg.Seed)
	switch cfg.Protocol {
	case "srp", "srp-simplified":
		return runSRP(ctx, cfg, opts, randr)
	}
	variant, err := kex.ParseVariant(cfg.Protocol)
	if err != nil {
		return err
	}
	t, err := dial(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer t.Close()
	sess, err := kex.NewSession(randr, t, variant.Client())
	if err != nil {
		return err
	}
	if err := sess.Send([]byte(opts.message)); err != nil {
		return err
	}
	reply, err := sess.Receive()
	if err != nil {
		return err
	}
	util.Success("Server echoed %q", reply)
	return nil
}

func runSRP(ctx context.Context, cfg *config.Config, opts options, randr io.Reader) error {
	if opts.username == "" {
		return errors.New("-username is required")
	}
	client := kex.NewSRPClient([]byte(opts.username), []byte(opts.password))
	var randomizer kex.Randomizer = kex.HashRandomizer{}
	if cfg.Protocol == "srp-simplified" {
		client = kex.NewSimplifiedSRPClient([]byte(opts.username), []byte(opts.password))
		randomizer = kex.ExplicitRandomizer{}
	}

	if opts.register {
		t, err := dial(ctx, cfg, opts)
		if err != nil {
			return err
		}
		err = client.Register(t)
		if err == nil {
			// The server closes the connection once the user is stored.
			if _, err = t.Receive(); err == io.EOF {
				err = nil
			}
		}
		t.Close()
		if err != nil {
			return errors.Wrap(err, "register")
		}
		util.Success("Registered %s", opts.username)
	}

	t, err := dial(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer t.Close()
	if opts.zeroKey {
		fake := kex.FakeClientWithZeroKey{Username: []byte(opts.username), Randomizer: randomizer}
		err = fake.Login(t)
	} else {
		err = client.Login(randr, t)
	}
	if errors.Is(err, kex.ErrLoginFailed) {
		util.Failure("Login as %s rejected", opts.username)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "login")
	}
	util.Success("Logged in as %s", opts.username)
	return nil
}
