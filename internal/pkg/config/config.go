// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

// Package config loads the YAML configuration shared by the commands in cmd/.
package config

import (
	"os"
	"slices"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Protocols and attacks accepted in the configuration.
var (
	Protocols = []string{"dh", "dh-ack", "srp", "srp-simplified"}
	Attacks   = []string{"public-key", "generator-one", "generator-p", "generator-p-minus-one", "srp-oracle"}
)

// Config is the configuration of the server, client and mitm commands. Each
// command only looks at the fields it needs.
type Config struct {
	// Listen is the address the server and the mitm listen on.
	Listen string `yaml:"listen"`

	// Server is the address the client and the mitm connect to.
	Server string `yaml:"server"`

	Protocol string `yaml:"protocol"`
	Attack   string `yaml:"attack"`

	// MaxMessageSize limits received messages. Zero means no limit.
	MaxMessageSize uint32 `yaml:"max_message_size"`

	// MaxConns limits concurrent connections. Zero means no limit.
	MaxConns int `yaml:"max_conns"`

	// Registration allows unknown users to register with the SRP server.
	Registration bool `yaml:"registration"`

	// Users is a file the SRP server loads its users from and saves them to
	// on shutdown. Empty means users are only kept in memory.
	Users string `yaml:"users"`

	// Dictionary is a file with one candidate password per line.
	Dictionary string `yaml:"dictionary"`

	// Seed, if set, makes all randomness deterministic.
	Seed string `yaml:"seed"`

	Logging LoggingSettings `yaml:"logging"`
}

// LoggingSettings configures logrus.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:       "localhost:9999",
		Server:       "localhost:9999",
		Protocol:     "dh",
		Attack:       "generator-one",
		Registration: true,
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

// Validate checks that all enumerated fields have known values.
func (c *Config) Validate() error {
	if !slices.Contains(Protocols, c.Protocol) {
		return errors.Errorf("protocol must be one of %v, got %q", Protocols, c.Protocol)
	}
	if !slices.Contains(Attacks, c.Attack) {
		return errors.Errorf("attack must be one of %v, got %q", Attacks, c.Attack)
	}
	if c.MaxConns < 0 {
		return errors.Errorf("max_conns must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return errors.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
