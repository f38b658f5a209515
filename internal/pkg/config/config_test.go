// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) string {
	path := filepath.Join(t.TempDir(), "kex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen: "127.0.0.1:7000"
protocol: srp-simplified
attack: srp-oracle
max_conns: 4
max_message_size: 65536
registration: false
dictionary: words.txt
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", cfg.Listen)
	require.Equal(t, "srp-simplified", cfg.Protocol)
	require.Equal(t, "srp-oracle", cfg.Attack)
	require.Equal(t, 4, cfg.MaxConns)
	require.Equal(t, uint32(65536), cfg.MaxMessageSize)
	require.False(t, cfg.Registration)
	require.Equal(t, "words.txt", cfg.Dictionary)
	require.Equal(t, "debug", cfg.Logging.Level)

	// Fields missing from the file keep their defaults.
	require.Equal(t, Default().Server, cfg.Server)
	require.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadInvalid(t *testing.T) {
	for _, data := range []string{
		"protocol: rsa\n",
		"attack: guess\n",
		"max_conns: -1\n",
		"logging:\n  level: loud\n",
		"logging:\n  format: xml\n",
		"protocol: [\n",
	} {
		_, err := Load(writeConfig(t, data))
		require.Error(t, err, data)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}
