// Copyright (c) 2018 Fredrik Kuivinen, frekui@gmail.com
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

// Package util contains functions to simplify the server, client and
// mitm in cmd/.
package util

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/frekui/kex/internal/pkg/config"
	"github.com/frekui/kex/internal/pkg/rng"
)

// SetupLogging configures the standard logrus logger.
func SetupLogging(s config.LoggingSettings) error {
	level, err := logrus.ParseLevel(s.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if s.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetOutput(os.Stderr)
	return nil
}

// LoadConfig loads the file at path, or returns config.Default() if path is
// empty.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// Randomness returns a deterministic reader if seed is non-empty, otherwise
// nil (i.e., crypto/rand). The reader may be shared between goroutines.
func Randomness(seed string) io.Reader {
	if seed == "" {
		return nil
	}
	return &lockedReader{r: rng.New([]byte(seed))}
}

type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Read(p)
}

// ReadDictionary reads one password per line. Empty lines are skipped.
func ReadDictionary(r io.Reader) ([][]byte, error) {
	var words [][]byte
	s := bufio.NewScanner(r)
	for s.Scan() {
		w := bytes.TrimRight(s.Bytes(), "\r")
		if len(w) == 0 {
			continue
		}
		words = append(words, append([]byte(nil), w...))
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "reading dictionary")
	}
	return words, nil
}

// ReadDictionaryFile is ReadDictionary on the file at path.
func ReadDictionaryFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDictionary(f)
}

// Transport is the subset of kex.Transport needed by Trace.
type Transport interface {
	Send(message []byte) error
	Receive() ([]byte, error)
}

// Trace prints every message sent and received on t to Out.
type Trace struct {
	T   Transport
	Out io.Writer
}

func (tr Trace) out() io.Writer {
	if tr.Out == nil {
		return color.Output
	}
	return tr.Out
}

func (tr Trace) Send(data []byte) error {
	color.New(color.FgCyan).Fprintf(tr.out(), "> %s\n", printable(data))
	return tr.T.Send(data)
}

func (tr Trace) Receive() ([]byte, error) {
	data, err := tr.T.Receive()
	if err != nil {
		return nil, err
	}
	color.New(color.FgYellow).Fprintf(tr.out(), "< %s\n", printable(data))
	return data, nil
}

// printable returns data as text if it is printable ASCII, otherwise as hex.
// Long binary messages are cut short.
func printable(data []byte) string {
	for _, b := range data {
		if b < 0x20 || b > 0x7e {
			if len(data) > maxHex {
				return hex.EncodeToString(data[:maxHex]) + "..."
			}
			return hex.EncodeToString(data)
		}
	}
	return string(data)
}

const maxHex = 32

// Success prints a result line in green.
func Success(format string, a ...interface{}) {
	color.Green("[+] "+format, a...)
}

// Failure prints a result line in red.
func Failure(format string, a ...interface{}) {
	color.Red("[-] "+format, a...)
}
