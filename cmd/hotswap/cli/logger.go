// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewLogger creates the logger shared by a command invocation. When
// file is a terminal it uses a text handler for human-readable output;
// otherwise a JSON handler, so a supervised child's logs stay
// machine-parseable. level is one of debug, info, warn, error.
func NewLogger(file *os.File, level string) (*slog.Logger, error) {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	options := &slog.HandlerOptions{Level: parsed}
	var handler slog.Handler
	if term.IsTerminal(int(file.Fd())) {
		handler = slog.NewTextHandler(file, options)
	} else {
		handler = slog.NewJSONHandler(file, options)
	}
	return slog.New(handler), nil
}
