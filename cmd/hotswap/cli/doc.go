// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the hotswap binary:
// a tree of [Command] values dispatched by the first positional
// argument, pflag-based flag parsing with "did you mean" suggestions
// for mistyped commands and flags, and structured help output.
//
// Commands that want a non-zero exit without an "error:" line return
// an [ExitError]. [NewLogger] builds the slog logger every command
// shares.
package cli
