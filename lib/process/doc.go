// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the exit path of the hotswap binary: the one
// place that writes an error to stderr without the structured logger
// and terminates the process.
package process
