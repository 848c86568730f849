// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command hotswap runs an application whose behavior lives in a Go
// plugin that is rebuilt and reloaded while the process keeps running.
package main

import (
	"os"

	"github.com/bureau-foundation/hotswap/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Exit(err)
	}
}

func run() error {
	return root().Execute(os.Args[1:])
}
