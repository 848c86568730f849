// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/bureau-foundation/hotswap/cmd/hotswap/cli"
	"github.com/bureau-foundation/hotswap/lib/version"
)

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Description: `Print the hotswap version, Go toolchain and platform. A plugin can
only be loaded by a host built with the same toolchain, so compare
these when a module refuses to load.`,
		Run: func(args []string) error {
			return version.Print(os.Stdout)
		},
	}
}
