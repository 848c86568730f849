// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/bureau-foundation/hotswap/cmd/hotswap/cli"

func root() *cli.Command {
	return &cli.Command{
		Name:    "hotswap",
		Summary: "Run an application with a hot-reloadable Go plugin",
		Description: `hotswap runs an application whose behavior lives in a Go plugin.
A supervised build process rebuilds the plugin when its sources change;
each tick, the running application checks for a fresher build and swaps
it in, carrying registered state across the reload.`,
		Subcommands: []*cli.Command{
			runCommand(),
			watchCommand(),
			buildCommand(),
			statusCommand(),
			versionCommand(),
		},
	}
}
