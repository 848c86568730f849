// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hotswap/cmd/hotswap/cli"
	"github.com/bureau-foundation/hotswap/lib/buildwatch"
)

func buildCommand() *cli.Command {
	var options configOptions
	return &cli.Command{
		Name:    "build",
		Summary: "Build the module once and publish the artifact",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("build", pflag.ContinueOnError)
			options.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			cfg, err := options.load()
			if err != nil {
				return err
			}
			logger, err := cli.NewLogger(os.Stderr, cfg.LogLevel)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			builder, err := newBuilder(cfg, logger.With("command", "build"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			result, err := builder.Build(ctx)
			if err != nil {
				var buildErr *buildwatch.BuildError
				if errors.As(err, &buildErr) {
					os.Stderr.Write(buildErr.Output)
					return &cli.ExitError{Code: 1}
				}
				return err
			}
			fmt.Println(result.Artifact)
			return nil
		},
	}
}
