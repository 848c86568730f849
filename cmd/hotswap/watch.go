// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hotswap/cmd/hotswap/cli"
	"github.com/bureau-foundation/hotswap/lib/buildwatch"
	"github.com/bureau-foundation/hotswap/lib/config"
)

func watchCommand() *cli.Command {
	var options configOptions
	return &cli.Command{
		Name:    "watch",
		Summary: "Rebuild the module whenever its sources change",
		Description: `Build the module once, then watch the source tree and rebuild after
every burst of changes. Each successful build is renamed over the
artifact atomically; a failed build leaves the previous artifact in
place. This is the process "hotswap run --build" supervises.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
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
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchSources(ctx, cfg, logger.With("command", "watch"))
		},
	}
}

func watchSources(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	builder, err := newBuilder(cfg, logger)
	if err != nil {
		return err
	}

	ignore := []string{cfg.BuildOutputDirectory}
	if cfg.StateDirectory != "" {
		ignore = append(ignore, cfg.StateDirectory)
	}
	watcher, err := buildwatch.NewWatcher(buildwatch.WatcherOptions{
		Root:   cfg.WatchDirectory,
		Ignore: ignore,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	logger.Info("watching", "directory", cfg.WatchDirectory, "artifact", cfg.ArtifactPath())
	return buildwatch.Watch(ctx, watcher.Changes(), builder, nil)
}

func newBuilder(cfg *config.Config, logger *slog.Logger) (*buildwatch.Builder, error) {
	return buildwatch.NewBuilder(buildwatch.BuilderOptions{
		Dir:     cfg.WatchDirectory,
		Package: cfg.BuildPackage,
		Output:  cfg.ArtifactPath(),
		Flags:   cfg.BuildFlags,
		Logger:  logger,
	})
}
