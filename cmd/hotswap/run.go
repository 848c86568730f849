// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hotswap/cmd/hotswap/cli"
	"github.com/bureau-foundation/hotswap/lib/buildwatch"
	"github.com/bureau-foundation/hotswap/lib/clock"
	"github.com/bureau-foundation/hotswap/lib/config"
	"github.com/bureau-foundation/hotswap/lib/module"
	"github.com/bureau-foundation/hotswap/lib/reload"
	"github.com/bureau-foundation/hotswap/lib/world"
)

func runCommand() *cli.Command {
	var (
		options configOptions
		build   bool
	)
	return &cli.Command{
		Name:    "run",
		Summary: "Run the application and reload the module on every new build",
		Description: `Run the application tick loop. Each tick the reload coordinator checks
the build artifact; a newer, different build is swapped in with
registered state preserved, then the application's pipelines run.

With --build, a "hotswap watch" process is started alongside to
rebuild the module whenever its sources change. Without it, another
process is expected to publish the artifact.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			options.register(flagSet)
			flagSet.BoolVarP(&build, "build", "b", false, "supervise a build process that rebuilds the module on source changes")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Build and run the module in the current directory", Command: "hotswap run --build"},
			{Description: "Run against an artifact published elsewhere", Command: "hotswap run --module counter --output ./target"},
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
			return runApplication(ctx, cfg, build, options.args(), logger)
		},
	}
}

func runApplication(ctx context.Context, cfg *config.Config, build bool, watchArgs []string, logger *slog.Logger) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	debounce, err := cfg.DebounceDuration()
	if err != nil {
		return err
	}
	tickInterval, err := cfg.TickDuration()
	if err != nil {
		return err
	}

	var childDone <-chan struct{}
	if build {
		child, err := startBuildProcess(ctx, cfg, watchArgs, logger)
		if err != nil {
			// An artifact published by other means is still picked up.
			logger.Error("build process not started; polling the existing artifact",
				"command", buildCommandLine(cfg, watchArgs), "error", err)
		} else {
			defer func() {
				if err := child.Stop(); err != nil {
					logger.Warn("stopping build process", "error", err)
				}
			}()
			childDone = child.Done()
		}
	}

	application := world.New(logger)
	loader := module.NewLoader(module.LoaderOptions{
		Opener:           module.PluginOpener{},
		PrivateDirectory: cfg.PrivateDirectory(),
		Logger:           logger,
	})
	coordinator, err := reload.New(reload.Options{
		ModuleName:   cfg.ModuleName,
		ArtifactPath: cfg.ArtifactPath(),
		Loader:       loader,
		World:        application,
		Debounce:     debounce,
		JournalPath:  cfg.JournalPath(),
		SpillPath:    cfg.SpillPath(),
		StatusPath:   cfg.StatusPath(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	if err := coordinator.Start(); err != nil {
		return err
	}
	defer coordinator.Close()
	events := coordinator.Subscribe()

	logger.Info("running",
		"module", cfg.ModuleName,
		"artifact", cfg.ArtifactPath(),
		"symbol", coordinator.Symbol(),
		"tick_interval", tickInterval,
	)

	ticker := clock.Real().NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down", "generation", coordinator.Generation().Number)
			return nil

		case <-childDone:
			logger.Error("build process exited; still watching the artifact", "command", "watch")
			childDone = nil

		case event := <-events:
			if event.Err != nil {
				logger.Debug("reload event", "generation", event.Generation.Number, "error", event.Err)
			} else {
				logger.Debug("reload event", "generation", event.Generation.Number, "digest", event.Digest.Short())
			}

		case <-ticker.C:
			if err := coordinator.Tick(); err != nil {
				var fatal *reload.FatalError
				if errors.As(err, &fatal) {
					logger.Error("module cannot be registered", "symbol", fatal.Symbol, "digest", fatal.Digest.Short(), "error", fatal.Err)
					return &cli.ExitError{Code: 1}
				}
				return err
			}
			// Task failures are logged by the world; the loop continues.
			_ = application.Tick()
		}
	}
}

// startBuildProcess supervises the build-and-watch child. An explicit
// build_command replaces the default "hotswap watch".
func startBuildProcess(ctx context.Context, cfg *config.Config, watchArgs []string, logger *slog.Logger) (*buildwatch.Process, error) {
	command := buildCommandLine(cfg, watchArgs)
	if len(command) == 0 {
		return nil, errors.New("locating hotswap executable failed")
	}
	child, err := buildwatch.Start(ctx, buildwatch.Options{
		Command: command,
		Stdout:  os.Stderr,
		Stderr:  os.Stderr,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("starting build process: %w", err)
	}
	return child, nil
}

// buildCommandLine returns the supervised build command, or nil when
// the hotswap executable cannot be located.
func buildCommandLine(cfg *config.Config, watchArgs []string) []string {
	if len(cfg.BuildCommand) > 0 {
		return cfg.BuildCommand
	}
	executable, err := os.Executable()
	if err != nil {
		return nil
	}
	return append([]string{executable, "watch"}, watchArgs...)
}
