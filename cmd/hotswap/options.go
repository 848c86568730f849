// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hotswap/lib/config"
)

// configOptions are the flags shared by every command that reads the
// configuration. Non-empty values override the file.
type configOptions struct {
	ConfigPath     string
	ModuleName     string
	WatchDirectory string
	Package        string
	Output         string
	StateDirectory string
	Debounce       string
	LogLevel       string
}

func (o *configOptions) register(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.ConfigPath, "config", "c", "", "configuration file, YAML or JSONC (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&o.ModuleName, "module", "", "module name (default: working directory name)")
	flagSet.StringVar(&o.WatchDirectory, "watch-dir", "", "source directory to watch and build in")
	flagSet.StringVar(&o.Package, "package", "", "Go package built into the plugin, relative to --watch-dir")
	flagSet.StringVar(&o.Output, "output", "", "build output directory")
	flagSet.StringVar(&o.StateDirectory, "state-dir", "", "directory for the reload journal, state spill and status files")
	flagSet.StringVar(&o.Debounce, "debounce", "", "minimum quiet period before swapping in a new build")
	flagSet.StringVar(&o.LogLevel, "log-level", "", "debug, info, warn or error")
}

// load reads the configuration and applies flag overrides.
func (o *configOptions) load() (*config.Config, error) {
	workingDirectory, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	var cfg *config.Config
	if o.ConfigPath != "" {
		cfg, err = config.LoadFile(o.ConfigPath, workingDirectory)
	} else {
		cfg, err = config.Load(workingDirectory)
	}
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		value  string
		target *string
	}{
		{o.ModuleName, &cfg.ModuleName},
		{o.WatchDirectory, &cfg.WatchDirectory},
		{o.Package, &cfg.BuildPackage},
		{o.Output, &cfg.BuildOutputDirectory},
		{o.StateDirectory, &cfg.StateDirectory},
		{o.Debounce, &cfg.Debounce},
		{o.LogLevel, &cfg.LogLevel},
	}
	changed := false
	for _, override := range overrides {
		if override.value != "" {
			*override.target = override.value
			changed = true
		}
	}
	if changed {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}
	return cfg, nil
}

// args reproduces the options as command-line flags, for passing the
// same configuration to the supervised watch process.
func (o *configOptions) args() []string {
	var args []string
	add := func(name, value string) {
		if value != "" {
			args = append(args, "--"+name+"="+value)
		}
	}
	add("config", o.ConfigPath)
	add("module", o.ModuleName)
	add("watch-dir", o.WatchDirectory)
	add("package", o.Package)
	add("output", o.Output)
	add("state-dir", o.StateDirectory)
	add("log-level", o.LogLevel)
	return args
}
