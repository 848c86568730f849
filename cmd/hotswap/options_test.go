// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/bureau-foundation/hotswap/lib/config"
)

func TestConfigOptionsOverrideFile(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "hotswap.yaml")
	content := "module_name: counter\nbuild_output_directory: " + filepath.Join(directory, "out") + "\ndebounce: 2s\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	options := configOptions{ConfigPath: path, Debounce: "250ms", StateDirectory: filepath.Join(directory, "state")}
	cfg, err := options.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModuleName != "counter" {
		t.Errorf("ModuleName = %q, want counter", cfg.ModuleName)
	}
	if cfg.Debounce != "250ms" {
		t.Errorf("Debounce = %q, want the flag value 250ms", cfg.Debounce)
	}
	if got, want := cfg.ArtifactPath(), filepath.Join(directory, "out", "counter.so"); got != want {
		t.Errorf("ArtifactPath = %q, want %q", got, want)
	}
	if got, want := cfg.StatusPath(), filepath.Join(directory, "state", "status.cbor"); got != want {
		t.Errorf("StatusPath = %q, want %q", got, want)
	}
}

func TestConfigOptionsRejectInvalidOverride(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	options := configOptions{ModuleName: "9lives"}
	if _, err := options.load(); err == nil {
		t.Error("load accepted an invalid module name")
	}
}

func TestConfigOptionsArgs(t *testing.T) {
	options := configOptions{ConfigPath: "hotswap.yaml", ModuleName: "counter", Debounce: "2s"}
	got := options.args()
	want := []string{"--config=hotswap.yaml", "--module=counter"}
	if !slices.Equal(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}
}

func TestRootCommandTree(t *testing.T) {
	var names []string
	for _, command := range root().Subcommands {
		names = append(names, command.Name)
	}
	want := []string{"run", "watch", "build", "status", "version"}
	if !slices.Equal(names, want) {
		t.Errorf("subcommands = %v, want %v", names, want)
	}
}
