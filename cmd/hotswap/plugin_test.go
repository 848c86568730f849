// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"plugin"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/hotswap/lib/buildwatch"
	"github.com/bureau-foundation/hotswap/lib/clock"
	"github.com/bureau-foundation/hotswap/lib/codec"
	"github.com/bureau-foundation/hotswap/lib/module"
	"github.com/bureau-foundation/hotswap/lib/reload"
	"github.com/bureau-foundation/hotswap/lib/testutil"
	"github.com/bureau-foundation/hotswap/lib/world"
)

const counterType = "counter.Counter"

// requirePlugins skips unless this test binary can build and open Go
// plugins compatible with itself.
func requirePlugins(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("builds plugins with the go command")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not found")
	}
	if testing.CoverMode() != "" {
		t.Skip("coverage instrumentation makes shared packages differ from the plugin's")
	}
	if _, err := plugin.Open(filepath.Join(t.TempDir(), "missing.so")); err != nil && strings.Contains(err.Error(), "not implemented") {
		t.Skip("plugins are not supported by this build")
	}
}

// stageCounter copies the example module into a fresh directory inside
// this module, so edits do not touch the example itself. It returns
// the directory and a function that writes the source with the given
// Step.
func stageCounter(t *testing.T) (string, func(step int)) {
	t.Helper()
	source, err := os.ReadFile(filepath.Join("..", "..", "examples", "counter", "counter.go"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(source), "const Step = 1\n") {
		t.Fatal("examples/counter/counter.go no longer declares const Step = 1")
	}
	if err := os.MkdirAll("testdata", 0755); err != nil {
		t.Fatal(err)
	}
	directory, err := os.MkdirTemp("testdata", "counter-")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(directory)
		os.Remove("testdata")
	})
	directory, err = filepath.Abs(directory)
	if err != nil {
		t.Fatal(err)
	}

	write := func(step int) {
		t.Helper()
		edited := strings.Replace(string(source), "const Step = 1\n", fmt.Sprintf("const Step = %d\n", step), 1)
		if err := os.WriteFile(filepath.Join(directory, "counter.go"), []byte(edited), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return directory, write
}

func TestBuildAndReloadCounterPlugin(t *testing.T) {
	requirePlugins(t)
	logger := testutil.DiscardLogger()
	packageDirectory, writeSource := stageCounter(t)

	output := t.TempDir()
	artifact := filepath.Join(output, "counter.so")
	var flags []string
	if raceEnabled {
		flags = append(flags, "-race")
	}
	builder, err := buildwatch.NewBuilder(buildwatch.BuilderOptions{
		Dir:    packageDirectory,
		Output: artifact,
		Flags:  flags,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	build := func(step int) {
		t.Helper()
		writeSource(step)
		if _, err := builder.Build(ctx); err != nil {
			t.Fatalf("building step %d: %v", step, err)
		}
	}

	fake := clock.Fake(time.Now())
	application := world.New(logger)
	coordinator, err := reload.New(reload.Options{
		ModuleName:   "counter",
		ArtifactPath: artifact,
		Loader: module.NewLoader(module.LoaderOptions{
			Opener:           module.PluginOpener{},
			PrivateDirectory: filepath.Join(output, ".loaded"),
			Clock:            fake,
			Logger:           logger,
		}),
		World:  application,
		Clock:  fake,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("reload.New: %v", err)
	}
	if err := coordinator.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer coordinator.Close()

	// swap moves the fake clock well past both the artifact's mtime and
	// the previous swap, then ticks once.
	swap := func(want uint64) {
		t.Helper()
		target := time.Now().Add(time.Minute)
		if next := fake.Now().Add(time.Minute); next.After(target) {
			target = next
		}
		fake.Set(target)
		if err := coordinator.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if got := coordinator.Generation().Number; got != want {
			t.Fatalf("generation = %d, want %d (last error: %s)", got, want, coordinator.Status().LastError)
		}
	}
	counterValue := func() int {
		t.Helper()
		value, ok := application.Singleton(counterType)
		if !ok {
			t.Fatal("counter singleton missing")
		}
		entry, ok := coordinator.Registry().Lookup(counterType)
		if !ok {
			t.Fatal("counter type not registered")
		}
		data, err := entry.Encode(value)
		if err != nil {
			t.Fatalf("encoding counter: %v", err)
		}
		var counter struct {
			Value int `cbor:"value"`
		}
		if err := codec.Unmarshal(data, &counter); err != nil {
			t.Fatalf("decoding counter: %v", err)
		}
		return counter.Value
	}
	tick := func() {
		t.Helper()
		if err := application.Tick(); err != nil {
			t.Fatalf("world Tick: %v", err)
		}
	}

	build(1)
	swap(1)
	for range 5 {
		tick()
	}
	if got := counterValue(); got != 5 {
		t.Fatalf("counter after five ticks = %d, want 5", got)
	}

	build(2)
	swap(2)
	if got := counterValue(); got != 5 {
		t.Errorf("counter after reload = %d, want 5 carried over", got)
	}
	tick()
	if got := counterValue(); got != 7 {
		t.Errorf("counter after one tick of the rebuilt module = %d, want 7", got)
	}
	if coordinator.Status().Failures != 0 {
		t.Errorf("reloads recorded %d failures: %s", coordinator.Status().Failures, coordinator.Status().LastError)
	}
}
