// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildwatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/build"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/hotswap/lib/clock"
)

// OutputEnvironmentVariable is set for a custom build command, which
// must write the artifact to that path.
const OutputEnvironmentVariable = "HOTSWAP_BUILD_OUTPUT"

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// Dir is where the build runs, normally the Go module root.
	// Required.
	Dir string

	// Package is the directory of the main package to build, relative
	// to Dir. Default ".".
	Package string

	// Output is the artifact path. Required.
	Output string

	// Flags are extra "go build" arguments placed before the files.
	Flags []string

	// Command replaces "go build" entirely when set. See
	// OutputEnvironmentVariable.
	Command []string

	// Go is the go binary. Default: "go" from PATH.
	Go string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Result describes a successful build.
type Result struct {
	Artifact string
	Duration time.Duration
	Output   []byte
}

// BuildError reports a failed build along with the build's output.
type BuildError struct {
	Err    error
	Output []byte
}

func (e *BuildError) Error() string {
	output := strings.TrimSpace(string(e.Output))
	if output == "" {
		return fmt.Sprintf("build failed: %v", e.Err)
	}
	return fmt.Sprintf("build failed: %v\n%s", e.Err, output)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Builder compiles the module into its artifact.
type Builder struct {
	options BuilderOptions
	clock   clock.Clock
	logger  *slog.Logger
}

// NewBuilder returns a Builder.
func NewBuilder(options BuilderOptions) (*Builder, error) {
	if options.Dir == "" {
		return nil, errors.New("builder: directory is required")
	}
	if options.Output == "" {
		return nil, errors.New("builder: output is required")
	}
	if options.Package == "" {
		options.Package = "."
	}
	if options.Go == "" {
		options.Go = "go"
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Builder{options: options, clock: options.Clock, logger: options.Logger}, nil
}

// sourceFiles lists the Go files of the package directory that the
// current build context selects, relative to Dir.
//
// The package is built from its file list rather than its import path.
// The go command then derives the plugin path from a hash of the build
// ID and the file contents, and applies it consistently when compiling
// and linking, so every distinct source yields its own plugin path.
// Built by import path, every build would share one plugin path and
// the runtime would refuse all but the first.
func (b *Builder) sourceFiles() ([]string, error) {
	directory := filepath.Join(b.options.Dir, b.options.Package)
	pkg, err := build.ImportDir(directory, 0)
	if err != nil {
		return nil, fmt.Errorf("reading package %s: %w", directory, err)
	}
	if pkg.Name != "main" {
		return nil, fmt.Errorf("package %s is %q; a plugin must be package main", directory, pkg.Name)
	}
	var files []string
	for _, name := range append(append([]string(nil), pkg.GoFiles...), pkg.CgoFiles...) {
		files = append(files, filepath.Join(b.options.Package, name))
	}
	return files, nil
}

// commandLine returns the program and arguments for one build.
func (b *Builder) commandLine(temporary string, files []string) []string {
	if len(b.options.Command) > 0 {
		return append([]string(nil), b.options.Command...)
	}
	args := []string{
		b.options.Go, "build",
		"-buildmode=plugin",
		"-o", temporary,
	}
	args = append(args, b.options.Flags...)
	return append(args, files...)
}

// Build compiles the artifact. The build writes to a temporary file in
// the output directory which is renamed over the artifact only on
// success; a failed build leaves the previous artifact untouched and
// returns a *BuildError carrying the compiler output.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	started := b.clock.Now()
	outputDirectory := filepath.Dir(b.options.Output)
	if err := os.MkdirAll(outputDirectory, 0755); err != nil {
		return Result{}, fmt.Errorf("creating output directory: %w", err)
	}
	temporary := filepath.Join(outputDirectory, "."+filepath.Base(b.options.Output)+".tmp-"+uuid.NewString())
	defer os.Remove(temporary)

	var files []string
	if len(b.options.Command) == 0 {
		var err error
		if files, err = b.sourceFiles(); err != nil {
			b.logger.Error("build failed", "package", b.options.Package, "error", err)
			return Result{}, &BuildError{Err: err}
		}
	}

	commandLine := b.commandLine(temporary, files)
	command := exec.CommandContext(ctx, commandLine[0], commandLine[1:]...)
	command.Dir = b.options.Dir
	command.Env = append(os.Environ(), OutputEnvironmentVariable+"="+temporary)
	var output bytes.Buffer
	command.Stdout = &output
	command.Stderr = &output

	b.logger.Debug("building", "command", commandLine)
	if err := command.Run(); err != nil {
		buildErr := &BuildError{Err: err, Output: output.Bytes()}
		b.logger.Error("build failed", "package", b.options.Package, "error", err, "output", output.String())
		return Result{}, buildErr
	}
	if _, err := os.Stat(temporary); err != nil {
		buildErr := &BuildError{Err: fmt.Errorf("build produced no artifact: %w", err), Output: output.Bytes()}
		b.logger.Error("build failed", "package", b.options.Package, "error", buildErr.Err)
		return Result{}, buildErr
	}
	if err := os.Rename(temporary, b.options.Output); err != nil {
		return Result{}, fmt.Errorf("publishing artifact: %w", err)
	}

	result := Result{
		Artifact: b.options.Output,
		Duration: b.clock.Now().Sub(started),
		Output:   output.Bytes(),
	}
	b.logger.Info("build succeeded", "artifact", result.Artifact, "duration", result.Duration)
	return result, nil
}
