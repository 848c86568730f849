// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns detailed version information including the Go toolchain
// and the main module.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s\n  Module: %s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH, MainModule())
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Commit returns the git commit SHA.
func Commit() string {
	return GitCommit
}

// MainModule returns "path@version" of the main module from the
// embedded build information, or "unknown" when there is none (as in
// some test binaries).
func MainModule() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Path == "" {
		return "unknown"
	}
	if info.Main.Version == "" {
		return info.Main.Path
	}
	return info.Main.Path + "@" + info.Main.Version
}

// Print writes Full followed by a newline to w.
func Print(w io.Writer) error {
	_, err := fmt.Fprintln(w, Full())
	return err
}
