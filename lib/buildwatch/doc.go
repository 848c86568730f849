// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildwatch keeps the module artifact up to date with its
// source tree.
//
// Two halves live here. The supervising side, [Start], runs a
// long-lived build process as a child in its own process group and
// guarantees it is terminated when the application shuts down. The
// child side is what that process runs: a [Watcher] reports source
// changes through inotify, a [Builder] compiles the plugin, and
// [Watch] ties them together.
//
// The two sides communicate only through the filesystem. The Builder
// writes to a temporary file next to the artifact and renames it into
// place, so the application never observes a partially written
// artifact.
package buildwatch
