// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package module loads reloadable code images from build artifacts.
//
// A [Loader] takes the artifact the build just produced, moves it to a
// private, randomly named path (same directory tree, same extension)
// and opens it there. Moving instead of copying means the build can
// start writing the next artifact immediately without truncating a
// file that is mid-load, and each [Module] owns an exclusive, stable
// file for as long as it lives. [Module.Close] releases the image and
// deletes that file.
//
// The dynamic-linking facility sits behind [Opener] and [Image]; the
// only operation that crosses the unsafe boundary is
// [Image.Lookup]. [PluginOpener] is the production implementation on
// top of the Go plugin package. Tests substitute an in-memory opener.
//
// Go cannot unmap a plugin once opened. Close therefore drops every
// reference the loader holds and removes the private file; the mapped
// text stays resident until the process exits. Two properties follow
// for builds: every artifact must carry a plugin path the runtime has
// not seen (it refuses a second plugin with a known path, so returning
// to the exact source of an earlier generation fails to load), and
// memory grows by one image per reload.
package module
