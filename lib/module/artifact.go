// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package module

import (
	"fmt"
	"os"
	"time"
)

// Artifact is a build output observed on disk.
type Artifact struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Stat returns the artifact at path. It fails when the path does not
// exist or is not a regular file. This runs every tick and performs a
// single stat(2).
func Stat(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, fmt.Errorf("%s is not a regular file (mode %s)", path, info.Mode())
	}
	return Artifact{Path: path, ModTime: info.ModTime(), Size: info.Size()}, nil
}

// NewerThan reports whether a was modified strictly after t.
func (a Artifact) NewerThan(t time.Time) bool {
	return a.ModTime.After(t)
}
