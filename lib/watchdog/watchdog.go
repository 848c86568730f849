// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/hotswap/lib/codec"
	"github.com/bureau-foundation/hotswap/lib/digest"
)

// State describes one reload in progress.
type State struct {
	// Module is the configured unit name.
	Module string `cbor:"module"`

	// Generation is the generation the reload would have produced.
	Generation uint64 `cbor:"generation"`

	// PreviousDigest identifies the module that was running before the
	// reload. Zero when nothing was loaded.
	PreviousDigest digest.Digest `cbor:"previous_digest"`

	// Digest identifies the module being loaded. Zero until the
	// artifact has been opened; a journal that survives a crash with a
	// non-zero Digest names the build that crashed.
	Digest digest.Digest `cbor:"digest"`

	// Artifact is the build artifact path being loaded.
	Artifact string `cbor:"artifact"`

	// ArtifactModTime is the artifact's modification time when the
	// reload started.
	ArtifactModTime time.Time `cbor:"artifact_mod_time"`

	// Timestamp is when the reload started.
	Timestamp time.Time `cbor:"timestamp"`
}

// Write atomically replaces the state file at path. The parent
// directory must exist. The file is created with mode 0600.
func Write(path string, state State) error {
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling reload journal: %w", err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temporary file next to path, syncs
// it, and renames it into place. Readers observe either the old file
// or the complete new one.
func WriteFileAtomic(path string, data []byte) error {
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", temporaryPath, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing %s: %w", temporaryPath, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing %s: %w", temporaryPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}

	if directory, err := os.Open(filepath.Dir(path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// Read parses the state file at path. A missing file yields an error
// wrapping fs.ErrNotExist.
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := codec.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing reload journal %s: %w", path, err)
	}
	return state, nil
}

// Check returns the state at path and true when the file exists and
// was written no more than maxAge before now. A missing or stale file
// returns false with a nil error; unreadable or corrupt files return
// the error so callers can tell "no journal" from "broken journal".
func Check(path string, maxAge time.Duration, now time.Time) (State, bool, error) {
	state, err := Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	if now.Sub(state.Timestamp) > maxAge {
		return State{}, false, nil
	}
	return state, true, nil
}

// Clear removes the state file. Missing files are not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing reload journal: %w", err)
	}
	return nil
}
