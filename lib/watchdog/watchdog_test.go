// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/hotswap/lib/digest"
)

var started = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleState() State {
	return State{
		Module:          "counter",
		Generation:      4,
		PreviousDigest:  digest.Bytes([]byte("v3")),
		Digest:          digest.Bytes([]byte("v4")),
		Artifact:        "/work/target/counter.so",
		ArtifactModTime: started.Add(-2 * time.Second),
		Timestamp:       started,
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reload.cbor")
	state := sampleState()

	if err := Write(path, state); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Module != state.Module || got.Generation != state.Generation || got.Artifact != state.Artifact {
		t.Errorf("Read = %+v, want %+v", got, state)
	}
	if got.PreviousDigest != state.PreviousDigest || got.Digest != state.Digest {
		t.Errorf("digests = %s/%s, want %s/%s", got.PreviousDigest, got.Digest, state.PreviousDigest, state.Digest)
	}
	if !got.Timestamp.Equal(state.Timestamp) || !got.ArtifactModTime.Equal(state.ArtifactModTime) {
		t.Errorf("timestamps = %v/%v, want %v/%v", got.Timestamp, got.ArtifactModTime, state.Timestamp, state.ArtifactModTime)
	}
}

func TestWriteLeavesNoTemporaryFile(t *testing.T) {
	directory := t.TempDir()
	if err := Write(filepath.Join(directory, "reload.cbor"), sampleState()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "reload.cbor" {
		var names []string
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Errorf("directory contains %v, want only reload.cbor", names)
	}
}

func TestWritePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reload.cbor")
	if err := Write(path, sampleState()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if permissions := info.Mode().Perm(); permissions != 0600 {
		t.Errorf("permissions = %04o, want 0600", permissions)
	}
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.cbor"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Read error = %v, want fs.ErrNotExist", err)
	}
}

func TestCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reload.cbor")

	if _, found, err := Check(path, time.Minute, started); err != nil || found {
		t.Fatalf("Check on missing file = found %v, err %v; want false, nil", found, err)
	}

	if err := Write(path, sampleState()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	state, found, err := Check(path, time.Minute, started.Add(30*time.Second))
	if err != nil || !found {
		t.Fatalf("Check on fresh file = found %v, err %v; want true, nil", found, err)
	}
	if state.Generation != 4 {
		t.Errorf("Generation = %d, want 4", state.Generation)
	}

	if _, found, err := Check(path, time.Minute, started.Add(2*time.Minute)); err != nil || found {
		t.Errorf("Check on stale file = found %v, err %v; want false, nil", found, err)
	}
}

func TestCheckCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reload.cbor")
	if err := os.WriteFile(path, []byte{0xff, 0x00, 0x13}, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, err := Check(path, time.Minute, started); err == nil {
		t.Fatal("Check on corrupt file returned no error")
	}
}

func TestClearIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reload.cbor")
	if err := Write(path, sampleState()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("file still present after Clear: %v", err)
	}
}
