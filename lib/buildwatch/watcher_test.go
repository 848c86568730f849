// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildwatch

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/hotswap/lib/testutil"
)

func newWatcher(t *testing.T, root string, ignore ...string) *Watcher {
	t.Helper()
	watcher, err := NewWatcher(WatcherOptions{
		Root:        root,
		Ignore:      ignore,
		QuietPeriod: 20 * time.Millisecond,
		Logger:      testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { watcher.Close() })
	return watcher
}

func writeSource(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherReportsSourceChanges(t *testing.T) {
	root := t.TempDir()
	watcher := newWatcher(t, root)

	path := filepath.Join(root, "main.go")
	writeSource(t, path)

	change := testutil.RequireReceive(t, watcher.Changes(), 5*time.Second, "change for main.go")
	if !slices.Contains(change.Paths, path) {
		t.Errorf("Paths = %v, want to contain %s", change.Paths, path)
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	watcher := newWatcher(t, root)

	subdirectory := filepath.Join(root, "systems")
	if err := os.Mkdir(subdirectory, 0755); err != nil {
		t.Fatal(err)
	}
	testutil.RequireReceive(t, watcher.Changes(), 5*time.Second, "change for new directory")

	path := filepath.Join(subdirectory, "physics.go")
	writeSource(t, path)
	change := testutil.RequireReceive(t, watcher.Changes(), 5*time.Second, "change inside new directory")
	if !slices.Contains(change.Paths, path) {
		t.Errorf("Paths = %v, want to contain %s", change.Paths, path)
	}
}

func TestWatcherCoalescesBurst(t *testing.T) {
	root := t.TempDir()
	watcher := newWatcher(t, root)

	for _, name := range []string{"a.go", "b.go", "c.go"} {
		writeSource(t, filepath.Join(root, name))
	}
	change := testutil.RequireReceive(t, watcher.Changes(), 5*time.Second, "burst")
	for len(change.Paths) < 3 {
		// The burst can straddle one quiet period on a loaded machine.
		next := testutil.RequireReceive(t, watcher.Changes(), 5*time.Second, "rest of burst")
		change.Paths = append(change.Paths, next.Paths...)
	}
	if len(change.Paths) != 3 {
		t.Errorf("Paths = %v, want three files", change.Paths)
	}
}

func TestWatcherIgnored(t *testing.T) {
	root := t.TempDir()
	output := filepath.Join(root, "target")
	watcher := newWatcher(t, root, output)

	tests := []struct {
		path string
		want bool
	}{
		{root, false},
		{filepath.Join(root, "systems"), false},
		{output, true},
		{filepath.Join(root, ".git"), true},
		{filepath.Join(root, ".hotswap"), true},
	}
	for _, test := range tests {
		if got := watcher.Ignored(test.path); got != test.want {
			t.Errorf("Ignored(%s) = %v, want %v", test.path, got, test.want)
		}
	}
}

func TestWatcherCloseClosesChanges(t *testing.T) {
	watcher := newWatcher(t, t.TempDir())
	if err := watcher.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, ok := <-watcher.Changes(); ok {
		t.Error("Changes still open after Close")
	}
}

func TestSourceFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/src/main.go", true},
		{"/src/go.mod", true},
		{"/src/go.sum", true},
		{"/src/.main.go.swp", false},
		{"/src/README.md", false},
		{"/src/target/counter.so", false},
	}
	for _, test := range tests {
		if got := SourceFile(test.path); got != test.want {
			t.Errorf("SourceFile(%s) = %v, want %v", test.path, got, test.want)
		}
	}
}

func TestParseEvents(t *testing.T) {
	var buffer []byte
	appendEvent := func(descriptor int32, mask uint32, name string) {
		padded := 0
		if name != "" {
			padded = (len(name) + 1 + 15) / 16 * 16
		}
		header := make([]byte, unix.SizeofInotifyEvent)
		binary.NativeEndian.PutUint32(header[0:4], uint32(descriptor))
		binary.NativeEndian.PutUint32(header[4:8], mask)
		binary.NativeEndian.PutUint32(header[12:16], uint32(padded))
		buffer = append(buffer, header...)
		nameBytes := make([]byte, padded)
		copy(nameBytes, name)
		buffer = append(buffer, nameBytes...)
	}
	appendEvent(1, unix.IN_CLOSE_WRITE, "main.go")
	appendEvent(2, unix.IN_IGNORED, "")
	appendEvent(1, unix.IN_CREATE|unix.IN_ISDIR, "a-directory-with-a-long-name")

	events := parseEvents(buffer)
	if len(events) != 3 {
		t.Fatalf("parsed %d events, want 3", len(events))
	}
	if events[0].descriptor != 1 || events[0].name != "main.go" || events[0].mask != unix.IN_CLOSE_WRITE {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].name != "" || events[1].mask != unix.IN_IGNORED {
		t.Errorf("event 1 = %+v", events[1])
	}
	if events[2].name != "a-directory-with-a-long-name" {
		t.Errorf("event 2 = %+v", events[2])
	}

	if truncated := parseEvents(buffer[:len(buffer)-4]); len(truncated) != 2 {
		t.Errorf("parsed %d events from a truncated buffer, want 2", len(truncated))
	}
}
