// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildwatch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// DefaultQuietPeriod is how long the watcher waits for a burst of
	// events to end before reporting it.
	DefaultQuietPeriod = 100 * time.Millisecond

	watchMask = unix.IN_CLOSE_WRITE | unix.IN_CREATE | unix.IN_DELETE |
		unix.IN_MOVED_TO | unix.IN_MOVED_FROM | unix.IN_ONLYDIR

	// pollTimeout bounds how long the read loop blocks before checking
	// the stop channel.
	pollTimeout = 100
)

// Change is one debounced burst of source changes.
type Change struct {
	// Paths lists the changed files, sorted and deduplicated.
	Paths []string
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Root is the directory tree to watch. Required.
	Root string

	// Ignore lists directories that are not watched, typically the
	// build output directory. Hidden directories are always ignored.
	Ignore []string

	// Filter selects the files whose changes are reported. Default:
	// SourceFile.
	Filter func(path string) bool

	// QuietPeriod defaults to DefaultQuietPeriod.
	QuietPeriod time.Duration

	Logger *slog.Logger
}

// SourceFile reports whether path affects a Go build: a .go file,
// go.mod or go.sum, excluding editor temporaries whose names start
// with a dot.
func SourceFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.HasSuffix(base, ".go") || base == "go.mod" || base == "go.sum"
}

// Watcher reports changes below a directory tree.
type Watcher struct {
	fd          int
	root        string
	ignore      map[string]bool
	filter      func(string) bool
	quietPeriod time.Duration
	logger      *slog.Logger

	// watches maps watch descriptors to directories. Only the read
	// loop touches it after NewWatcher returns.
	watches map[int32]string

	changes   chan Change
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts watching options.Root and every directory below it.
// Directories created later are added as they appear.
func NewWatcher(options WatcherOptions) (*Watcher, error) {
	if options.Root == "" {
		return nil, errors.New("watcher: root is required")
	}
	root, err := filepath.Abs(options.Root)
	if err != nil {
		return nil, err
	}
	if options.Filter == nil {
		options.Filter = SourceFile
	}
	if options.QuietPeriod <= 0 {
		options.QuietPeriod = DefaultQuietPeriod
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}

	watcher := &Watcher{
		fd:          fd,
		root:        root,
		ignore:      make(map[string]bool),
		filter:      options.Filter,
		quietPeriod: options.QuietPeriod,
		logger:      options.Logger,
		watches:     make(map[int32]string),
		changes:     make(chan Change, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, path := range options.Ignore {
		if absolute, err := filepath.Abs(path); err == nil {
			watcher.ignore[absolute] = true
		}
	}
	if err := watcher.addTree(root); err != nil {
		unix.Close(fd)
		return nil, err
	}

	go watcher.loop()
	return watcher, nil
}

// Changes delivers one Change per burst. The channel is closed when the
// watcher stops.
func (w *Watcher) Changes() <-chan Change { return w.changes }

// Close stops the watcher and releases the inotify descriptor. Safe to
// call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() { close(w.stop) })
	<-w.done
	return nil
}

// Ignored reports whether directory is excluded from watching.
func (w *Watcher) Ignored(directory string) bool {
	if w.ignore[directory] {
		return true
	}
	if directory == w.root {
		return false
	}
	return strings.HasPrefix(filepath.Base(directory), ".")
}

// addTree adds a watch on directory and every directory below it that
// is not ignored.
func (w *Watcher) addTree(directory string) error {
	return filepath.WalkDir(directory, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == directory {
				return err
			}
			// Removed while walking.
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if w.Ignored(path) {
			return filepath.SkipDir
		}
		descriptor, err := unix.InotifyAddWatch(w.fd, path, watchMask)
		if err != nil {
			if path == directory {
				return fmt.Errorf("inotify_add_watch on %s: %w", path, err)
			}
			w.logger.Warn("not watching directory", "path", path, "error", err)
			return nil
		}
		w.watches[int32(descriptor)] = path
		return nil
	})
}

// loop reads inotify events until stopped. After the first relevant
// event it keeps reading until the descriptor has been quiet for the
// quiet period, then reports everything it collected as one Change.
func (w *Watcher) loop() {
	defer close(w.done)
	defer close(w.changes)
	defer unix.Close(w.fd)

	buffer := make([]byte, 64*1024)
	pending := make(map[string]bool)
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		timeout := pollTimeout
		if len(pending) > 0 {
			timeout = int(w.quietPeriod / time.Millisecond)
		}
		pollDescriptors := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			w.logger.Error("inotify poll failed, watcher stopping", "error", err)
			return
		}

		if count == 0 {
			if len(pending) > 0 {
				if !w.emit(pending) {
					return
				}
				pending = make(map[string]bool)
			}
			continue
		}

		bytesRead, err := unix.Read(w.fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			w.logger.Error("inotify read failed, watcher stopping", "error", err)
			return
		}
		for _, event := range parseEvents(buffer[:bytesRead]) {
			w.handle(event, pending)
		}
	}
}

func (w *Watcher) handle(event inotifyEvent, pending map[string]bool) {
	if event.mask&unix.IN_Q_OVERFLOW != 0 {
		w.logger.Warn("inotify queue overflowed, assuming everything changed")
		pending[w.root] = true
		return
	}
	directory, ok := w.watches[event.descriptor]
	if !ok {
		return
	}
	if event.mask&unix.IN_IGNORED != 0 {
		delete(w.watches, event.descriptor)
		return
	}
	if event.name == "" {
		return
	}
	path := filepath.Join(directory, event.name)

	if event.mask&unix.IN_ISDIR != 0 {
		if event.mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0 && !w.Ignored(path) {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("not watching new directory", "path", path, "error", err)
			}
			// Files written before the watch was added produced no
			// events of their own.
			pending[path] = true
		}
		return
	}
	if w.filter(path) {
		pending[path] = true
	}
}

// emit sends the pending paths as one Change. It returns false when the
// watcher was stopped while waiting for the receiver.
func (w *Watcher) emit(pending map[string]bool) bool {
	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	w.logger.Debug("source changed", "paths", paths)
	select {
	case w.changes <- Change{Paths: paths}:
		return true
	case <-w.stop:
		return false
	}
}

type inotifyEvent struct {
	descriptor int32
	mask       uint32
	name       string
}

// parseEvents decodes a buffer of raw inotify events. Layout from
// inotify(7):
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, null-padded to alignment
//	};
func parseEvents(buffer []byte) []inotifyEvent {
	var events []inotifyEvent
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}
		event := inotifyEvent{
			descriptor: int32(binary.NativeEndian.Uint32(buffer[offset : offset+4])),
			mask:       binary.NativeEndian.Uint32(buffer[offset+4 : offset+8]),
		}
		if nameLength > 0 {
			event.name = nullTerminated(buffer[offset+unix.SizeofInotifyEvent : offset+eventSize])
		}
		events = append(events, event)
		offset += eventSize
	}
	return events
}

func nullTerminated(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
