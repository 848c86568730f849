// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package module

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/bureau-foundation/hotswap/lib/clock"
	"github.com/bureau-foundation/hotswap/lib/digest"
)

// Loader moves artifacts into a private directory and opens them.
type Loader struct {
	opener     Opener
	privateDir string
	clock      clock.Clock
	logger     *slog.Logger
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Opener opens images. Default: PluginOpener.
	Opener Opener

	// PrivateDirectory receives moved artifacts. It should be on the
	// same filesystem as the artifact so the move is a rename.
	// Required.
	PrivateDirectory string

	Clock  clock.Clock
	Logger *slog.Logger
}

// NewLoader returns a Loader.
func NewLoader(options LoaderOptions) *Loader {
	if options.Opener == nil {
		options.Opener = PluginOpener{}
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Loader{
		opener:     options.Opener,
		privateDir: options.PrivateDirectory,
		clock:      options.Clock,
		logger:     options.Logger,
	}
}

// PrivateDirectory returns the directory loaded artifacts are moved to.
func (l *Loader) PrivateDirectory() string { return l.privateDir }

// Load moves the artifact at artifactPath to a private path and opens
// it. On any failure the error is logged and returned, and no file is
// left in the private directory. When the open fails the artifact has
// already been consumed; the build is expected to produce another.
func (l *Loader) Load(artifactPath string) (*Module, error) {
	module, err := l.load(artifactPath)
	if err != nil {
		l.logger.Error("module load failed", "artifact", artifactPath, "error", err)
		return nil, err
	}
	l.logger.Info("module loaded",
		"artifact", artifactPath,
		"private_path", module.privatePath,
		"digest", module.digest.Short(),
	)
	return module, nil
}

func (l *Loader) load(artifactPath string) (*Module, error) {
	artifact, err := Stat(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}

	if err := os.MkdirAll(l.privateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating private directory: %w", err)
	}
	privatePath := filepath.Join(l.privateDir, uuid.NewString()+filepath.Ext(artifactPath))
	if err := moveFile(artifactPath, privatePath); err != nil {
		return nil, fmt.Errorf("moving artifact to private path: %w", err)
	}

	contentDigest, err := digest.File(privatePath)
	if err != nil {
		os.Remove(privatePath)
		return nil, err
	}

	image, err := l.opener.Open(privatePath)
	if err != nil {
		os.Remove(privatePath)
		return nil, fmt.Errorf("opening image: %w", err)
	}

	return &Module{
		artifact:    artifact,
		privatePath: privatePath,
		digest:      contentDigest,
		loadedAt:    l.clock.Now(),
		image:       image,
	}, nil
}

// Sweep deletes files in the private directory that do not belong to
// any of keep. A process that crashed leaves its private copies
// behind; call Sweep once at startup before the first load.
func (l *Loader) Sweep(keep ...*Module) (int, error) {
	entries, err := os.ReadDir(l.privateDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading private directory: %w", err)
	}
	kept := make(map[string]bool, len(keep))
	for _, module := range keep {
		if module != nil {
			kept[module.privatePath] = true
		}
	}
	removed := 0
	for _, entry := range entries {
		path := filepath.Join(l.privateDir, entry.Name())
		if entry.IsDir() || kept[path] {
			continue
		}
		if err := os.Remove(path); err != nil {
			l.logger.Warn("removing stale private artifact", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		l.logger.Info("removed stale private artifacts", "count", removed, "directory", l.privateDir)
	}
	return removed, nil
}

// moveFile renames source to destination, falling back to copy and
// remove when they are on different filesystems.
func moveFile(source, destination string) error {
	err := os.Rename(source, destination)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	if err := copyFile(source, destination); err != nil {
		os.Remove(destination)
		return err
	}
	return os.Remove(source)
}

func copyFile(source, destination string) error {
	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	info, err := input.Stat()
	if err != nil {
		return err
	}
	output, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(output, input); err != nil {
		output.Close()
		return err
	}
	if err := output.Sync(); err != nil {
		output.Close()
		return err
	}
	return output.Close()
}
