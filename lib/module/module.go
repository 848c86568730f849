// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package module

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/hotswap/lib/digest"
)

var (
	// ErrSymbolNotFound reports that an image has no such symbol.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrSymbolType reports that a symbol exists with a different type
	// than requested.
	ErrSymbolType = errors.New("symbol has unexpected type")

	// ErrClosed reports use of a module after Close.
	ErrClosed = errors.New("module closed")
)

// Module is a loaded code image and the private file it was opened
// from.
type Module struct {
	artifact    Artifact
	privatePath string
	digest      digest.Digest
	loadedAt    time.Time

	closeOnce sync.Once
	closeErr  error
	image     Image
}

// Artifact returns the build artifact this module was loaded from, as
// it was observed before the move. Path is the public artifact path.
func (m *Module) Artifact() Artifact { return m.artifact }

// PrivatePath returns the file the image was opened from.
func (m *Module) PrivatePath() string { return m.privatePath }

// Digest returns the content digest of the loaded file.
func (m *Module) Digest() digest.Digest { return m.digest }

// LoadedAt returns when the module was opened.
func (m *Module) LoadedAt() time.Time { return m.loadedAt }

// Lookup resolves a symbol without type checking.
func (m *Module) Lookup(name string) (any, error) {
	if m.image == nil {
		return nil, ErrClosed
	}
	return m.image.Lookup(name)
}

// Close releases the image and deletes the private file. Safe to call
// more than once; later calls return the first result.
func (m *Module) Close() error {
	m.closeOnce.Do(func() {
		var errs []error
		if m.image != nil {
			if err := m.image.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing image: %w", err))
			}
			m.image = nil
		}
		if err := os.Remove(m.privatePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", m.privatePath, err))
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}

// EntryPoint resolves the symbol name in m as a T. Go plugins return a
// pointer for package-level variables, so a *T symbol is dereferenced.
// A missing symbol returns an error wrapping ErrSymbolNotFound; a
// symbol of another type returns one wrapping ErrSymbolType.
func EntryPoint[T any](m *Module, name string) (T, error) {
	var zero T
	symbol, err := m.Lookup(name)
	if err != nil {
		return zero, fmt.Errorf("entry point %q: %w", name, err)
	}
	switch typed := symbol.(type) {
	case T:
		return typed, nil
	case *T:
		if typed == nil {
			return zero, fmt.Errorf("entry point %q: nil pointer: %w", name, ErrSymbolType)
		}
		return *typed, nil
	default:
		return zero, fmt.Errorf("entry point %q is %T, want %T: %w", name, symbol, zero, ErrSymbolType)
	}
}
