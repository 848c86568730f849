// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package moduletest provides an in-memory module.Opener for tests.
//
// Artifacts are ordinary files whose content names a symbol table
// defined on the [Opener]. Writing "v2" to the artifact path and
// defining a "v2" image is the test equivalent of building and
// publishing a new plugin. Content with no matching definition is
// rejected the way a malformed shared object would be.
package moduletest

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/bureau-foundation/hotswap/lib/module"
)

// Opener implements module.Opener over symbol tables keyed by file
// content.
type Opener struct {
	mu      sync.Mutex
	images  map[string]map[string]any
	opened  []string
	open    int
	failAll error
}

// NewOpener returns an Opener with no images defined.
func NewOpener() *Opener {
	return &Opener{images: make(map[string]map[string]any)}
}

// Define registers the symbol table for artifacts whose content is
// key. Redefining a key replaces the table for future opens only.
func (o *Opener) Define(key string, symbols map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.images[key] = symbols
}

// FailWith makes every subsequent Open fail with err. Pass nil to
// restore normal behavior.
func (o *Opener) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failAll = err
}

// Opened returns the keys of every image opened so far, in order.
func (o *Opener) Opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

// OpenCount returns the number of images opened and not yet closed.
func (o *Opener) OpenCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

// Open implements module.Opener.
func (o *Opener) Open(path string) (module.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(string(data))

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failAll != nil {
		return nil, o.failAll
	}
	symbols, ok := o.images[key]
	if !ok {
		return nil, fmt.Errorf("%s: invalid ELF header", path)
	}
	o.opened = append(o.opened, key)
	o.open++
	return &image{owner: o, key: key, symbols: symbols}, nil
}

type image struct {
	owner   *Opener
	key     string
	symbols map[string]any
	closed  bool
}

func (i *image) Lookup(name string) (any, error) {
	if i.closed {
		return nil, errors.New("lookup on closed image")
	}
	symbol, ok := i.symbols[name]
	if !ok {
		return nil, fmt.Errorf("image %q has no symbol %s: %w", i.key, name, module.ErrSymbolNotFound)
	}
	return symbol, nil
}

func (i *image) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.owner.mu.Lock()
	i.owner.open--
	i.owner.mu.Unlock()
	return nil
}
