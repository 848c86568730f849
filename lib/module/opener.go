// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package module

import (
	"errors"
	"plugin"
)

// Opener opens code images.
type Opener interface {
	Open(path string) (Image, error)
}

// Image is an opened code image.
type Image interface {
	// Lookup resolves an exported symbol. Functions resolve to the
	// function value; package-level variables resolve to a pointer.
	// A missing symbol returns an error wrapping ErrSymbolNotFound.
	Lookup(name string) (any, error)

	// Close releases the image.
	Close() error
}

// PluginOpener opens Go plugins built with -buildmode=plugin.
type PluginOpener struct{}

// Open implements Opener.
func (PluginOpener) Open(path string) (Image, error) {
	handle, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return &pluginImage{handle: handle}, nil
}

type pluginImage struct {
	handle *plugin.Plugin
}

func (p *pluginImage) Lookup(name string) (any, error) {
	if p.handle == nil {
		return nil, errors.New("lookup on closed image")
	}
	symbol, err := p.handle.Lookup(name)
	if err != nil {
		// The plugin package only reports "symbol not found" here.
		return nil, errors.Join(ErrSymbolNotFound, err)
	}
	return symbol, nil
}

// Close drops the handle. The runtime keeps the image mapped.
func (p *pluginImage) Close() error {
	p.handle = nil
	return nil
}
