// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reload

import (
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/hotswap/lib/digest"
)

// Generation identifies one completed reload cycle. Number 0 is the
// state before any module was loaded.
type Generation struct {
	Number    uint64    `cbor:"number"`
	Timestamp time.Time `cbor:"timestamp"`
}

// Event is broadcast to subscribers at the end of every cycle that got
// past the artifact check.
type Event struct {
	// Generation is the generation running after the cycle. For a
	// failed cycle it is unchanged.
	Generation Generation

	// Digest is the content digest of the module that was loaded or
	// rejected. Zero when the cycle failed before the artifact could
	// be read.
	Digest digest.Digest

	// Err is nil for a completed reload and describes the failure for
	// an aborted one.
	Err error
}

// FatalError reports a module that cannot be used with this host at
// all. The coordinator has already rolled back when it is returned.
type FatalError struct {
	Module string
	Symbol string
	Digest digest.Digest
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("module %s (%s): required entry point %s: %v", e.Module, e.Digest.Short(), e.Symbol, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ErrClosed is returned by Tick after Close.
var ErrClosed = errors.New("reload coordinator closed")
