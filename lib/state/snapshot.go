// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"github.com/bureau-foundation/hotswap/lib/host"
)

// Snapshot is the encoded state of every registered type, taken
// immediately before unload and consumed immediately after load.
type Snapshot struct {
	Singletons map[string][]byte          `cbor:"singletons"`
	Instances  map[string][]InstanceValue `cbor:"instances"`
}

// InstanceValue is one encoded per-instance value. Data is empty when
// the value could not be encoded; the instance then receives the
// type's default on restore.
type InstanceValue struct {
	ID   host.InstanceID `cbor:"id"`
	Data []byte          `cbor:"data,omitempty"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Singletons: make(map[string][]byte),
		Instances:  make(map[string][]InstanceValue),
	}
}

// Len returns the number of encoded values.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	count := len(s.Singletons)
	for _, values := range s.Instances {
		count += len(values)
	}
	return count
}

// Empty reports whether the snapshot holds no values.
func (s *Snapshot) Empty() bool { return s.Len() == 0 }
