// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reload

import (
	"fmt"
	"os"
	"time"

	"github.com/bureau-foundation/hotswap/lib/codec"
	"github.com/bureau-foundation/hotswap/lib/digest"
	"github.com/bureau-foundation/hotswap/lib/watchdog"
)

// Status describes a coordinator for display. A running coordinator
// with a status path rewrites it after every cycle so `hotswap status`
// can report on a process it is not part of.
type Status struct {
	Module      string        `cbor:"module"`
	Symbol      string        `cbor:"symbol"`
	PID         int           `cbor:"pid"`
	Generation  Generation    `cbor:"generation"`
	Digest      digest.Digest `cbor:"digest"`
	Fallback    bool          `cbor:"fallback"`
	Artifact    string        `cbor:"artifact"`
	PrivatePath string        `cbor:"private_path,omitempty"`
	LoadedAt    time.Time     `cbor:"loaded_at"`
	Pipelines   []string      `cbor:"pipelines"`
	StateTypes  []string      `cbor:"state_types"`
	Failures    uint64        `cbor:"failures"`
	LastError   string        `cbor:"last_error,omitempty"`
	UpdatedAt   time.Time     `cbor:"updated_at"`
}

// WriteStatus atomically replaces the status file at path.
func WriteStatus(path string, status Status) error {
	data, err := codec.Marshal(status)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	return watchdog.WriteFileAtomic(path, data)
}

// ReadStatus reads a status file written by WriteStatus. The raw bytes
// are returned alongside for diagnostic dumps.
func ReadStatus(path string) (Status, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Status{}, nil, err
	}
	var status Status
	if err := codec.Unmarshal(data, &status); err != nil {
		return Status{}, data, fmt.Errorf("decoding status %s: %w", path, err)
	}
	return status, data, nil
}
