// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"errors"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/bureau-foundation/hotswap/lib/codec"
	"github.com/bureau-foundation/hotswap/lib/watchdog"
)

// spillVersion is stored in every spill file. ReadSpill rejects other
// versions.
const spillVersion = 1

type spillFile struct {
	Version  int       `cbor:"version"`
	Snapshot *Snapshot `cbor:"snapshot"`
}

// zstdEncoder and zstdDecoder are safe for concurrent EncodeAll and
// DecodeAll calls and are reused across spills.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("state: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("state: zstd decoder initialization failed: " + err.Error())
	}
}

// WriteSpill persists snapshot to path atomically. A reader never
// sees a partially written file.
func WriteSpill(path string, snapshot *Snapshot) error {
	if snapshot == nil {
		snapshot = NewSnapshot()
	}
	data, err := codec.Marshal(spillFile{Version: spillVersion, Snapshot: snapshot})
	if err != nil {
		return fmt.Errorf("encoding spill: %w", err)
	}
	if err := watchdog.WriteFileAtomic(path, zstdEncoder.EncodeAll(data, nil)); err != nil {
		return fmt.Errorf("writing spill: %w", err)
	}
	return nil
}

// ReadSpill reads a snapshot written by WriteSpill. A missing file
// returns an error satisfying errors.Is(err, os.ErrNotExist).
func ReadSpill(path string) (*Snapshot, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing spill %s: %w", path, err)
	}
	var spill spillFile
	if err := codec.Unmarshal(data, &spill); err != nil {
		return nil, fmt.Errorf("decoding spill %s: %w", path, err)
	}
	if spill.Version != spillVersion {
		return nil, fmt.Errorf("spill %s has version %d, want %d", path, spill.Version, spillVersion)
	}
	if spill.Snapshot == nil {
		return NewSnapshot(), nil
	}
	if spill.Snapshot.Singletons == nil {
		spill.Snapshot.Singletons = make(map[string][]byte)
	}
	if spill.Snapshot.Instances == nil {
		spill.Snapshot.Instances = make(map[string][]InstanceValue)
	}
	return spill.Snapshot, nil
}

// RemoveSpill deletes the spill file. A missing file is not an error.
func RemoveSpill(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing spill: %w", err)
	}
	return nil
}
