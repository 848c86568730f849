// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest computes content digests of build artifacts. The
// coordinator compares digests to skip a reload when a rebuild
// produced a byte-identical module (a touch, or a no-op edit), and the
// reload journal records the digest of a module that was being swapped
// in so a crash can be attributed to that exact build.
package digest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 hash.
type Digest [32]byte

// File streams the file at path through BLAKE3.
func File(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// Bytes hashes data.
func Bytes(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

// IsZero reports whether d is the zero digest (no artifact).
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// String returns the lowercase hex encoding.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, for log lines.
func (d Digest) Short() string {
	return d.String()[:12]
}

// Parse decodes a 64-character hex digest.
func Parse(s string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("digest is %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}

// MarshalText implements encoding.TextMarshaler so digests appear as
// hex in JSON and CBOR text fields.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
