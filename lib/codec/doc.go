// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by every hotswap
// package that puts bytes on disk or hands them across a reload:
// preserved state values, spill files, and the reload journal.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same value always yields the same bytes. Decoding ignores unknown
// fields: a module that adds a field to a reloadable type still
// accepts the bytes written by the previous generation, and one that
// removes a field drops it without error.
//
// Struct tags follow one rule: `cbor` tags on types that are only ever
// CBOR, `json` tags on types that are also rendered as JSON (the
// decoder falls back to `json` tags). Never both on one field.
package codec
