// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"encoding/json"

	"github.com/bureau-foundation/hotswap/lib/codec"
)

// Codec converts values of type T to bytes and back. Decode must
// accept anything Encode produced, including output of the same Codec
// compiled into a previous module generation.
type Codec[T any] struct {
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

// CBOR returns a Codec using deterministic CBOR. Struct fields follow
// the cbor/json tag conventions of lib/codec; unknown fields are
// ignored on decode, so adding or removing a field between reloads
// keeps the fields both versions share.
func CBOR[T any]() Codec[T] {
	return Codec[T]{
		Encode: func(value T) ([]byte, error) {
			return codec.Marshal(value)
		},
		Decode: func(data []byte) (T, error) {
			var value T
			err := codec.Unmarshal(data, &value)
			return value, err
		},
	}
}

// JSON returns a Codec using encoding/json. Snapshots encoded this way
// are readable in a spill file dump, which helps when debugging a
// type's encoding.
func JSON[T any]() Codec[T] {
	return Codec[T]{
		Encode: func(value T) ([]byte, error) {
			return json.Marshal(value)
		},
		Decode: func(data []byte) (T, error) {
			var value T
			err := json.Unmarshal(data, &value)
			return value, err
		},
	}
}
