// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Artifact modification times are compared with nanosecond
	// precision; the default Unix-seconds encoding would round them.
	encOptions.Time = cbor.TimeRFC3339Nano
	// Types implementing encoding.TextMarshaler (digest.Digest) encode
	// as CBOR text strings, so journals and status files show hex
	// digests rather than raw byte arrays.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Values decoded into `any` get string-keyed maps, which is
		// what the rest of the code and encoding/json expect.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Mirrors TextMarshaler above for round-trip correctness.
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v. Data must hold exactly one CBOR item;
// trailing bytes are an error.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose renders data in CBOR diagnostic notation. Used by
// "hotswap status --verbose" to show spilled state values.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
