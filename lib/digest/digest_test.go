// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package digest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/hotswap/lib/codec"
)

func TestFileMatchesBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "module.so")
	content := []byte("not really an ELF image")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if want := Bytes(content); got != want {
		t.Errorf("File = %s, want %s", got, want)
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "absent.so")); err == nil {
		t.Fatal("File on a missing path returned no error")
	}
}

func TestDifferentContentDifferentDigest(t *testing.T) {
	if Bytes([]byte("v1")) == Bytes([]byte("v2")) {
		t.Fatal("distinct inputs produced the same digest")
	}
}

func TestParseRoundtrip(t *testing.T) {
	original := Bytes([]byte("counter module"))
	parsed, err := Parse(original.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != original {
		t.Errorf("Parse(String()) = %s, want %s", parsed, original)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not hex", "zz"},
		{"too short", "abcd"},
		{"too long", Bytes(nil).String() + "00"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Parse(test.input); err == nil {
				t.Errorf("Parse(%q) returned no error", test.input)
			}
		})
	}
}

func TestZeroAndShort(t *testing.T) {
	var zero Digest
	if !zero.IsZero() {
		t.Error("zero digest not reported as zero")
	}
	if Bytes([]byte("x")).IsZero() {
		t.Error("real digest reported as zero")
	}
	if got := len(Bytes([]byte("x")).Short()); got != 12 {
		t.Errorf("Short() length = %d, want 12", got)
	}
}

func TestDigestEncodesAsCBORText(t *testing.T) {
	type record struct {
		Digest Digest `cbor:"digest"`
	}
	original := record{Digest: Bytes([]byte("counter v1"))}

	data, err := codec.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	notation, err := codec.Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if want := `"` + original.Digest.String() + `"`; !strings.Contains(notation, want) {
		t.Errorf("Diagnose = %s, want the digest as the text string %s", notation, want)
	}

	var decoded record
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("decoded %v, want %v", decoded.Digest, original.Digest)
	}
}
