// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	savedCommit, savedDirty, savedTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = savedCommit, savedDirty, savedTime })

	GitCommit, GitDirty, BuildTime = "abc1234", "true", "2026-03-01T12:00:00Z"
	if got, want := Info(), Version+" (abc1234-dirty, 2026-03-01T12:00:00Z)"; got != want {
		t.Errorf("Info = %q, want %q", got, want)
	}
	GitDirty = "false"
	if strings.Contains(Info(), "dirty") {
		t.Errorf("Info = %q, want no dirty marker", Info())
	}
	if Commit() != "abc1234" || Short() != Version {
		t.Errorf("Commit/Short = %q/%q", Commit(), Short())
	}
}

func TestPrint(t *testing.T) {
	var buffer bytes.Buffer
	if err := Print(&buffer); err != nil {
		t.Fatalf("Print: %v", err)
	}
	output := buffer.String()
	for _, want := range []string{Info(), runtime.Version(), runtime.GOOS + "/" + runtime.GOARCH, "Module: "} {
		if !strings.Contains(output, want) {
			t.Errorf("Print output %q does not contain %q", output, want)
		}
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("Print output does not end with a newline")
	}
}
