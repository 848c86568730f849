// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit terminates the process for an error returned from run(). Errors
// carrying an ExitCode() method exit with that code silently (the
// command already reported the problem); anything else is printed as
// "error: err" and exits 1. A nil error exits 0.
func Exit(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report writes err to w unless it carries its own exit code, and
// returns the code the process should exit with.
func Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
