// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build race

package main

// raceEnabled is true when the test binary is built with -race. A
// plugin opened by it must be built the same way.
const raceEnabled = true
