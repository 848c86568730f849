// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for hotswap packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls. These are the only place
// in the test suite where real wall-clock timeouts are used; every
// other time-dependent test drives a clock.FakeClock.
//
// [WriteFile] writes a file with a chosen modification time. Reload
// decisions compare artifact modification times against a fake clock,
// so tests need to stamp files with fake time rather than the wall
// clock.
//
// [DiscardLogger] returns a logger that drops everything.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no hotswap-internal dependencies.
package testutil
