// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchdog records a reload that is in flight so that a crash
// inside a freshly loaded module can be diagnosed at the next start.
//
// The coordinator writes a [State] immediately before it unloads the
// current module and clears it once the new module has registered and
// its state has been restored. If the process dies in between (the
// new module panicked in its registration function, or corrupted the
// heap), the file survives. On startup [Check] finds it, the
// coordinator logs which build crashed, refuses to load that digest
// again, and restores the preserved state from the spill file that
// was written alongside.
//
// Files are CBOR, written atomically (temporary file, fsync, rename,
// fsync of the parent directory). [Check] ignores files older than a
// maximum age so a journal left behind by an unrelated kill is not
// acted upon days later.
package watchdog
