// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package state preserves designated application values across a code
// reload.
//
// Application code registers each value type once under a stable name
// with [RegisterSingleton] or [RegisterInstance], supplying a [Codec]
// that turns the value into bytes and back. Before the old code is
// unloaded the coordinator calls [Registry.SaveAll], which encodes
// every registered value into a [Snapshot]. After the new code has
// registered its types, [Registry.RestoreAll] decodes the snapshot
// back into the container. A value that cannot be decoded (or was
// never saved) is replaced by the type's default, so every registered
// type has a valid value after a restore.
//
// Types are keyed by name, not by Go type identity: a type declared
// inside a reloadable module is a distinct Go type after each reload.
// Entries registered through [Registry.Module] belong to the loaded
// module and are dropped by [Registry.BeginGeneration] so the next
// module registers fresh closures. Entries registered on the
// [Registry] directly belong to the host and are permanent.
//
// Every step that mutates the registry or the container before a new
// module is confirmed returns a value that undoes it: [Detached] and
// [Retired]. A failed load reinstates both and the application
// continues exactly as before.
//
// [WriteSpill] and [ReadSpill] persist a snapshot on disk
// (zstd-compressed CBOR, written atomically) so state survives a crash
// inside freshly loaded code.
//
// A Registry is owned by the application's tick loop and is not safe
// for concurrent use.
package state
