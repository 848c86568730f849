// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reload swaps a running application's logic for a freshly
// built module without losing the application's state.
//
// A [Coordinator] is driven from the application's tick loop. Every
// [Coordinator.Tick] checks whether the build has published a newer
// artifact. When one has been quiet for the debounce interval, the
// whole cycle runs to completion inside that tick:
//
//	Idle → ArtifactCheck → Serializing → Unloading → Loading →
//	Registering → Deserializing → Notifying → Idle
//
// Serializing encodes every registered state type. Unloading moves the
// current module to a retiring slot, detaches registered values and
// clears the pipelines and state types the module contributed; every
// one of those steps is undone if the new module fails to load, so a
// bad build leaves the application running the previous logic
// untouched. Registering calls the module's registration function
// (named by [SymbolName]), which contributes pipelines and state types
// through a [Registrar]. Deserializing restores state into the new
// types and only then closes the retiring module. Notifying bumps the
// generation and broadcasts an [Event].
//
// A module that lacks the registration function disagrees with the
// host about the contract. Tick rolls back and returns a *[FatalError];
// the host is expected to exit.
//
// When a journal path is configured the coordinator records each
// cycle from Serializing until Deserializing completes, next to a
// spill file holding the serialized state. [Coordinator.Start] finds a
// journal left by a crash, refuses to load the build that crashed and
// restores the spilled state.
//
// Tick must be called from the tick loop and never from inside a task:
// the cycle closes the previous module's image, and no code from that
// image may be on the stack.
package reload
