// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time source for the reload loop.
//
// The coordinator's debounce decision and the tick loop both depend on
// "now". Production code injects [Real]; tests inject [Fake] and move
// time with [FakeClock.Advance], which makes debounce windows and tick
// counts deterministic without sleeping.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	coordinator := reload.New(reload.Options{Clock: c, ...})
//	c.Advance(1500 * time.Millisecond)
//	coordinator.Tick()
package clock
