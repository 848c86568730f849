// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reload

import "fmt"

// Phase is a state of the reload cycle.
type Phase int

const (
	Idle Phase = iota
	ArtifactCheck
	Serializing
	Unloading
	Loading
	Registering
	Deserializing
	Notifying
)

var phaseNames = [...]string{
	Idle:          "idle",
	ArtifactCheck: "artifact_check",
	Serializing:   "serializing",
	Unloading:     "unloading",
	Loading:       "loading",
	Registering:   "registering",
	Deserializing: "deserializing",
	Notifying:     "notifying",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}
