// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package world

import "github.com/bureau-foundation/hotswap/lib/host"

// Get returns the singleton named name as a T. The second result is
// false when the value is absent or has another type.
func Get[T any](container host.Container, name string) (T, bool) {
	value, ok := container.Singleton(name)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := value.(T)
	return typed, ok
}

// GetInstance returns the value of type name attached to id as a T.
func GetInstance[T any](container host.Container, name string, id host.InstanceID) (T, bool) {
	value, ok := container.Instances(name)[id]
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := value.(T)
	return typed, ok
}
