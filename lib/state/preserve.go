// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"sort"

	"github.com/bureau-foundation/hotswap/lib/host"
)

// SaveAll encodes the value of every registered type held by
// container. A value that fails to encode is logged and left out of
// the snapshot; the rest of the types are unaffected.
func (r *Registry) SaveAll(container host.Container) *Snapshot {
	snapshot := NewSnapshot()
	for _, entry := range r.Entries() {
		switch entry.Kind {
		case Singleton:
			value, ok := container.Singleton(entry.Name)
			if !ok {
				continue
			}
			data, err := entry.Encode(value)
			if err != nil {
				r.logger.Warn("state encode failed, value will be reset",
					"type", entry.Name, "kind", entry.Kind, "error", err)
				continue
			}
			snapshot.Singletons[entry.Name] = data

		case PerInstance:
			values := container.Instances(entry.Name)
			if len(values) == 0 {
				continue
			}
			encoded := make([]InstanceValue, 0, len(values))
			for _, id := range sortedIDs(values) {
				data, err := entry.Encode(values[id])
				if err != nil {
					r.logger.Warn("state encode failed, value will be reset",
						"type", entry.Name, "kind", entry.Kind, "instance", uint64(id), "error", err)
					data = nil
				}
				encoded = append(encoded, InstanceValue{ID: id, Data: data})
			}
			snapshot.Instances[entry.Name] = encoded
		}
	}
	return snapshot
}

// RestoreAll decodes snapshot into container for every registered type.
// A singleton with no saved value or a value that fails to decode gets
// the type's default. Per-instance values attach only to instances that
// are still alive; values for vanished instances are dropped.
func (r *Registry) RestoreAll(snapshot *Snapshot, container host.Container) {
	if snapshot == nil {
		snapshot = NewSnapshot()
	}
	for _, entry := range r.Entries() {
		switch entry.Kind {
		case Singleton:
			container.SetSingleton(entry.Name, r.decodeOrDefault(entry, snapshot.Singletons[entry.Name], 0, false))

		case PerInstance:
			for _, saved := range snapshot.Instances[entry.Name] {
				if !container.Alive(saved.ID) {
					continue
				}
				container.SetInstance(entry.Name, saved.ID, r.decodeOrDefault(entry, saved.Data, saved.ID, true))
			}
		}
	}
}

func (r *Registry) decodeOrDefault(entry *Entry, data []byte, id host.InstanceID, perInstance bool) any {
	attributes := []any{"type", entry.Name, "kind", entry.Kind}
	if perInstance {
		attributes = append(attributes, "instance", uint64(id))
	}
	if len(data) == 0 {
		r.logger.Debug("no preserved state, using default", attributes...)
		return entry.Default()
	}
	value, err := entry.Decode(data)
	if err != nil {
		r.logger.Warn("state decode failed, using default", append(attributes, "error", err)...)
		return entry.Default()
	}
	return value
}

// Detached holds the container values removed by Detach.
type Detached struct {
	singletons map[string]any
	instances  map[string]map[host.InstanceID]any
}

// Len returns the number of detached values.
func (d Detached) Len() int {
	count := len(d.singletons)
	for _, values := range d.instances {
		count += len(values)
	}
	return count
}

// Detach removes the value of every registered type from container.
// Values of a module's types must not outlive the module's code.
func (r *Registry) Detach(container host.Container) Detached {
	detached := Detached{
		singletons: make(map[string]any),
		instances:  make(map[string]map[host.InstanceID]any),
	}
	for _, entry := range r.Entries() {
		switch entry.Kind {
		case Singleton:
			if value, ok := container.Singleton(entry.Name); ok {
				detached.singletons[entry.Name] = value
				container.RemoveSingleton(entry.Name)
			}
		case PerInstance:
			values := container.Instances(entry.Name)
			if len(values) == 0 {
				continue
			}
			detached.instances[entry.Name] = values
			for id := range values {
				container.RemoveInstance(entry.Name, id)
			}
		}
	}
	return detached
}

// Reattach puts detached values back into container, replacing
// anything stored under the same names since. Instances that died in
// the meantime are skipped.
func (d Detached) Reattach(container host.Container) {
	for name, value := range d.singletons {
		container.SetSingleton(name, value)
	}
	for name, values := range d.instances {
		for id, value := range values {
			if container.Alive(id) {
				container.SetInstance(name, id, value)
			}
		}
	}
}

func sortedIDs(values map[host.InstanceID]any) []host.InstanceID {
	ids := make([]host.InstanceID, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
