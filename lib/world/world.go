// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package world is a minimal in-process implementation of host.World:
// typed-by-name singleton and per-instance storage, named task
// pipelines, and a permanent top-level pipeline run once per tick.
//
// It is what cmd/hotswap run hosts reloadable modules in, and what the
// reload tests drive. Applications with their own entity-component
// runtime implement host.World on top of it instead.
//
// A World is owned by one tick loop and is not safe for concurrent
// use.
package world

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/bureau-foundation/hotswap/lib/host"
)

// World implements host.World.
type World struct {
	singletons map[string]any
	instances  map[string]map[host.InstanceID]any
	alive      map[host.InstanceID]bool
	nextID     host.InstanceID

	pipelines map[string][]host.Task
	topLevel  []host.Task

	ticks  uint64
	logger *slog.Logger
}

var _ host.World = (*World)(nil)

// New returns an empty World. A nil logger uses slog.Default().
func New(logger *slog.Logger) *World {
	if logger == nil {
		logger = slog.Default()
	}
	return &World{
		singletons: make(map[string]any),
		instances:  make(map[string]map[host.InstanceID]any),
		alive:      make(map[host.InstanceID]bool),
		nextID:     1,
		pipelines:  make(map[string][]host.Task),
		logger:     logger,
	}
}

// Spawn creates a new instance and returns its id. IDs are never
// reused.
func (w *World) Spawn() host.InstanceID {
	id := w.nextID
	w.nextID++
	w.alive[id] = true
	return id
}

// Despawn destroys an instance and every value attached to it.
func (w *World) Despawn(id host.InstanceID) {
	delete(w.alive, id)
	for name, values := range w.instances {
		delete(values, id)
		if len(values) == 0 {
			delete(w.instances, name)
		}
	}
}

// Alive implements host.Container.
func (w *World) Alive(id host.InstanceID) bool { return w.alive[id] }

// InstanceIDs returns every live instance in ascending order.
func (w *World) InstanceIDs() []host.InstanceID {
	ids := make([]host.InstanceID, 0, len(w.alive))
	for id := range w.alive {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Singleton implements host.Container.
func (w *World) Singleton(name string) (any, bool) {
	value, ok := w.singletons[name]
	return value, ok
}

// SetSingleton implements host.Container.
func (w *World) SetSingleton(name string, value any) { w.singletons[name] = value }

// RemoveSingleton implements host.Container.
func (w *World) RemoveSingleton(name string) { delete(w.singletons, name) }

// Instances implements host.Container.
func (w *World) Instances(name string) map[host.InstanceID]any {
	values := make(map[host.InstanceID]any, len(w.instances[name]))
	for id, value := range w.instances[name] {
		values[id] = value
	}
	return values
}

// SetInstance implements host.Container. Values for instances that are
// not alive are discarded.
func (w *World) SetInstance(name string, id host.InstanceID, value any) {
	if !w.alive[id] {
		w.logger.Debug("ignoring value for dead instance", "type", name, "instance", uint64(id))
		return
	}
	values, ok := w.instances[name]
	if !ok {
		values = make(map[host.InstanceID]any)
		w.instances[name] = values
	}
	values[id] = value
}

// RemoveInstance implements host.Container.
func (w *World) RemoveInstance(name string, id host.InstanceID) {
	values, ok := w.instances[name]
	if !ok {
		return
	}
	delete(values, id)
	if len(values) == 0 {
		delete(w.instances, name)
	}
}

// SetPipeline implements host.Scheduler.
func (w *World) SetPipeline(name string, tasks []host.Task) {
	w.pipelines[name] = append([]host.Task(nil), tasks...)
}

// Pipeline implements host.Scheduler. The returned slice is a copy.
func (w *World) Pipeline(name string) ([]host.Task, bool) {
	tasks, ok := w.pipelines[name]
	if !ok {
		return nil, false
	}
	return append([]host.Task(nil), tasks...), true
}

// PipelineNames returns the names of every installed pipeline, sorted.
func (w *World) PipelineNames() []string {
	names := make([]string, 0, len(w.pipelines))
	for name := range w.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddTopLevel implements host.Scheduler.
func (w *World) AddTopLevel(task host.Task) { w.topLevel = append(w.topLevel, task) }

// TopLevel returns a copy of the top-level pipeline.
func (w *World) TopLevel() []host.Task { return append([]host.Task(nil), w.topLevel...) }

// Ticks returns the number of completed ticks.
func (w *World) Ticks() uint64 { return w.ticks }

// Tick runs every top-level task once, in order. A failing task is
// logged and the remaining tasks still run; the returned error joins
// every failure.
func (w *World) Tick() error {
	w.ticks++
	var errs []error
	for _, task := range w.topLevel {
		if err := host.RunTask(task, w); err != nil {
			w.logger.Error("task failed", "task", task.Name, "tick", w.ticks, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
