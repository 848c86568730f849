// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package host defines the contract between the reload core and the
// application that embeds it. The core never owns application state;
// it reads and writes it through [Container] and installs per-tick
// logic through [Scheduler]. [World] combines both and is what the
// coordinator is handed.
//
// Values are keyed by a stable type name rather than by Go type
// identity. A type defined inside a reloadable module is a different
// Go type after every reload, so reflect.Type cannot be used as a key
// across the unload/reload boundary.
//
// This package has no dependencies on other hotswap packages.
package host

import "fmt"

// InstanceID identifies one logical instance (an entity) that carries
// per-instance values. IDs are assigned by the container and stay
// stable across reloads; the core only passes them through.
type InstanceID uint64

// Container is the state side of the host application: singleton
// values keyed by type name, and per-instance values keyed by type
// name and instance id.
type Container interface {
	// Singleton returns the singleton value registered under name.
	Singleton(name string) (any, bool)

	// SetSingleton inserts or replaces the singleton value for name.
	SetSingleton(name string, value any)

	// RemoveSingleton deletes the singleton value for name. No-op when
	// absent.
	RemoveSingleton(name string)

	// Instances returns a copy of every per-instance value stored
	// under name. The returned map is owned by the caller.
	Instances(name string) map[InstanceID]any

	// SetInstance inserts or replaces the value of type name attached
	// to instance id. Implementations may ignore ids that are not
	// alive.
	SetInstance(name string, id InstanceID, value any)

	// RemoveInstance detaches the value of type name from instance id.
	RemoveInstance(name string, id InstanceID)

	// Alive reports whether instance id still exists.
	Alive(id InstanceID) bool
}

// Task is one step of a pipeline. Run receives the container the task
// operates on. A non-nil error is logged by the scheduler and does not
// stop the remaining tasks of the pipeline.
type Task struct {
	Name string
	Run  func(Container) error
}

// Scheduler is the logic side of the host application: named ordered
// pipelines run once per tick, driven from a permanent top-level
// pipeline.
type Scheduler interface {
	// SetPipeline installs tasks as the complete contents of the named
	// pipeline, replacing whatever was there. A nil or empty slice
	// leaves an empty pipeline behind.
	SetPipeline(name string, tasks []Task)

	// Pipeline returns the current contents of the named pipeline.
	Pipeline(name string) ([]Task, bool)

	// AddTopLevel appends a task to the permanent top-level pipeline.
	// Top-level tasks are never removed.
	AddTopLevel(task Task)
}

// World is a container that can also schedule tasks.
type World interface {
	Container
	Scheduler
}

// RunTask runs task against container, converting a panic into an
// error so one broken task cannot take down the tick loop.
func RunTask(task Task, container Container) (err error) {
	if task.Run == nil {
		return nil
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, recovered)
		}
	}()
	if err := task.Run(container); err != nil {
		return fmt.Errorf("task %s: %w", task.Name, err)
	}
	return nil
}
