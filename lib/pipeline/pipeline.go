// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline tracks the task pipelines contributed by the loaded
// module and replaces them wholesale on every reload.
//
// A module contributes tasks to named pipelines during its
// registration pass. Contributions are buffered and only published to
// the host's scheduler by [Registry.Commit], so the rest of the
// application never observes a half-registered pipeline. The first
// time a name is contributed, a forwarding task is appended to the
// host's permanent top-level pipeline; it looks the named pipeline up
// on every run, so the top-level list never changes across reloads.
//
// Before the next module registers, [Registry.ClearContributed]
// empties every pipeline the current module touched. Contributions
// therefore never accumulate across generations: a module that
// contributes one task to "update" on every reload leaves exactly one
// task in "update". The returned [Contribution] puts everything back
// if the next module fails to load.
//
// A Registry is owned by the application's tick loop and is not safe
// for concurrent use.
package pipeline

import (
	"errors"
	"log/slog"

	"github.com/bureau-foundation/hotswap/lib/host"
)

// ForwarderPrefix prefixes the name of every forwarding task installed
// in the top-level pipeline.
const ForwarderPrefix = "pipeline:"

// Registry records module contributions to named pipelines.
type Registry struct {
	scheduler host.Scheduler
	logger    *slog.Logger

	// forwarded holds every name with a forwarding task installed.
	// Forwarders are permanent, so this only grows.
	forwarded map[string]bool

	// touched lists, in first-contribution order, the names the
	// current generation contributed to.
	touched []string

	// pending holds contributions not yet committed.
	pending map[string][]host.Task

	// published holds the committed contents of each touched name.
	published map[string][]host.Task
}

// New returns a Registry publishing to scheduler. A nil logger uses
// slog.Default().
func New(scheduler host.Scheduler, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		scheduler: scheduler,
		logger:    logger,
		forwarded: make(map[string]bool),
		pending:   make(map[string][]host.Task),
		published: make(map[string][]host.Task),
	}
}

// Contribute appends tasks to the named pipeline. Nothing is visible
// to the scheduler until Commit, except the forwarding task installed
// the first time name is seen.
func (r *Registry) Contribute(name string, tasks ...host.Task) {
	if name == "" {
		r.logger.Error("ignoring contribution to pipeline with empty name", "tasks", len(tasks))
		return
	}
	if !r.isTouched(name) {
		r.touched = append(r.touched, name)
	}
	if _, ok := r.pending[name]; !ok {
		r.pending[name] = append([]host.Task(nil), r.published[name]...)
	}
	r.pending[name] = append(r.pending[name], tasks...)

	if !r.forwarded[name] {
		r.forwarded[name] = true
		r.scheduler.AddTopLevel(r.forwarder(name))
		r.logger.Debug("installed pipeline forwarder", "pipeline", name)
	}
}

// forwarder returns the top-level task that runs the named pipeline.
// Every task in the pipeline runs even if an earlier one fails.
func (r *Registry) forwarder(name string) host.Task {
	scheduler := r.scheduler
	return host.Task{
		Name: ForwarderPrefix + name,
		Run: func(container host.Container) error {
			tasks, _ := scheduler.Pipeline(name)
			var errs []error
			for _, task := range tasks {
				if err := host.RunTask(task, container); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}

// Commit publishes every pending contribution to the scheduler.
func (r *Registry) Commit() {
	for _, name := range r.touched {
		tasks, ok := r.pending[name]
		if !ok {
			continue
		}
		r.scheduler.SetPipeline(name, tasks)
		r.published[name] = tasks
		delete(r.pending, name)
	}
}

// Touched returns the names contributed to in this generation, in
// first-contribution order.
func (r *Registry) Touched() []string {
	return append([]string(nil), r.touched...)
}

// Forwarded returns whether a forwarding task exists for name.
func (r *Registry) Forwarded(name string) bool { return r.forwarded[name] }

// Contribution is the committed pipeline contents of one generation.
type Contribution struct {
	// Names lists the touched pipelines in first-contribution order.
	Names []string

	// Pipelines maps each touched name to its committed tasks.
	Pipelines map[string][]host.Task
}

// Len returns the total number of tasks in the contribution.
func (c Contribution) Len() int {
	count := 0
	for _, tasks := range c.Pipelines {
		count += len(tasks)
	}
	return count
}

// ClearContributed replaces every touched pipeline with an empty one,
// discards uncommitted contributions and resets tracking. It returns
// what was removed so Reinstate can undo it.
func (r *Registry) ClearContributed() Contribution {
	removed := Contribution{
		Names:     r.touched,
		Pipelines: r.published,
	}
	for _, name := range r.touched {
		r.scheduler.SetPipeline(name, nil)
	}
	r.touched = nil
	r.pending = make(map[string][]host.Task)
	r.published = make(map[string][]host.Task)
	if len(removed.Names) > 0 {
		r.logger.Debug("cleared contributed pipelines", "pipelines", removed.Names, "tasks", removed.Len())
	}
	return removed
}

// Reinstate undoes ClearContributed. Anything contributed since,
// committed or not, is cleared first.
func (r *Registry) Reinstate(contribution Contribution) {
	r.ClearContributed()
	r.touched = append([]string(nil), contribution.Names...)
	for _, name := range contribution.Names {
		tasks := contribution.Pipelines[name]
		r.scheduler.SetPipeline(name, tasks)
		r.published[name] = tasks
	}
}

func (r *Registry) isTouched(name string) bool {
	for _, touched := range r.touched {
		if touched == name {
			return true
		}
	}
	return false
}
