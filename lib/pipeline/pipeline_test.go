// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/hotswap/lib/host"
	"github.com/bureau-foundation/hotswap/lib/testutil"
	"github.com/bureau-foundation/hotswap/lib/world"
)

func newFixture() (*Registry, *world.World) {
	logger := testutil.DiscardLogger()
	w := world.New(logger)
	return New(w, logger), w
}

func incrementTask(name string) host.Task {
	return host.Task{Name: name, Run: func(c host.Container) error {
		value, _ := world.Get[int](c, "count")
		c.SetSingleton("count", value+1)
		return nil
	}}
}

func taskNames(tasks []host.Task) string {
	names := make([]string, len(tasks))
	for i, task := range tasks {
		names[i] = task.Name
	}
	return strings.Join(names, ",")
}

func TestContributionsInvisibleUntilCommit(t *testing.T) {
	registry, w := newFixture()
	registry.Contribute("update", incrementTask("a"))
	registry.Contribute("update", incrementTask("b"))

	if _, ok := w.Pipeline("update"); ok {
		t.Fatal("pipeline visible before Commit")
	}
	if len(w.TopLevel()) != 1 {
		t.Fatalf("top level has %d tasks, want the forwarder only", len(w.TopLevel()))
	}

	registry.Commit()
	tasks, _ := w.Pipeline("update")
	if got := taskNames(tasks); got != "a,b" {
		t.Errorf("update = %s, want a,b", got)
	}
}

func TestForwarderRunsNamedPipeline(t *testing.T) {
	registry, w := newFixture()
	registry.Contribute("update", incrementTask("a"), incrementTask("b"))
	registry.Commit()

	if err := w.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if count, _ := world.Get[int](w, "count"); count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	// The forwarder resolves the pipeline by name on every run.
	w.SetPipeline("update", []host.Task{incrementTask("c")})
	if err := w.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if count, _ := world.Get[int](w, "count"); count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestForwarderRunsEveryTaskDespiteFailures(t *testing.T) {
	registry, w := newFixture()
	registry.Contribute("update",
		host.Task{Name: "fails", Run: func(host.Container) error { return errors.New("boom") }},
		incrementTask("after"),
	)
	registry.Commit()

	err := w.Tick()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Tick error = %v, want boom", err)
	}
	if count, _ := world.Get[int](w, "count"); count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestNoLeakageAcrossGenerations(t *testing.T) {
	registry, w := newFixture()
	for generation := 0; generation < 5; generation++ {
		registry.ClearContributed()
		registry.Contribute("update", incrementTask("a"))
		registry.Commit()
	}
	tasks, _ := w.Pipeline("update")
	if len(tasks) != 1 {
		t.Errorf("update has %d tasks after 5 generations, want 1", len(tasks))
	}
	if len(w.TopLevel()) != 1 {
		t.Errorf("top level has %d tasks, want 1 forwarder", len(w.TopLevel()))
	}
}

func TestClearContributedEmptiesTouchedPipelines(t *testing.T) {
	registry, w := newFixture()
	registry.Contribute("update", incrementTask("a"))
	registry.Contribute("render", incrementTask("r"))
	registry.Commit()
	w.SetPipeline("host_owned", []host.Task{incrementTask("h")})

	removed := registry.ClearContributed()
	if strings.Join(removed.Names, ",") != "update,render" || removed.Len() != 2 {
		t.Errorf("removed = %+v", removed)
	}
	for _, name := range []string{"update", "render"} {
		tasks, ok := w.Pipeline(name)
		if !ok || len(tasks) != 0 {
			t.Errorf("%s = %v, %v; want empty, present", name, tasks, ok)
		}
	}
	if tasks, _ := w.Pipeline("host_owned"); len(tasks) != 1 {
		t.Error("ClearContributed touched a pipeline the module never contributed to")
	}
	if len(registry.Touched()) != 0 {
		t.Errorf("Touched = %v after clear, want none", registry.Touched())
	}
}

func TestReinstate(t *testing.T) {
	registry, w := newFixture()
	registry.Contribute("update", incrementTask("old"))
	registry.Commit()

	removed := registry.ClearContributed()
	registry.Contribute("update", incrementTask("new"))
	registry.Contribute("physics", incrementTask("p"))

	registry.Reinstate(removed)

	tasks, _ := w.Pipeline("update")
	if got := taskNames(tasks); got != "old" {
		t.Errorf("update = %s, want old", got)
	}
	if tasks, _ := w.Pipeline("physics"); len(tasks) != 0 {
		t.Errorf("physics = %s, want empty", taskNames(tasks))
	}
	if got := strings.Join(registry.Touched(), ","); got != "update" {
		t.Errorf("Touched = %s, want update", got)
	}

	// A later contribution in the same generation extends what was
	// reinstated.
	registry.Contribute("update", incrementTask("extra"))
	registry.Commit()
	tasks, _ = w.Pipeline("update")
	if got := taskNames(tasks); got != "old,extra" {
		t.Errorf("update = %s, want old,extra", got)
	}
}

func TestContributeEmptyName(t *testing.T) {
	registry, w := newFixture()
	registry.Contribute("", incrementTask("a"))
	registry.Commit()
	if len(w.TopLevel()) != 0 || len(registry.Touched()) != 0 {
		t.Error("empty pipeline name was accepted")
	}
}
