// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package world

import (
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/hotswap/lib/host"
	"github.com/bureau-foundation/hotswap/lib/testutil"
)

func newWorld() *World {
	return New(testutil.DiscardLogger())
}

func TestSingletons(t *testing.T) {
	w := newWorld()
	if _, ok := w.Singleton("counter"); ok {
		t.Fatal("empty world has a counter")
	}
	w.SetSingleton("counter", 5)
	value, ok := Get[int](w, "counter")
	if !ok || value != 5 {
		t.Fatalf("Get = (%d, %v), want (5, true)", value, ok)
	}
	if _, ok := Get[string](w, "counter"); ok {
		t.Error("Get with wrong type succeeded")
	}
	w.RemoveSingleton("counter")
	w.RemoveSingleton("counter")
	if _, ok := w.Singleton("counter"); ok {
		t.Error("counter survived RemoveSingleton")
	}
}

func TestInstances(t *testing.T) {
	w := newWorld()
	first := w.Spawn()
	second := w.Spawn()
	if first == second {
		t.Fatalf("Spawn returned duplicate id %d", first)
	}

	w.SetInstance("position", first, 1.5)
	w.SetInstance("position", second, 2.5)
	w.SetInstance("position", 99, 9.5)

	values := w.Instances("position")
	if len(values) != 2 {
		t.Fatalf("Instances returned %d values, want 2", len(values))
	}
	delete(values, first)
	if _, ok := GetInstance[float64](w, "position", first); !ok {
		t.Error("mutating the Instances result changed the world")
	}

	w.Despawn(second)
	if w.Alive(second) {
		t.Error("despawned instance still alive")
	}
	if _, ok := GetInstance[float64](w, "position", second); ok {
		t.Error("despawned instance kept its value")
	}
	if ids := w.InstanceIDs(); len(ids) != 1 || ids[0] != first {
		t.Errorf("InstanceIDs = %v, want [%d]", ids, first)
	}

	w.RemoveInstance("position", first)
	if len(w.Instances("position")) != 0 {
		t.Error("RemoveInstance left a value behind")
	}
}

func TestTickRunsTopLevelInOrder(t *testing.T) {
	w := newWorld()
	var order []string
	record := func(name string) host.Task {
		return host.Task{Name: name, Run: func(host.Container) error {
			order = append(order, name)
			return nil
		}}
	}
	w.AddTopLevel(record("first"))
	w.AddTopLevel(host.Task{Name: "failing", Run: func(host.Container) error {
		return errors.New("boom")
	}})
	w.AddTopLevel(host.Task{Name: "panicking", Run: func(host.Container) error {
		panic("kaboom")
	}})
	w.AddTopLevel(record("last"))

	err := w.Tick()
	if err == nil {
		t.Fatal("Tick returned nil, want joined task errors")
	}
	for _, want := range []string{"failing", "boom", "panicking", "kaboom"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Tick error %q does not mention %q", err, want)
		}
	}
	if strings.Join(order, ",") != "first,last" {
		t.Errorf("order = %v, want [first last]", order)
	}
	if w.Ticks() != 1 {
		t.Errorf("Ticks = %d, want 1", w.Ticks())
	}
}

func TestPipelinesAreCopied(t *testing.T) {
	w := newWorld()
	tasks := []host.Task{{Name: "a"}}
	w.SetPipeline("update", tasks)
	tasks[0].Name = "mutated"

	got, ok := w.Pipeline("update")
	if !ok || len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("Pipeline = %v, %v; want [a]", got, ok)
	}
	w.SetPipeline("update", nil)
	got, ok = w.Pipeline("update")
	if !ok || len(got) != 0 {
		t.Errorf("Pipeline after clearing = %v, %v; want empty, true", got, ok)
	}
	if _, ok := w.Pipeline("render"); ok {
		t.Error("unknown pipeline reported present")
	}
	if names := w.PipelineNames(); len(names) != 1 || names[0] != "update" {
		t.Errorf("PipelineNames = %v, want [update]", names)
	}
}
