// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Kind says whether a type has one value per application or one value
// per instance.
type Kind int

const (
	// Singleton types have at most one value, stored with
	// host.Container.SetSingleton.
	Singleton Kind = iota

	// PerInstance types have one value per instance, stored with
	// host.Container.SetInstance.
	PerInstance
)

func (k Kind) String() string {
	switch k {
	case Singleton:
		return "singleton"
	case PerInstance:
		return "per_instance"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Scope says who registered an entry.
type Scope int

const (
	// HostScope entries were registered by the host application and
	// survive every reload.
	HostScope Scope = iota

	// ModuleScope entries were registered by the loaded module and are
	// dropped when the next generation begins.
	ModuleScope
)

func (s Scope) String() string {
	if s == ModuleScope {
		return "module"
	}
	return "host"
}

// errWrongType reports a container value whose dynamic type does not
// match the registered type. This happens when a value was stored by
// code compiled against a different definition of the type.
var errWrongType = errors.New("value has unexpected type")

// Entry is a type-erased registration: a name, a kind and the closures
// that encode, decode and construct values of the type.
type Entry struct {
	Name  string
	Kind  Kind
	Scope Scope

	encode      func(any) ([]byte, error)
	decode      func([]byte) (any, error)
	makeDefault func() any
}

// Encode converts a container value to bytes.
func (e *Entry) Encode(value any) ([]byte, error) { return e.encode(value) }

// Decode converts bytes to a container value.
func (e *Entry) Decode(data []byte) (any, error) { return e.decode(data) }

// Default returns a fresh default value.
func (e *Entry) Default() any { return e.makeDefault() }

// Registrar accepts type registrations. Both *Registry and the view
// returned by Registry.Module implement it.
type Registrar interface {
	// Register adds entry unless an entry with the same name already
	// exists. It reports whether the entry was added.
	Register(entry Entry) bool
}

// Option customizes a registration.
type Option[T any] func(*options[T])

type options[T any] struct {
	makeDefault func() T
}

// WithDefault supplies the constructor for the type's default value.
// Without it the default is T's zero value.
func WithDefault[T any](constructor func() T) Option[T] {
	return func(o *options[T]) { o.makeDefault = constructor }
}

// RegisterSingleton registers T as a singleton type under name. It
// reports whether the registration was new; registering a name that is
// already present is a no-op.
func RegisterSingleton[T any](r Registrar, name string, codec Codec[T], opts ...Option[T]) bool {
	return r.Register(newEntry(name, Singleton, codec, opts))
}

// RegisterInstance registers T as a per-instance type under name. It
// reports whether the registration was new.
func RegisterInstance[T any](r Registrar, name string, codec Codec[T], opts ...Option[T]) bool {
	return r.Register(newEntry(name, PerInstance, codec, opts))
}

func newEntry[T any](name string, kind Kind, codec Codec[T], opts []Option[T]) Entry {
	var o options[T]
	for _, opt := range opts {
		opt(&o)
	}
	makeDefault := o.makeDefault
	if makeDefault == nil {
		makeDefault = func() T {
			var zero T
			return zero
		}
	}
	return Entry{
		Name: name,
		Kind: kind,
		encode: func(value any) ([]byte, error) {
			typed, ok := value.(T)
			if !ok {
				var zero T
				return nil, fmt.Errorf("%w: have %T, want %T", errWrongType, value, zero)
			}
			return codec.Encode(typed)
		},
		decode: func(data []byte) (any, error) {
			return codec.Decode(data)
		},
		makeDefault: func() any { return makeDefault() },
	}
}

// Registry maps type names to entries.
type Registry struct {
	entries map[string]*Entry
	logger  *slog.Logger
}

// NewRegistry returns an empty Registry. A nil logger uses
// slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*Entry),
		logger:  logger,
	}
}

// Register adds a host-scoped entry. It implements Registrar.
func (r *Registry) Register(entry Entry) bool {
	return r.register(entry, HostScope)
}

// Module returns a Registrar whose registrations are module-scoped.
func (r *Registry) Module() Registrar {
	return moduleRegistrar{registry: r}
}

type moduleRegistrar struct {
	registry *Registry
}

func (m moduleRegistrar) Register(entry Entry) bool {
	return m.registry.register(entry, ModuleScope)
}

func (r *Registry) register(entry Entry, scope Scope) bool {
	if entry.Name == "" {
		r.logger.Error("ignoring state registration with empty name", "kind", entry.Kind)
		return false
	}
	if existing, ok := r.entries[entry.Name]; ok {
		if existing.Kind != entry.Kind {
			r.logger.Warn("state type already registered with a different kind",
				"type", entry.Name,
				"registered_kind", existing.Kind,
				"requested_kind", entry.Kind,
			)
		}
		return false
	}
	entry.Scope = scope
	r.entries[entry.Name] = &entry
	r.logger.Debug("state type registered", "type", entry.Name, "kind", entry.Kind, "scope", scope)
	return true
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	entry, ok := r.entries[name]
	return entry, ok
}

// Len returns the number of registered entries.
func (r *Registry) Len() int { return len(r.entries) }

// Entries returns every entry sorted by name.
func (r *Registry) Entries() []*Entry {
	entries := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Retired holds the module-scoped entries dropped by BeginGeneration.
type Retired struct {
	entries []*Entry
}

// Len returns the number of retired entries.
func (r Retired) Len() int { return len(r.entries) }

// BeginGeneration drops every module-scoped entry so the next module's
// registration pass starts from the host's entries only. The returned
// Retired restores them if the new module never takes over.
func (r *Registry) BeginGeneration() Retired {
	var retired Retired
	for name, entry := range r.entries {
		if entry.Scope == ModuleScope {
			retired.entries = append(retired.entries, entry)
			delete(r.entries, name)
		}
	}
	return retired
}

// Reinstate undoes BeginGeneration: module-scoped entries registered
// since are dropped and the retired entries come back.
func (r *Registry) Reinstate(retired Retired) {
	r.BeginGeneration()
	for _, entry := range retired.entries {
		r.entries[entry.Name] = entry
	}
}
