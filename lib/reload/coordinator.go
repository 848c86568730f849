// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reload

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/hotswap/lib/clock"
	"github.com/bureau-foundation/hotswap/lib/digest"
	"github.com/bureau-foundation/hotswap/lib/host"
	"github.com/bureau-foundation/hotswap/lib/module"
	"github.com/bureau-foundation/hotswap/lib/pipeline"
	"github.com/bureau-foundation/hotswap/lib/state"
	"github.com/bureau-foundation/hotswap/lib/watchdog"
)

const (
	// DefaultDebounce is the quiet period used when Options.Debounce
	// is zero.
	DefaultDebounce = time.Second

	// DefaultJournalMaxAge bounds how old a crash journal can be and
	// still be acted on by Start.
	DefaultJournalMaxAge = 24 * time.Hour

	// subscriberBuffer is the capacity of each Subscribe channel.
	subscriberBuffer = 16
)

// Options configures a Coordinator.
type Options struct {
	// ModuleName names the reloadable unit. The registration function
	// is SymbolName(ModuleName). Required.
	ModuleName string

	// ArtifactPath is where the build publishes the module. Required.
	ArtifactPath string

	// Loader opens artifacts. Required.
	Loader *module.Loader

	// World holds application state and runs pipelines. Required.
	World host.World

	// Registry holds state types. Host code may register its own
	// types on it before Start. Default: a new empty registry.
	Registry *state.Registry

	// Pipelines tracks module contributions. Default: a new registry
	// publishing to World.
	Pipelines *pipeline.Registry

	// Debounce is the minimum time between swaps, and the time an
	// artifact must have been left unmodified before it is loaded.
	// Default: DefaultDebounce.
	Debounce time.Duration

	// JournalPath, SpillPath and StatusPath are optional files. The
	// journal and spill file are written together during a cycle and
	// read by Start after a crash.
	JournalPath string
	SpillPath   string
	StatusPath  string

	// JournalMaxAge defaults to DefaultJournalMaxAge.
	JournalMaxAge time.Duration

	// Fallback, when set, is registered by Start as generation 0 so
	// the application has behavior before any artifact exists.
	Fallback RegisterFunc

	// OnTransition is called on every phase change.
	OnTransition func(from, to Phase)

	Clock  clock.Clock
	Logger *slog.Logger
}

// Coordinator runs the reload cycle. It is owned by the tick loop and
// is not safe for concurrent use.
type Coordinator struct {
	options   Options
	symbol    string
	clock     clock.Clock
	logger    *slog.Logger
	world     host.World
	loader    *module.Loader
	registry  *state.Registry
	pipelines *pipeline.Registry

	phase      Phase
	current    *module.Module
	fallback   bool
	generation Generation
	lastSwap   time.Time

	// currentModTime is the artifact modification time of the current
	// module. rejectedModTime is that of the last artifact that was
	// skipped or failed, so it is not retried every tick.
	currentModTime  time.Time
	rejectedModTime time.Time

	// crashed holds digests that must never be loaded: builds that
	// took the process down, or failed registration.
	crashed map[digest.Digest]bool

	// recovered holds state spilled by a crashed process, merged into
	// the next restore.
	recovered *state.Snapshot

	failures    uint64
	lastError   string
	subscribers []chan Event
	closed      bool
}

// New returns a Coordinator. Call Start before the first Tick.
func New(options Options) (*Coordinator, error) {
	var errs []error
	if options.ModuleName == "" {
		errs = append(errs, errors.New("module name is required"))
	}
	if options.ArtifactPath == "" {
		errs = append(errs, errors.New("artifact path is required"))
	}
	if options.Loader == nil {
		errs = append(errs, errors.New("loader is required"))
	}
	if options.World == nil {
		errs = append(errs, errors.New("world is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("reload coordinator: %w", err)
	}

	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Debounce <= 0 {
		options.Debounce = DefaultDebounce
	}
	if options.JournalMaxAge <= 0 {
		options.JournalMaxAge = DefaultJournalMaxAge
	}
	logger := options.Logger.With("module", options.ModuleName)
	if options.Registry == nil {
		options.Registry = state.NewRegistry(logger)
	}
	if options.Pipelines == nil {
		options.Pipelines = pipeline.New(options.World, logger)
	}

	return &Coordinator{
		options:   options,
		symbol:    SymbolName(options.ModuleName),
		clock:     options.Clock,
		logger:    logger,
		world:     options.World,
		loader:    options.Loader,
		registry:  options.Registry,
		pipelines: options.Pipelines,
		crashed:   make(map[digest.Digest]bool),
	}, nil
}

// Registry returns the state registry. Host-scoped types registered
// here are preserved across every reload.
func (c *Coordinator) Registry() *state.Registry { return c.registry }

// Pipelines returns the pipeline registry.
func (c *Coordinator) Pipelines() *pipeline.Registry { return c.pipelines }

// Phase returns the current phase. Outside of Tick it is always Idle.
func (c *Coordinator) Phase() Phase { return c.phase }

// Generation returns the generation currently running.
func (c *Coordinator) Generation() Generation { return c.generation }

// Current returns the loaded module, or nil before the first load.
func (c *Coordinator) Current() *module.Module { return c.current }

// Symbol returns the registration function name looked up in modules.
func (c *Coordinator) Symbol() string { return c.symbol }

// Subscribe returns a channel receiving an Event at the end of every
// cycle. Events are dropped for a subscriber whose buffer is full. The
// channel is closed by Close.
func (c *Coordinator) Subscribe() <-chan Event {
	channel := make(chan Event, subscriberBuffer)
	if c.closed {
		close(channel)
		return channel
	}
	c.subscribers = append(c.subscribers, channel)
	return channel
}

// Start prepares the coordinator: it removes private files left by a
// previous process, acts on a crash journal, and registers the
// fallback as generation 0.
func (c *Coordinator) Start() error {
	if _, err := c.loader.Sweep(); err != nil {
		c.logger.Warn("sweeping private directory", "error", err)
	}
	c.recover()

	if c.options.Fallback != nil {
		c.logger.Info("registering fallback")
		if err := callRegister(c.options.Fallback, c.newRegistrar(0)); err != nil {
			c.registry.BeginGeneration()
			c.pipelines.ClearContributed()
			return fmt.Errorf("fallback registration: %w", err)
		}
		c.pipelines.Commit()
		c.registry.RestoreAll(c.recovered, c.world)
		c.recovered = nil
		c.clearCrashFiles()
		c.fallback = true
	}
	c.generation = Generation{Timestamp: c.clock.Now()}
	c.writeStatus()
	return nil
}

// recover inspects the crash journal left by a previous process.
func (c *Coordinator) recover() {
	if c.options.JournalPath == "" {
		return
	}
	journal, found, err := watchdog.Check(c.options.JournalPath, c.options.JournalMaxAge, c.clock.Now())
	if err != nil {
		c.logger.Warn("ignoring unreadable reload journal", "path", c.options.JournalPath, "error", err)
	}
	if !found || journal.Module != c.options.ModuleName {
		c.clearCrashFiles()
		return
	}

	c.logger.Error("previous process died during a reload",
		"generation", journal.Generation,
		"digest", journal.Digest.Short(),
		"previous_digest", journal.PreviousDigest.Short(),
		"artifact", journal.Artifact,
		"started_at", journal.Timestamp,
	)
	if !journal.Digest.IsZero() {
		c.crashed[journal.Digest] = true
	}

	if c.options.SpillPath != "" {
		snapshot, err := state.ReadSpill(c.options.SpillPath)
		switch {
		case err == nil:
			c.recovered = snapshot
			c.logger.Info("recovered preserved state", "values", snapshot.Len())
		case errors.Is(err, os.ErrNotExist):
		default:
			c.logger.Warn("discarding unreadable spill file", "path", c.options.SpillPath, "error", err)
		}
	}
	if err := watchdog.Clear(c.options.JournalPath); err != nil {
		c.logger.Warn("clearing reload journal", "error", err)
	}
}

// Close disposes of the current module and closes every subscriber
// channel. Safe to call more than once.
func (c *Coordinator) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	for _, channel := range c.subscribers {
		close(channel)
	}
	c.subscribers = nil
	if c.current == nil {
		return nil
	}
	err := c.current.Close()
	c.current = nil
	return err
}

// Tick checks for a newer artifact and, when one is ready, runs a full
// reload cycle. A tick that finds nothing to do makes no transition.
// Load failures are logged, broadcast and otherwise swallowed; only a
// *FatalError is returned.
func (c *Coordinator) Tick() error {
	if c.closed {
		return ErrClosed
	}
	artifact, artifactDigest, ready := c.checkArtifact()
	if !ready {
		return nil
	}
	return c.swap(artifact, artifactDigest)
}

// checkArtifact decides whether the artifact should be loaded now. It
// runs every tick: the common path is a single stat.
func (c *Coordinator) checkArtifact() (module.Artifact, digest.Digest, bool) {
	artifact, err := module.Stat(c.options.ArtifactPath)
	if err != nil {
		return module.Artifact{}, digest.Digest{}, false
	}
	if c.current != nil && !artifact.NewerThan(c.currentModTime) {
		return module.Artifact{}, digest.Digest{}, false
	}
	if artifact.ModTime.Equal(c.rejectedModTime) {
		return module.Artifact{}, digest.Digest{}, false
	}

	now := c.clock.Now()
	if !c.lastSwap.IsZero() && now.Sub(c.lastSwap) < c.options.Debounce {
		return module.Artifact{}, digest.Digest{}, false
	}
	if now.Sub(artifact.ModTime) < c.options.Debounce {
		return module.Artifact{}, digest.Digest{}, false
	}

	artifactDigest, err := digest.File(artifact.Path)
	if err != nil {
		// Replaced or removed between the stat and the read; the next
		// tick sees the new state.
		return module.Artifact{}, digest.Digest{}, false
	}
	if c.current != nil && artifactDigest == c.current.Digest() {
		c.logger.Info("artifact unchanged, not reloading", "digest", artifactDigest.Short())
		c.rejectedModTime = artifact.ModTime
		return module.Artifact{}, digest.Digest{}, false
	}
	if c.crashed[artifactDigest] {
		c.logger.Warn("refusing to load a build that failed before", "digest", artifactDigest.Short())
		c.rejectedModTime = artifact.ModTime
		return module.Artifact{}, digest.Digest{}, false
	}
	return artifact, artifactDigest, true
}

// swap runs one reload cycle from Serializing to Idle.
func (c *Coordinator) swap(artifact module.Artifact, artifactDigest digest.Digest) error {
	now := c.clock.Now()
	next := c.generation.Number + 1
	logger := c.logger.With("generation", next, "digest", artifactDigest.Short())
	c.transition(ArtifactCheck)

	c.transition(Serializing)
	snapshot := c.registry.SaveAll(c.world)
	c.mergeRecovered(snapshot)
	var previousDigest digest.Digest
	if c.current != nil {
		previousDigest = c.current.Digest()
	}
	journal := watchdog.State{
		Module:          c.options.ModuleName,
		Generation:      next,
		PreviousDigest:  previousDigest,
		Artifact:        artifact.Path,
		ArtifactModTime: artifact.ModTime,
		Timestamp:       now,
	}
	c.writeCrashFiles(journal, snapshot)

	c.transition(Unloading)
	retiring := c.current
	c.current = nil
	detached := c.registry.Detach(c.world)
	contribution := c.pipelines.ClearContributed()
	retired := c.registry.BeginGeneration()
	rollback := func() {
		c.registry.Reinstate(retired)
		c.pipelines.Reinstate(contribution)
		detached.Reattach(c.world)
		c.current = retiring
		c.clearCrashFiles()
	}

	c.transition(Loading)
	loaded, err := c.loader.Load(artifact.Path)
	if err != nil {
		rollback()
		c.rejectedModTime = artifact.ModTime
		c.fail(artifactDigest, fmt.Errorf("loading %s: %w", artifact.Path, err))
		return nil
	}
	artifactDigest = loaded.Digest()
	journal.Digest = artifactDigest
	c.writeJournal(journal)

	c.transition(Registering)
	register, err := module.EntryPoint[RegisterFunc](loaded, c.symbol)
	if err != nil {
		c.closeModule(loaded)
		rollback()
		c.crashed[artifactDigest] = true
		fatal := &FatalError{Module: c.options.ModuleName, Symbol: c.symbol, Digest: artifactDigest, Err: err}
		c.fail(artifactDigest, fatal)
		return fatal
	}
	if err := callRegister(register, c.newRegistrar(next)); err != nil {
		c.closeModule(loaded)
		rollback()
		c.crashed[artifactDigest] = true
		c.fail(artifactDigest, err)
		return nil
	}
	c.pipelines.Commit()

	c.transition(Deserializing)
	c.registry.RestoreAll(snapshot, c.world)
	c.recovered = nil
	c.clearCrashFiles()
	if retiring != nil {
		c.closeModule(retiring)
	}
	c.current = loaded
	c.currentModTime = artifact.ModTime
	c.lastSwap = now
	c.fallback = false

	c.transition(Notifying)
	c.generation = Generation{Number: next, Timestamp: now}
	c.lastError = ""
	logger.Info("module reloaded",
		"artifact", artifact.Path,
		"pipelines", c.pipelines.Touched(),
		"state_types", c.registry.Len(),
	)
	c.broadcast(Event{Generation: c.generation, Digest: artifactDigest})
	c.writeStatus()
	c.transition(Idle)
	return nil
}

// fail finishes an aborted cycle: the rollback has already happened.
func (c *Coordinator) fail(artifactDigest digest.Digest, err error) {
	c.failures++
	c.lastError = err.Error()
	c.logger.Error("reload aborted, keeping previous module",
		"generation", c.generation.Number,
		"digest", artifactDigest.Short(),
		"error", err,
	)
	c.broadcast(Event{Generation: c.generation, Digest: artifactDigest, Err: err})
	c.writeStatus()
	c.transition(Idle)
}

func (c *Coordinator) newRegistrar(generation uint64) *registrar {
	return &registrar{
		pipelines:  c.pipelines,
		states:     c.registry.Module(),
		generation: generation,
		logger:     c.logger.With("generation", generation),
	}
}

// mergeRecovered adds values spilled by a crashed process for types the
// running application has no value for yet.
func (c *Coordinator) mergeRecovered(snapshot *state.Snapshot) {
	if c.recovered == nil {
		return
	}
	for name, data := range c.recovered.Singletons {
		if _, ok := snapshot.Singletons[name]; !ok {
			snapshot.Singletons[name] = data
		}
	}
	for name, values := range c.recovered.Instances {
		if _, ok := snapshot.Instances[name]; !ok {
			snapshot.Instances[name] = values
		}
	}
}

func (c *Coordinator) writeCrashFiles(journal watchdog.State, snapshot *state.Snapshot) {
	if c.options.SpillPath != "" {
		if err := state.WriteSpill(c.options.SpillPath, snapshot); err != nil {
			c.logger.Warn("writing spill file", "path", c.options.SpillPath, "error", err)
		}
	}
	c.writeJournal(journal)
}

func (c *Coordinator) writeJournal(journal watchdog.State) {
	if c.options.JournalPath == "" {
		return
	}
	if err := watchdog.Write(c.options.JournalPath, journal); err != nil {
		c.logger.Warn("writing reload journal", "path", c.options.JournalPath, "error", err)
	}
}

func (c *Coordinator) clearCrashFiles() {
	if c.options.JournalPath != "" {
		if err := watchdog.Clear(c.options.JournalPath); err != nil {
			c.logger.Warn("clearing reload journal", "error", err)
		}
	}
	if c.options.SpillPath != "" {
		if err := state.RemoveSpill(c.options.SpillPath); err != nil {
			c.logger.Warn("removing spill file", "error", err)
		}
	}
}

func (c *Coordinator) closeModule(m *module.Module) {
	if err := m.Close(); err != nil {
		c.logger.Warn("closing module", "private_path", m.PrivatePath(), "error", err)
	}
}

func (c *Coordinator) broadcast(event Event) {
	for _, channel := range c.subscribers {
		select {
		case channel <- event:
		default:
			c.logger.Warn("dropping reload event for slow subscriber", "generation", event.Generation.Number)
		}
	}
}

func (c *Coordinator) transition(to Phase) {
	from := c.phase
	c.phase = to
	if c.options.OnTransition != nil {
		c.options.OnTransition(from, to)
	}
}

// Status returns a description of the coordinator.
func (c *Coordinator) Status() Status {
	status := Status{
		Module:     c.options.ModuleName,
		Symbol:     c.symbol,
		PID:        os.Getpid(),
		Generation: c.generation,
		Fallback:   c.fallback,
		Artifact:   c.options.ArtifactPath,
		Pipelines:  c.pipelines.Touched(),
		Failures:   c.failures,
		LastError:  c.lastError,
		UpdatedAt:  c.clock.Now(),
	}
	for _, entry := range c.registry.Entries() {
		status.StateTypes = append(status.StateTypes, entry.Name)
	}
	if c.current != nil {
		status.Digest = c.current.Digest()
		status.PrivatePath = c.current.PrivatePath()
		status.LoadedAt = c.current.LoadedAt()
	}
	return status
}

func (c *Coordinator) writeStatus() {
	if c.options.StatusPath == "" {
		return
	}
	if err := WriteStatus(c.options.StatusPath, c.Status()); err != nil {
		c.logger.Warn("writing status file", "path", c.options.StatusPath, "error", err)
	}
}
