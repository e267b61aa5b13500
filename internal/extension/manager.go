package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/cog"
	"github.com/questline-hub/questline-bot/internal/domain/shared"
	"github.com/questline-hub/questline-bot/internal/interface/discord"
)

// ══════════════════════════════════════════════════════════════════════════════
// MANAGER
// Owns the lifecycle of every registered extension and the command
// table built from the loaded ones. All lifecycle transitions happen
// under one write lock, so concurrent reloads serialize instead of
// interleaving their unload and load halves. Command lookups take the
// read lock and copy the command out, so handlers always run outside
// the lock.
// ══════════════════════════════════════════════════════════════════════════════

// Manager loads, unloads, and tracks extensions.
type Manager struct {
	mu       sync.RWMutex
	registry *Registry
	deps     Deps
	logger   *slog.Logger

	entries map[cog.Module]*entry
	table   map[string]tableSlot
}

// entry tracks one registered extension's lifecycle.
type entry struct {
	ext      Extension
	state    State
	version  string
	loadedAt time.Time
	errText  string
	names    []string
}

// tableSlot binds a command to the module that contributed it.
type tableSlot struct {
	cmd   discord.Command
	owner cog.Module
}

// NewManager creates a manager over the given registry. The manager
// wires itself into the deps it hands to factories, so operator cogs
// can drive the lifecycle of their peers.
func NewManager(registry *Registry, deps Deps, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		registry: registry,
		logger:   logger.With("component", "extensions"),
		entries:  make(map[cog.Module]*entry),
		table:    make(map[string]tableSlot),
	}

	deps.Manager = m
	m.deps = deps

	for _, module := range registry.Modules() {
		m.entries[module] = &entry{state: StateRegistered}
	}

	return m
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Load brings a registered extension live.
func (m *Manager) Load(ctx context.Context, module cog.Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx, module)
}

// Unload takes a loaded extension down and removes its commands.
func (m *Manager) Unload(ctx context.Context, module cog.Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unloadLocked(ctx, module)
}

// Reload replaces a loaded extension with a fresh instance. When the
// load half fails the extension stays down in state "unloaded": the old
// instance is gone and nothing replaced it.
func (m *Manager) Reload(ctx context.Context, module cog.Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entries[module]
	if !ok {
		return fmt.Errorf("%w: %s", ErrExtensionNotFound, module)
	}
	if ent.state != StateLoaded {
		return fmt.Errorf("%w: %s", ErrNotLoaded, module)
	}

	if err := m.unloadLocked(ctx, module); err != nil {
		return err
	}

	if err := m.loadLocked(ctx, module); err != nil {
		ent.state = StateUnloaded
		return err
	}

	m.publish(shared.NewCogLifecycleEvent(shared.EventCogReloaded, module.String()))
	return nil
}

// LoadAll loads every registered extension whose registry record allows
// it, in registration order. One extension failing does not stop the
// others; the error joins every individual failure.
func (m *Manager) LoadAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var loaded int
	var errs []error

	for _, module := range m.registry.Modules() {
		if !m.startupEnabled(ctx, module) {
			m.logger.Info("extension disabled, skipping", "module", module)
			continue
		}

		err := m.loadLocked(ctx, module)
		switch {
		case err == nil:
			loaded++
		case errors.Is(err, ErrAlreadyLoaded):
			loaded++
		default:
			m.logger.Error("extension failed to load", "module", module, "error", err)
			errs = append(errs, err)
		}
	}

	return loaded, errors.Join(errs...)
}

// UnloadAll takes down every loaded extension in reverse registration
// order.
func (m *Manager) UnloadAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	modules := m.registry.Modules()
	for i := len(modules) - 1; i >= 0; i-- {
		ent, ok := m.entries[modules[i]]
		if !ok || ent.state != StateLoaded {
			continue
		}
		if err := m.unloadLocked(ctx, modules[i]); err != nil {
			m.logger.Warn("unload during shutdown", "module", modules[i], "error", err)
		}
	}
}

// Disable unloads the extension if loaded and marks it disabled in the
// registry table, so it will not come back on the next start.
func (m *Manager) Disable(ctx context.Context, module cog.Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registry.Contains(module) {
		return fmt.Errorf("%w: %s", ErrExtensionNotFound, module)
	}

	if ent, ok := m.entries[module]; ok && ent.state == StateLoaded {
		if err := m.unloadLocked(ctx, module); err != nil {
			return err
		}
	}

	return m.persistEnabled(ctx, module, false)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCKED TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// loadLocked performs the load transition. Callers hold the write lock.
func (m *Manager) loadLocked(ctx context.Context, module cog.Module) error {
	ent, ok := m.entries[module]
	if !ok {
		if !m.registry.Contains(module) {
			return fmt.Errorf("%w: %s", ErrExtensionNotFound, module)
		}
		ent = &entry{state: StateRegistered}
		m.entries[module] = ent
	}

	if ent.state == StateLoaded {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, module)
	}

	factory, ok := m.registry.Factory(module)
	if !ok {
		return fmt.Errorf("%w: %s", ErrExtensionNotFound, module)
	}

	ext, err := m.instantiate(ctx, factory)
	if err != nil {
		ent.state = StateFailed
		ent.errText = err.Error()
		m.publish(shared.NewCogLifecycleEvent(shared.EventCogFailed, module.String()).WithFailure(err.Error()))
		return fmt.Errorf("%w: %s: %v", ErrLoadFailed, module, err)
	}

	commands := ext.Commands()
	names := commandNames(commands)

	// Reject the whole load on any name collision, before touching
	// the table
	for _, name := range names {
		if slot, taken := m.table[name]; taken {
			m.teardown(ctx, ext)
			ent.state = StateFailed
			ent.errText = fmt.Sprintf("command %q already owned by %s", name, slot.owner)
			return fmt.Errorf("%w: %s: command %q already owned by %s",
				ErrCommandConflict, module, name, slot.owner)
		}
	}

	for _, c := range commands {
		m.table[strings.ToLower(c.Name)] = tableSlot{cmd: c, owner: module}
		for _, alias := range c.Aliases {
			m.table[strings.ToLower(alias)] = tableSlot{cmd: c, owner: module}
		}
	}

	now := time.Now().UTC()
	ent.ext = ext
	ent.state = StateLoaded
	ent.version = ext.Version()
	ent.loadedAt = now
	ent.errText = ""
	ent.names = names

	m.persistLoaded(ctx, module, ent.version, now)
	m.publish(shared.NewCogLifecycleEvent(shared.EventCogLoaded, module.String()))

	m.logger.Info("extension loaded",
		"module", module,
		"version", ent.version,
		"commands", len(names),
	)

	return nil
}

// unloadLocked performs the unload transition. Callers hold the write
// lock. Teardown always completes: a panicking OnUnload still ends with
// the commands gone and the state at "unloaded".
func (m *Manager) unloadLocked(ctx context.Context, module cog.Module) error {
	ent, ok := m.entries[module]
	if !ok {
		if !m.registry.Contains(module) {
			return fmt.Errorf("%w: %s", ErrExtensionNotFound, module)
		}
		return fmt.Errorf("%w: %s", ErrNotLoaded, module)
	}
	if ent.state != StateLoaded {
		return fmt.Errorf("%w: %s", ErrNotLoaded, module)
	}

	m.teardown(ctx, ent.ext)

	for _, name := range ent.names {
		if slot, taken := m.table[name]; taken && slot.owner == module {
			delete(m.table, name)
		}
	}

	ent.ext = nil
	ent.state = StateUnloaded
	ent.names = nil

	m.publish(shared.NewCogLifecycleEvent(shared.EventCogUnloaded, module.String()))
	m.logger.Info("extension unloaded", "module", module)

	return nil
}

// instantiate runs the factory and OnLoad with panic containment.
func (m *Manager) instantiate(ctx context.Context, factory Factory) (ext Extension, err error) {
	defer func() {
		if r := recover(); r != nil {
			ext = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ext = factory(m.deps)
	if ext == nil {
		return nil, errors.New("factory returned nil")
	}

	if err := ext.OnLoad(ctx); err != nil {
		return nil, err
	}

	return ext, nil
}

// teardown runs OnUnload, containing errors and panics.
func (m *Manager) teardown(ctx context.Context, ext Extension) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic in extension teardown", "module", ext.Module(), "panic", r)
		}
	}()

	if err := ext.OnUnload(ctx); err != nil {
		m.logger.Warn("extension teardown error", "module", ext.Module(), "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY TABLE PERSISTENCE
// ══════════════════════════════════════════════════════════════════════════════

// startupEnabled consults the cogs table. Missing rows and lookup
// failures count as enabled: the compiled-in manifest is the source of
// truth until an operator disables something.
func (m *Manager) startupEnabled(ctx context.Context, module cog.Module) bool {
	if m.deps.Cogs == nil {
		return true
	}

	rec, err := m.deps.Cogs.Get(ctx, module)
	if errors.Is(err, cog.ErrRecordNotFound) {
		return true
	}
	if err != nil {
		m.logger.Warn("cog registry lookup failed", "module", module, "error", err)
		return true
	}

	return rec.IsEnabled
}

// persistLoaded records a successful load. Bookkeeping failures are
// logged, never fatal: the extension is already serving.
func (m *Manager) persistLoaded(ctx context.Context, module cog.Module, version string, at time.Time) {
	if m.deps.Cogs == nil {
		return
	}

	rec, err := cog.NewRecord(module, version)
	if err != nil {
		m.logger.Warn("cog registry record", "module", module, "error", err)
		return
	}
	rec.MarkLoaded(version, at)

	if err := m.deps.Cogs.Upsert(ctx, rec); err != nil {
		m.logger.Warn("cog registry upsert failed", "module", module, "error", err)
	}
}

// persistEnabled writes the enabled flag, creating the row when needed.
func (m *Manager) persistEnabled(ctx context.Context, module cog.Module, enabled bool) error {
	if m.deps.Cogs == nil {
		return nil
	}

	err := m.deps.Cogs.SetEnabled(ctx, module, enabled)
	if !errors.Is(err, cog.ErrRecordNotFound) {
		return err
	}

	rec, recErr := cog.NewRecord(module, "")
	if recErr != nil {
		return recErr
	}
	if !enabled {
		rec.Disable()
	}
	return m.deps.Cogs.Upsert(ctx, rec)
}

// publish forwards a lifecycle event, when a bus is wired.
func (m *Manager) publish(event shared.Event) {
	if m.deps.Bus == nil {
		return
	}
	if err := m.deps.Bus.Publish(event); err != nil {
		m.logger.Warn("publish lifecycle event", "type", event.EventType(), "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND TABLE
// ══════════════════════════════════════════════════════════════════════════════

// Lookup resolves a command by name or alias against loaded extensions.
func (m *Manager) Lookup(name string) (discord.Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, ok := m.table[strings.ToLower(name)]
	return slot.cmd, ok
}

// Commands returns every available command once, sorted by name.
func (m *Manager) Commands() []discord.Command {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]discord.Command, 0, len(m.table))
	for name, slot := range m.table {
		if name == strings.ToLower(slot.cmd.Name) {
			out = append(out, slot.cmd)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HandlerCount returns how many names the command table serves,
// aliases included.
func (m *Manager) HandlerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.table)
}

// ══════════════════════════════════════════════════════════════════════════════
// INTROSPECTION
// ══════════════════════════════════════════════════════════════════════════════

// Status reports one extension's lifecycle state.
func (m *Manager) Status(module cog.Module) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ent, ok := m.entries[module]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrExtensionNotFound, module)
	}

	return statusOf(module, ent), nil
}

// Statuses reports every registered extension, sorted by module name.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.entries))
	for module, ent := range m.entries {
		out = append(out, statusOf(module, ent))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}

func statusOf(module cog.Module, ent *entry) Status {
	s := Status{
		Module:   module,
		State:    ent.state,
		Version:  ent.version,
		Commands: len(ent.names),
		Error:    ent.errText,
	}
	if ent.state == StateLoaded {
		at := ent.loadedAt
		s.LoadedAt = &at
	}
	return s
}

// commandNames flattens names and aliases, lowercased for the table.
func commandNames(commands []discord.Command) []string {
	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, strings.ToLower(c.Name))
		for _, alias := range c.Aliases {
			names = append(names, strings.ToLower(alias))
		}
	}
	return names
}
