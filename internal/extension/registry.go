package extension

import (
	"fmt"
	"sync"

	"github.com/questline-hub/questline-bot/internal/domain/cog"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// Maps module names to factories. Cogs self-register from init(), so
// importing a cog package is what makes it available; the registry is
// the compiled-in manifest LoadAll walks at startup.
// ══════════════════════════════════════════════════════════════════════════════

// Factory builds a fresh extension instance. The manager calls it on
// every load, so a reload starts from clean state.
type Factory func(deps Deps) Extension

// Registry holds extension factories in registration order.
type Registry struct {
	mu        sync.RWMutex
	factories map[cog.Module]Factory
	order     []cog.Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[cog.Module]Factory),
	}
}

// Register adds a factory for the module.
func (r *Registry) Register(module cog.Module, factory Factory) error {
	if !module.IsValid() {
		return fmt.Errorf("%w: %q", cog.ErrInvalidModule, module)
	}
	if factory == nil {
		return fmt.Errorf("nil factory for module %q", module)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[module]; exists {
		return fmt.Errorf("module %q registered twice", module)
	}

	r.factories[module] = factory
	r.order = append(r.order, module)
	return nil
}

// Contains reports whether the module is registered.
func (r *Registry) Contains(module cog.Module) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[module]
	return ok
}

// Factory returns the factory for the module.
func (r *Registry) Factory(module cog.Module) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[module]
	return f, ok
}

// Modules returns all registered modules in registration order.
func (r *Registry) Modules() []cog.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]cog.Module, len(r.order))
	copy(out, r.order)
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFAULT REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry cogs register into.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a factory to the default registry. It panics on
// duplicate or invalid modules: both are programmer errors that must
// surface at startup, not at load time.
func Register(module cog.Module, factory Factory) {
	if err := defaultRegistry.Register(module, factory); err != nil {
		panic(fmt.Sprintf("extension: %v", err))
	}
}
