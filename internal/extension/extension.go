// Package extension implements the cog lifecycle: registration at init
// time, loading and unloading at runtime, and the command table the
// dispatcher resolves against. Cogs register a factory in the package
// registry; the manager turns factories into live extensions and owns
// every handler they contribute, so unloading a cog atomically removes
// its commands from dispatch.
package extension

import (
	"context"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/cog"
	"github.com/questline-hub/questline-bot/internal/interface/discord"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE STATES
// ══════════════════════════════════════════════════════════════════════════════

// State is the lifecycle state of a registered extension.
type State int

const (
	// StateRegistered means the factory is known but never loaded.
	StateRegistered State = iota

	// StateLoaded means the extension is live and serving commands.
	StateLoaded

	// StateUnloaded means the extension was loaded and then taken down.
	StateUnloaded

	// StateFailed means the last load attempt errored or panicked.
	StateFailed
)

// String returns the state name for logs and operator output.
func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateLoaded:
		return "loaded"
	case StateUnloaded:
		return "unloaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EXTENSION CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// Extension is one loadable bot module.
type Extension interface {
	// Module returns the stable module name, e.g. "cogs.dev".
	Module() cog.Module

	// Version returns the extension version recorded on load.
	Version() string

	// Commands returns the commands this extension contributes.
	// Called once per load, after OnLoad succeeds.
	Commands() []discord.Command

	// OnLoad prepares the extension. Returning an error aborts the load.
	OnLoad(ctx context.Context) error

	// OnUnload releases whatever OnLoad acquired. Errors are logged,
	// never fatal; teardown always completes.
	OnUnload(ctx context.Context) error
}

// Status describes one registered extension for operator commands.
type Status struct {
	// Module is the extension's module name.
	Module cog.Module

	// State is the current lifecycle state.
	State State

	// Version is the extension version (empty before first load).
	Version string

	// Commands is how many command names the extension serves right now.
	Commands int

	// LoadedAt is when the current load happened (nil unless loaded).
	LoadedAt *time.Time

	// Error is the failure text from the last failed load, if any.
	Error string
}
