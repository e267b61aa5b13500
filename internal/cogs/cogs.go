// Package cogs pulls every built-in extension into the binary. Each
// subpackage registers itself in init(); importing this package is all
// cmd/bot needs to make them available to the manager.
package cogs

import (
	_ "github.com/questline-hub/questline-bot/internal/cogs/achievements"
	_ "github.com/questline-hub/questline-bot/internal/cogs/dev"
	_ "github.com/questline-hub/questline-bot/internal/cogs/events"
	_ "github.com/questline-hub/questline-bot/internal/cogs/greet"
	_ "github.com/questline-hub/questline-bot/internal/cogs/users"
)
