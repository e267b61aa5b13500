package extension

import (
	"log/slog"

	"github.com/questline-hub/questline-bot/config"
	"github.com/questline-hub/questline-bot/internal/domain/achievement"
	"github.com/questline-hub/questline-bot/internal/domain/cog"
	"github.com/questline-hub/questline-bot/internal/domain/event"
	"github.com/questline-hub/questline-bot/internal/domain/game"
	"github.com/questline-hub/questline-bot/internal/domain/role"
	"github.com/questline-hub/questline-bot/internal/domain/shared"
	"github.com/questline-hub/questline-bot/internal/domain/usage"
	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/postgres"
	"github.com/questline-hub/questline-bot/internal/infrastructure/scheduler"
	"github.com/questline-hub/questline-bot/internal/infrastructure/service"
	"github.com/questline-hub/questline-bot/internal/interface/discord/middleware"

	discordapi "github.com/questline-hub/questline-bot/internal/infrastructure/external/discord"
)

// Deps aggregates everything a cog may need. Factories receive it once
// and keep what they use; fields a cog ignores cost nothing.
type Deps struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Config is the loaded application configuration.
	Config *config.Config

	// Flags gates optional cog behavior at runtime.
	Flags *config.FeatureFlags

	// Sessions coordinates database transactions.
	Sessions *postgres.SessionManager

	// Repositories
	Users        user.Repository
	Cogs         cog.Repository
	Games        game.Repository
	Profiles     game.ProfileRepository
	Events       event.Repository
	EventLogs    event.LogRepository
	Achievements achievement.Repository
	Unlocks      achievement.UnlockRepository
	Roles        role.Repository
	Usages       usage.Repository

	// Workflow services
	UserService        *service.UserService
	AchievementService *service.AchievementService

	// UserCache is the Redis-backed user cache (may be nil).
	UserCache user.Cache

	// Bus carries domain events between components.
	Bus shared.EventBus

	// Scheduler runs background jobs; operator cogs inspect it.
	Scheduler *scheduler.Scheduler

	// LogLevel is the process-wide level the loglevel command adjusts.
	LogLevel *slog.LevelVar

	// Client is the Discord REST client.
	Client *discordapi.Client

	// Stats holds runtime dispatch counters.
	Stats *middleware.BotStats

	// Manager is the extension manager itself, for operator cogs that
	// load, unload, and inspect other extensions.
	Manager *Manager
}
