// Package service carries the application workflows that span more than
// one repository call: account registration, balance adjustments,
// achievement unlocks with reward payout, and status channel
// announcements. Workflows that write run inside a single database
// session so their effects commit or roll back together.
package service

import (
	"context"
	"log/slog"

	"github.com/questline-hub/questline-bot/internal/domain/achievement"
	"github.com/questline-hub/questline-bot/internal/domain/shared"
	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/postgres"
)

// Sessions runs units of work in database sessions. Satisfied by
// postgres.SessionManager.
type Sessions interface {
	Run(ctx context.Context, fn postgres.SessionFunc) error
	RunReadOnly(ctx context.Context, fn postgres.SessionFunc) error
}

// TxRepos hands out repositories bound to one session's querier, so a
// workflow can compose several repositories inside one transaction.
type TxRepos interface {
	Users(q postgres.Querier) user.Repository
	Achievements(q postgres.Querier) achievement.Repository
	Unlocks(q postgres.Querier) achievement.UnlockRepository
}

// PostgresRepos is the production TxRepos implementation.
type PostgresRepos struct{}

func (PostgresRepos) Users(q postgres.Querier) user.Repository {
	return postgres.NewUserRepository(q)
}

func (PostgresRepos) Achievements(q postgres.Querier) achievement.Repository {
	return postgres.NewAchievementRepository(q)
}

func (PostgresRepos) Unlocks(q postgres.Querier) achievement.UnlockRepository {
	return postgres.NewUnlockRepository(q)
}

// publishEvent sends e on the bus. Publish failures are logged, not
// returned: the database work already committed and stands.
func publishEvent(bus shared.EventBus, logger *slog.Logger, e shared.Event) {
	if bus == nil {
		return
	}
	if err := bus.Publish(e); err != nil {
		logger.Warn("event publish failed", "type", e.EventType(), "error", err)
	}
}

// invalidateUser drops the cached copy of the user after a write.
func invalidateUser(ctx context.Context, cache user.Cache, logger *slog.Logger, id user.ID) {
	if cache == nil {
		return
	}
	if err := cache.Delete(ctx, id); err != nil {
		logger.Warn("user cache invalidation failed", "user_id", id.Int64(), "error", err)
	}
}
