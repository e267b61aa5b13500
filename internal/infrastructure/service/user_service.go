package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/shared"
	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/postgres"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER SERVICE
// Account workflows: registration upserts, balance adjustments and
// moderation. Every write runs select, mutate, update inside one
// transaction; domain events go on the bus only after the commit.
// ══════════════════════════════════════════════════════════════════════════════

// UserService owns user account workflows.
type UserService struct {
	sessions Sessions
	repos    TxRepos
	cache    user.Cache
	bus      shared.EventBus
	logger   *slog.Logger
}

// NewUserService creates the user workflow service. Cache and bus may be
// nil; the service then works against the database alone.
func NewUserService(sessions Sessions, repos TxRepos, cache user.Cache, bus shared.EventBus, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		sessions: sessions,
		repos:    repos,
		cache:    cache,
		bus:      bus,
		logger:   logger.With("component", "userservice"),
	}
}

// CreateOrUpdateUser registers the account on first contact or applies
// the patch to the existing one. Returns the account as stored.
func (s *UserService) CreateOrUpdateUser(ctx context.Context, id user.ID, patch user.Patch) (*user.User, error) {
	var (
		u       *user.User
		created bool
	)
	err := s.sessions.Run(ctx, func(ctx context.Context, q postgres.Querier) error {
		users := s.repos.Users(q)

		existing, err := users.GetByID(ctx, id)
		if errors.Is(err, user.ErrUserNotFound) {
			fresh, err := user.New(id)
			if err != nil {
				return err
			}
			if err := fresh.Apply(patch, time.Now().UTC()); err != nil {
				return err
			}
			if err := users.Create(ctx, fresh); err != nil {
				return err
			}
			u, created = fresh, true
			return nil
		}
		if err != nil {
			return err
		}

		if patch.IsEmpty() {
			u = existing
			return nil
		}
		if err := existing.Apply(patch, time.Now().UTC()); err != nil {
			return err
		}
		if err := users.Update(ctx, existing); err != nil {
			return err
		}
		u = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateUser(ctx, s.cache, s.logger, id)
	if created {
		s.logger.Info("user registered", "user_id", id.Int64())
		publishEvent(s.bus, s.logger, shared.NewUserRegisteredEvent(id.Int64(), u.DisplayName(), 0))
	}
	return u, nil
}

// AdjustBalance applies coin and exp deltas in one transaction. Balances
// floor at zero instead of going negative. Level boundary crossings are
// reported on the bus; source names the feature granting the reward.
func (s *UserService) AdjustBalance(ctx context.Context, id user.ID, coinsDelta, expDelta int, source string) (*user.User, error) {
	var (
		u                  *user.User
		oldLevel, newLevel int
	)
	err := s.sessions.Run(ctx, func(ctx context.Context, q postgres.Querier) error {
		users := s.repos.Users(q)

		current, err := users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if coinsDelta != 0 {
			current.AddCoins(coinsDelta)
		}
		oldLevel, newLevel = current.Level(), current.Level()
		if expDelta != 0 {
			oldLevel, newLevel = current.AddExp(expDelta)
		}
		if err := users.Update(ctx, current); err != nil {
			return err
		}
		u = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateUser(ctx, s.cache, s.logger, id)
	if coinsDelta != 0 {
		publishEvent(s.bus, s.logger, shared.NewCoinsAdjustedEvent(id.Int64(), coinsDelta, int(u.Coins), source))
	}
	if expDelta != 0 {
		publishEvent(s.bus, s.logger, shared.NewExpGainedEvent(id.Int64(), expDelta, int(u.Exp), source))
	}
	if newLevel > oldLevel {
		s.logger.Info("user leveled up", "user_id", id.Int64(), "old_level", oldLevel, "new_level", newLevel)
		publishEvent(s.bus, s.logger, shared.NewLevelUpEvent(id.Int64(), oldLevel, newLevel))
	}
	return u, nil
}

// Ban blocks the account. Banning an already banned user is a no-op.
func (s *UserService) Ban(ctx context.Context, id user.ID, bannedBy int64, reason string) error {
	changed := false
	err := s.sessions.Run(ctx, func(ctx context.Context, q postgres.Querier) error {
		users := s.repos.Users(q)

		u, err := users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if u.IsBanned {
			return nil
		}
		u.Ban()
		if err := users.Update(ctx, u); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		invalidateUser(ctx, s.cache, s.logger, id)
		s.logger.Info("user banned", "user_id", id.Int64(), "banned_by", bannedBy, "reason", reason)
		publishEvent(s.bus, s.logger, shared.NewUserBannedEvent(id.Int64(), bannedBy, reason))
	}
	return nil
}

// Unban lifts the block. Unbanning a user who is not banned is a no-op.
func (s *UserService) Unban(ctx context.Context, id user.ID, unbannedBy int64) error {
	changed := false
	err := s.sessions.Run(ctx, func(ctx context.Context, q postgres.Querier) error {
		users := s.repos.Users(q)

		u, err := users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !u.IsBanned {
			return nil
		}
		u.Unban()
		if err := users.Update(ctx, u); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		invalidateUser(ctx, s.cache, s.logger, id)
		s.logger.Info("user unbanned", "user_id", id.Int64(), "unbanned_by", unbannedBy)
		publishEvent(s.bus, s.logger, shared.NewUserUnbannedEvent(id.Int64(), unbannedBy))
	}
	return nil
}
