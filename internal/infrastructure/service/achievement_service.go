package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/questline-hub/questline-bot/internal/domain/achievement"
	"github.com/questline-hub/questline-bot/internal/domain/shared"
	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/postgres"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT SERVICE
// The unlock row and the reward payout share one transaction: a user
// either holds the achievement with its coins and exp credited, or
// neither. Duplicate unlocks surface as achievement.ErrAlreadyUnlocked
// and pay nothing.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementService owns the unlock workflow.
type AchievementService struct {
	sessions Sessions
	repos    TxRepos
	cache    user.Cache
	bus      shared.EventBus
	logger   *slog.Logger
}

// NewAchievementService creates the achievement workflow service. Cache
// and bus may be nil.
func NewAchievementService(sessions Sessions, repos TxRepos, cache user.Cache, bus shared.EventBus, logger *slog.Logger) *AchievementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AchievementService{
		sessions: sessions,
		repos:    repos,
		cache:    cache,
		bus:      bus,
		logger:   logger.With("component", "achievementservice"),
	}
}

// Unlock grants the achievement and credits its rewards to the user in
// one transaction. A partial progress row is raised to complete; data is
// free-form unlock context stored with a fresh row. Returns
// achievement.ErrNotActive for disabled achievements and
// achievement.ErrAlreadyUnlocked for repeat unlocks.
func (s *AchievementService) Unlock(ctx context.Context, userID int64, achievementID achievement.ID, data json.RawMessage) (*achievement.Achievement, error) {
	var (
		ach                *achievement.Achievement
		rewarded           bool
		oldLevel, newLevel int
	)
	err := s.sessions.Run(ctx, func(ctx context.Context, q postgres.Querier) error {
		achievements := s.repos.Achievements(q)
		unlocks := s.repos.Unlocks(q)
		users := s.repos.Users(q)

		a, err := achievements.GetByID(ctx, achievementID)
		if err != nil {
			return err
		}
		if !a.CanUnlock() {
			return achievement.ErrNotActive
		}

		existing, err := unlocks.Get(ctx, userID, a.ID)
		switch {
		case err == nil && existing.Progress.IsComplete():
			return achievement.ErrAlreadyUnlocked
		case err == nil:
			if err := unlocks.UpdateProgress(ctx, userID, a.ID, achievement.ProgressComplete); err != nil {
				return err
			}
		case errors.Is(err, achievement.ErrNotFound):
			unlock, err := achievement.NewUnlock(userID, a.ID, data)
			if err != nil {
				return err
			}
			// Concurrent first unlocks race to this insert; the loser
			// gets the unique violation and rolls back without payout.
			if err := unlocks.Save(ctx, unlock); err != nil {
				return err
			}
		default:
			return err
		}

		if a.HasReward() {
			u, err := users.GetByID(ctx, user.ID(userID))
			if err != nil {
				return err
			}
			u.AddCoins(a.CoinReward)
			oldLevel, newLevel = u.AddExp(a.ExpReward)
			if err := users.Update(ctx, u); err != nil {
				return err
			}
			rewarded = true
		}

		ach = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rewarded {
		invalidateUser(ctx, s.cache, s.logger, user.ID(userID))
	}
	s.logger.Info("achievement unlocked",
		"user_id", userID,
		"achievement", ach.Name,
		"rarity", ach.Rarity.String())
	publishEvent(s.bus, s.logger, shared.NewAchievementUnlockedEvent(
		userID, int32(ach.ID), ach.Name, ach.Rarity.String(), ach.CoinReward, ach.ExpReward))
	if newLevel > oldLevel {
		publishEvent(s.bus, s.logger, shared.NewLevelUpEvent(userID, oldLevel, newLevel))
	}
	return ach, nil
}

// UnlockByName resolves the achievement by name, then unlocks it.
func (s *AchievementService) UnlockByName(ctx context.Context, userID int64, name string, data json.RawMessage) (*achievement.Achievement, error) {
	var id achievement.ID
	err := s.sessions.RunReadOnly(ctx, func(ctx context.Context, q postgres.Querier) error {
		a, err := s.repos.Achievements(q).GetByName(ctx, name)
		if err != nil {
			return err
		}
		id = a.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Unlock(ctx, userID, id, data)
}

// TrackProgress records progress toward an achievement, creating the
// progress row on first report and completing the unlock with rewards
// when progress reaches 100. Progress never moves backwards: reports at
// or below the stored value are no-ops, including reports after the
// achievement is already complete.
func (s *AchievementService) TrackProgress(ctx context.Context, userID int64, achievementID achievement.ID, p achievement.Progress) error {
	if !p.IsValid() {
		return achievement.ErrInvalidProgress
	}
	if p.IsComplete() {
		_, err := s.Unlock(ctx, userID, achievementID, nil)
		if errors.Is(err, achievement.ErrAlreadyUnlocked) {
			return nil
		}
		return err
	}

	return s.sessions.Run(ctx, func(ctx context.Context, q postgres.Querier) error {
		unlocks := s.repos.Unlocks(q)

		existing, err := unlocks.Get(ctx, userID, achievementID)
		if errors.Is(err, achievement.ErrNotFound) {
			partial, err := achievement.NewPartialUnlock(userID, achievementID, p)
			if err != nil {
				return err
			}
			return unlocks.Save(ctx, partial)
		}
		if err != nil {
			return err
		}
		if p <= existing.Progress {
			return nil
		}
		return unlocks.UpdateProgress(ctx, userID, achievementID, p)
	})
}
