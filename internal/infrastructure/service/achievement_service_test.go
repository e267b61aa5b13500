package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/questline-hub/questline-bot/internal/domain/achievement"
	"github.com/questline-hub/questline-bot/internal/domain/shared"
	"github.com/questline-hub/questline-bot/internal/domain/user"
)

func newAchievementHarness() (*AchievementService, *fakeSessions, *fakeRepos, *fakeCache, *fakeBus) {
	sessions := &fakeSessions{}
	repos := newFakeRepos()
	cache := &fakeCache{}
	bus := &fakeBus{}
	svc := NewAchievementService(sessions, repos, cache, bus, testLogger())
	return svc, sessions, repos, cache, bus
}

func seedAchievement(repos *fakeRepos, id achievement.ID, name string, coins, exp int, active bool) *achievement.Achievement {
	a := &achievement.Achievement{
		ID:          id,
		Name:        name,
		Description: "granted in tests",
		Rarity:      achievement.RarityCommon,
		CoinReward:  coins,
		ExpReward:   exp,
		IsActive:    active,
		CreatedAt:   time.Now().UTC(),
	}
	repos.achs.byID[id] = a
	return a
}

func seedUnlock(repos *fakeRepos, userID int64, id achievement.ID, p achievement.Progress) {
	repos.unlocks.rows[unlockKey{userID, id}] = &achievement.Unlock{
		UserID:        userID,
		AchievementID: id,
		Progress:      p,
		UnlockedAt:    time.Now().UTC(),
		UnlockData:    json.RawMessage("{}"),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Unlock
// ─────────────────────────────────────────────────────────────────────────────

func TestUnlockGrantsAndPaysRewards(t *testing.T) {
	svc, sessions, repos, cache, bus := newAchievementHarness()
	seedAchievement(repos, 1, "First Steps", 50, 100, true)
	seedUser(t, repos, 42, 0, 0)

	ach, err := svc.Unlock(context.Background(), 42, 1, json.RawMessage(`{"command":"register"}`))
	assert.NoError(t, err)
	assert.Equal(t, "First Steps", ach.Name)

	// Unlock row and reward payout landed in the same session.
	assert.Equal(t, 1, sessions.runs)
	row := repos.unlocks.rows[unlockKey{42, 1}]
	assert.NotNil(t, row)
	assert.True(t, row.Progress.IsComplete())

	granted := repos.users.users[42]
	assert.Equal(t, user.Coins(50), granted.Coins)
	assert.Equal(t, user.Exp(100), granted.Exp)

	assert.Equal(t, 1, cache.deletes)
	// 100 exp crosses the first level boundary.
	assert.Equal(t, []shared.EventType{
		shared.EventAchievementUnlocked,
		shared.EventLevelUp,
	}, bus.types())
}

func TestUnlockDuplicateFailsWithoutPayout(t *testing.T) {
	svc, _, repos, cache, bus := newAchievementHarness()
	seedAchievement(repos, 1, "First Steps", 50, 100, true)
	seedUser(t, repos, 42, 0, 0)
	seedUnlock(repos, 42, 1, achievement.ProgressComplete)

	_, err := svc.Unlock(context.Background(), 42, 1, nil)
	assert.ErrorIs(t, err, achievement.ErrAlreadyUnlocked)

	assert.Equal(t, user.Coins(0), repos.users.users[42].Coins)
	assert.Equal(t, 0, repos.users.updates)
	assert.Equal(t, 0, cache.deletes)
	assert.Empty(t, bus.events)
}

func TestUnlockRejectsInactiveAchievements(t *testing.T) {
	svc, _, repos, _, bus := newAchievementHarness()
	seedAchievement(repos, 1, "Retired Badge", 10, 10, false)
	seedUser(t, repos, 42, 0, 0)

	_, err := svc.Unlock(context.Background(), 42, 1, nil)
	assert.ErrorIs(t, err, achievement.ErrNotActive)
	assert.Equal(t, 0, repos.unlocks.saves)
	assert.Empty(t, bus.events)
}

func TestUnlockCompletesPartialProgress(t *testing.T) {
	svc, _, repos, _, bus := newAchievementHarness()
	seedAchievement(repos, 1, "Marathon", 100, 0, true)
	seedUser(t, repos, 42, 0, 0)
	seedUnlock(repos, 42, 1, achievement.Progress(60))

	_, err := svc.Unlock(context.Background(), 42, 1, nil)
	assert.NoError(t, err)

	row := repos.unlocks.rows[unlockKey{42, 1}]
	assert.True(t, row.Progress.IsComplete())
	assert.Equal(t, 1, repos.unlocks.progressUpdates)
	assert.Equal(t, 0, repos.unlocks.saves)
	assert.Equal(t, user.Coins(100), repos.users.users[42].Coins)
	assert.Equal(t, []shared.EventType{shared.EventAchievementUnlocked}, bus.types())
}

func TestUnlockWithoutRewardSkipsUserWrite(t *testing.T) {
	svc, _, repos, cache, bus := newAchievementHarness()
	seedAchievement(repos, 1, "Cosmetic Badge", 0, 0, true)
	seedUser(t, repos, 42, 0, 0)

	_, err := svc.Unlock(context.Background(), 42, 1, nil)
	assert.NoError(t, err)

	assert.Equal(t, 0, repos.users.updates)
	assert.Equal(t, 0, cache.deletes)
	assert.Equal(t, []shared.EventType{shared.EventAchievementUnlocked}, bus.types())
}

func TestUnlockUnknownAchievement(t *testing.T) {
	svc, _, _, _, bus := newAchievementHarness()

	_, err := svc.Unlock(context.Background(), 42, 99, nil)
	assert.ErrorIs(t, err, achievement.ErrNotFound)
	assert.Empty(t, bus.events)
}

func TestUnlockByNameResolvesCaseInsensitively(t *testing.T) {
	svc, sessions, repos, _, _ := newAchievementHarness()
	seedAchievement(repos, 1, "First Steps", 0, 0, true)
	seedUser(t, repos, 42, 0, 0)

	ach, err := svc.UnlockByName(context.Background(), 42, "first steps", nil)
	assert.NoError(t, err)
	assert.Equal(t, achievement.ID(1), ach.ID)

	// Name resolution reads outside the unlock transaction.
	assert.Equal(t, 1, sessions.readOnlyRuns)
	assert.Equal(t, 1, sessions.runs)
}

func TestUnlockByNameUnknown(t *testing.T) {
	svc, sessions, _, _, _ := newAchievementHarness()

	_, err := svc.UnlockByName(context.Background(), 42, "nonexistent", nil)
	assert.ErrorIs(t, err, achievement.ErrNotFound)
	assert.Equal(t, 0, sessions.runs)
}

// ─────────────────────────────────────────────────────────────────────────────
// TrackProgress
// ─────────────────────────────────────────────────────────────────────────────

func TestTrackProgressCreatesPartialRow(t *testing.T) {
	svc, _, repos, _, bus := newAchievementHarness()
	seedAchievement(repos, 1, "Marathon", 100, 0, true)

	err := svc.TrackProgress(context.Background(), 42, 1, 25)
	assert.NoError(t, err)

	row := repos.unlocks.rows[unlockKey{42, 1}]
	assert.NotNil(t, row)
	assert.Equal(t, achievement.Progress(25), row.Progress)
	// Partial progress is not an unlock.
	assert.Empty(t, bus.events)
}

func TestTrackProgressIsMonotonic(t *testing.T) {
	svc, _, repos, _, _ := newAchievementHarness()
	seedAchievement(repos, 1, "Marathon", 100, 0, true)
	seedUnlock(repos, 42, 1, achievement.Progress(25))

	assert.NoError(t, svc.TrackProgress(context.Background(), 42, 1, 60))
	assert.Equal(t, achievement.Progress(60), repos.unlocks.rows[unlockKey{42, 1}].Progress)

	// A lower report leaves the stored progress untouched.
	assert.NoError(t, svc.TrackProgress(context.Background(), 42, 1, 40))
	assert.Equal(t, achievement.Progress(60), repos.unlocks.rows[unlockKey{42, 1}].Progress)
	assert.Equal(t, 1, repos.unlocks.progressUpdates)
}

func TestTrackProgressCompletionUnlocks(t *testing.T) {
	svc, _, repos, _, bus := newAchievementHarness()
	seedAchievement(repos, 1, "Marathon", 100, 0, true)
	seedUser(t, repos, 42, 0, 0)
	seedUnlock(repos, 42, 1, achievement.Progress(60))

	err := svc.TrackProgress(context.Background(), 42, 1, achievement.ProgressComplete)
	assert.NoError(t, err)

	assert.True(t, repos.unlocks.rows[unlockKey{42, 1}].Progress.IsComplete())
	assert.Equal(t, user.Coins(100), repos.users.users[42].Coins)
	assert.Equal(t, []shared.EventType{shared.EventAchievementUnlocked}, bus.types())
}

func TestTrackProgressAfterCompletionIsNoOp(t *testing.T) {
	svc, _, repos, _, bus := newAchievementHarness()
	seedAchievement(repos, 1, "Marathon", 100, 0, true)
	seedUser(t, repos, 42, 0, 0)
	seedUnlock(repos, 42, 1, achievement.ProgressComplete)

	assert.NoError(t, svc.TrackProgress(context.Background(), 42, 1, achievement.ProgressComplete))
	assert.NoError(t, svc.TrackProgress(context.Background(), 42, 1, 50))

	assert.Equal(t, 0, repos.unlocks.progressUpdates)
	assert.Equal(t, user.Coins(0), repos.users.users[42].Coins)
	assert.Empty(t, bus.events)
}

func TestTrackProgressRejectsOutOfRangeValues(t *testing.T) {
	svc, sessions, _, _, _ := newAchievementHarness()

	err := svc.TrackProgress(context.Background(), 42, 1, achievement.Progress(150))
	assert.ErrorIs(t, err, achievement.ErrInvalidProgress)
	assert.Equal(t, 0, sessions.runs)
}
