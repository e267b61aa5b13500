package postgres

import (
	"context"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/achievement"
	"github.com/questline-hub/questline-bot/internal/domain/cog"
	"github.com/questline-hub/questline-bot/internal/domain/event"
	"github.com/questline-hub/questline-bot/internal/domain/game"
	"github.com/questline-hub/questline-bot/internal/domain/role"
	"github.com/questline-hub/questline-bot/internal/domain/usage"
	"github.com/questline-hub/questline-bot/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION-BACKED STORES
// Repositories in this package bind to a Querier and live only as long
// as the session that carries them. Stores are the long-lived
// counterpart handed to cogs and middleware at startup: every call
// checks out its own session, reads run on a bare connection, writes
// run inside a transaction. Workflows that need several repositories in
// one transaction skip the stores and use SessionManager.Run with
// Querier-bound repositories directly.
// ══════════════════════════════════════════════════════════════════════════════

// read runs fn on a read-only session and returns its result.
func read[T any](ctx context.Context, sessions *SessionManager, fn func(ctx context.Context, q Querier) (T, error)) (T, error) {
	var result T
	err := sessions.RunReadOnly(ctx, func(ctx context.Context, q Querier) error {
		var opErr error
		result, opErr = fn(ctx, q)
		return opErr
	})
	return result, err
}

// write runs fn inside a transactional session and returns its result.
// Write operations without a result call SessionManager.Run directly.
func write[T any](ctx context.Context, sessions *SessionManager, fn func(ctx context.Context, q Querier) (T, error)) (T, error) {
	var result T
	err := sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		var opErr error
		result, opErr = fn(ctx, q)
		return opErr
	})
	return result, err
}

// ─────────────────────────────────────────────────────────────────────────────
// User store
// ─────────────────────────────────────────────────────────────────────────────

// UserStore implements user.Repository over per-call sessions.
type UserStore struct {
	sessions *SessionManager
}

// NewUserStore creates a session-backed user store.
func NewUserStore(sessions *SessionManager) *UserStore {
	return &UserStore{sessions: sessions}
}

func (s *UserStore) Create(ctx context.Context, u *user.User) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewUserRepository(q).Create(ctx, u)
	})
}

func (s *UserStore) GetByID(ctx context.Context, id user.ID) (*user.User, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*user.User, error) {
		return NewUserRepository(q).GetByID(ctx, id)
	})
}

func (s *UserStore) Upsert(ctx context.Context, id user.ID, patch user.Patch) (*user.User, error) {
	return write(ctx, s.sessions, func(ctx context.Context, q Querier) (*user.User, error) {
		return NewUserRepository(q).Upsert(ctx, id, patch)
	})
}

func (s *UserStore) Update(ctx context.Context, u *user.User) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewUserRepository(q).Update(ctx, u)
	})
}

func (s *UserStore) Delete(ctx context.Context, id user.ID) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewUserRepository(q).Delete(ctx, id)
	})
}

func (s *UserStore) GetAll(ctx context.Context, opts user.ListOptions) ([]*user.User, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*user.User, error) {
		return NewUserRepository(q).GetAll(ctx, opts)
	})
}

func (s *UserStore) GetByIDs(ctx context.Context, ids []user.ID) ([]*user.User, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*user.User, error) {
		return NewUserRepository(q).GetByIDs(ctx, ids)
	})
}

func (s *UserStore) Count(ctx context.Context) (int, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (int, error) {
		return NewUserRepository(q).Count(ctx)
	})
}

func (s *UserStore) CountBanned(ctx context.Context) (int, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (int, error) {
		return NewUserRepository(q).CountBanned(ctx)
	})
}

func (s *UserStore) FindByBirthday(ctx context.Context, month time.Month, day int) ([]*user.User, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*user.User, error) {
		return NewUserRepository(q).FindByBirthday(ctx, month, day)
	})
}

func (s *UserStore) TopByCoins(ctx context.Context, limit int) ([]*user.User, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*user.User, error) {
		return NewUserRepository(q).TopByCoins(ctx, limit)
	})
}

func (s *UserStore) TopByExp(ctx context.Context, limit int) ([]*user.User, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*user.User, error) {
		return NewUserRepository(q).TopByExp(ctx, limit)
	})
}

func (s *UserStore) Exists(ctx context.Context, id user.ID) (bool, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (bool, error) {
		return NewUserRepository(q).Exists(ctx, id)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Cog registry store
// ─────────────────────────────────────────────────────────────────────────────

// CogStore implements cog.Repository over per-call sessions.
type CogStore struct {
	sessions *SessionManager
}

// NewCogStore creates a session-backed cog registry store.
func NewCogStore(sessions *SessionManager) *CogStore {
	return &CogStore{sessions: sessions}
}

func (s *CogStore) Get(ctx context.Context, module cog.Module) (*cog.Record, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*cog.Record, error) {
		return NewCogRepository(q).Get(ctx, module)
	})
}

func (s *CogStore) GetAll(ctx context.Context) ([]*cog.Record, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*cog.Record, error) {
		return NewCogRepository(q).GetAll(ctx)
	})
}

func (s *CogStore) Upsert(ctx context.Context, r *cog.Record) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewCogRepository(q).Upsert(ctx, r)
	})
}

func (s *CogStore) SetEnabled(ctx context.Context, module cog.Module, enabled bool) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewCogRepository(q).SetEnabled(ctx, module, enabled)
	})
}

func (s *CogStore) Delete(ctx context.Context, module cog.Module) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewCogRepository(q).Delete(ctx, module)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Game stores
// ─────────────────────────────────────────────────────────────────────────────

// GameStore implements game.Repository over per-call sessions.
type GameStore struct {
	sessions *SessionManager
}

// NewGameStore creates a session-backed game store.
func NewGameStore(sessions *SessionManager) *GameStore {
	return &GameStore{sessions: sessions}
}

func (s *GameStore) Create(ctx context.Context, g *game.Game) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewGameRepository(q).Create(ctx, g)
	})
}

func (s *GameStore) GetByID(ctx context.Context, id game.ID) (*game.Game, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*game.Game, error) {
		return NewGameRepository(q).GetByID(ctx, id)
	})
}

func (s *GameStore) GetByName(ctx context.Context, name game.Name) (*game.Game, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*game.Game, error) {
		return NewGameRepository(q).GetByName(ctx, name)
	})
}

func (s *GameStore) GetAll(ctx context.Context) ([]*game.Game, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*game.Game, error) {
		return NewGameRepository(q).GetAll(ctx)
	})
}

func (s *GameStore) Delete(ctx context.Context, id game.ID) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewGameRepository(q).Delete(ctx, id)
	})
}

// ProfileStore implements game.ProfileRepository over per-call sessions.
type ProfileStore struct {
	sessions *SessionManager
}

// NewProfileStore creates a session-backed game profile store.
func NewProfileStore(sessions *SessionManager) *ProfileStore {
	return &ProfileStore{sessions: sessions}
}

func (s *ProfileStore) Create(ctx context.Context, p *game.Profile) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewProfileRepository(q).Create(ctx, p)
	})
}

func (s *ProfileStore) GetByID(ctx context.Context, id game.ProfileID) (*game.Profile, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*game.Profile, error) {
		return NewProfileRepository(q).GetByID(ctx, id)
	})
}

func (s *ProfileStore) GetByUser(ctx context.Context, userID int64) ([]*game.Profile, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*game.Profile, error) {
		return NewProfileRepository(q).GetByUser(ctx, userID)
	})
}

func (s *ProfileStore) GetByUserAndGame(ctx context.Context, userID int64, gameID game.ID) (*game.Profile, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*game.Profile, error) {
		return NewProfileRepository(q).GetByUserAndGame(ctx, userID, gameID)
	})
}

func (s *ProfileStore) Update(ctx context.Context, p *game.Profile) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewProfileRepository(q).Update(ctx, p)
	})
}

func (s *ProfileStore) Delete(ctx context.Context, id game.ProfileID) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewProfileRepository(q).Delete(ctx, id)
	})
}

func (s *ProfileStore) CountByGame(ctx context.Context, gameID game.ID) (int, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (int, error) {
		return NewProfileRepository(q).CountByGame(ctx, gameID)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Event stores
// ─────────────────────────────────────────────────────────────────────────────

// EventStore implements event.Repository over per-call sessions.
type EventStore struct {
	sessions *SessionManager
}

// NewEventStore creates a session-backed event store.
func NewEventStore(sessions *SessionManager) *EventStore {
	return &EventStore{sessions: sessions}
}

func (s *EventStore) Create(ctx context.Context, e *event.Event) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewEventRepository(q).Create(ctx, e)
	})
}

func (s *EventStore) GetByID(ctx context.Context, id event.ID) (*event.Event, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*event.Event, error) {
		return NewEventRepository(q).GetByID(ctx, id)
	})
}

func (s *EventStore) Update(ctx context.Context, e *event.Event) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewEventRepository(q).Update(ctx, e)
	})
}

func (s *EventStore) Delete(ctx context.Context, id event.ID) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewEventRepository(q).Delete(ctx, id)
	})
}

func (s *EventStore) GetByStatus(ctx context.Context, status event.Status) ([]*event.Event, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*event.Event, error) {
		return NewEventRepository(q).GetByStatus(ctx, status)
	})
}

func (s *EventStore) GetUpcoming(ctx context.Context, within time.Duration) ([]*event.Event, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*event.Event, error) {
		return NewEventRepository(q).GetUpcoming(ctx, within)
	})
}

func (s *EventStore) FindDueToOpen(ctx context.Context, now time.Time) ([]*event.Event, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*event.Event, error) {
		return NewEventRepository(q).FindDueToOpen(ctx, now)
	})
}

func (s *EventStore) FindDueToComplete(ctx context.Context, now time.Time) ([]*event.Event, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*event.Event, error) {
		return NewEventRepository(q).FindDueToComplete(ctx, now)
	})
}

func (s *EventStore) IncrementParticipants(ctx context.Context, id event.ID) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewEventRepository(q).IncrementParticipants(ctx, id)
	})
}

func (s *EventStore) Count(ctx context.Context) (int, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (int, error) {
		return NewEventRepository(q).Count(ctx)
	})
}

// EventLogStore implements event.LogRepository over per-call sessions.
type EventLogStore struct {
	sessions *SessionManager
}

// NewEventLogStore creates a session-backed event log store.
func NewEventLogStore(sessions *SessionManager) *EventLogStore {
	return &EventLogStore{sessions: sessions}
}

func (s *EventLogStore) Append(ctx context.Context, entry *event.LogEntry) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewEventLogRepository(q).Append(ctx, entry)
	})
}

func (s *EventLogStore) GetByEvent(ctx context.Context, eventID event.ID, limit int) ([]*event.LogEntry, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*event.LogEntry, error) {
		return NewEventLogRepository(q).GetByEvent(ctx, eventID, limit)
	})
}

func (s *EventLogStore) GetByUser(ctx context.Context, userID int64, limit int) ([]*event.LogEntry, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*event.LogEntry, error) {
		return NewEventLogRepository(q).GetByUser(ctx, userID, limit)
	})
}

func (s *EventLogStore) HasUserJoined(ctx context.Context, eventID event.ID, userID int64) (bool, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (bool, error) {
		return NewEventLogRepository(q).HasUserJoined(ctx, eventID, userID)
	})
}

func (s *EventLogStore) CountByEvent(ctx context.Context, eventID event.ID) (int, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (int, error) {
		return NewEventLogRepository(q).CountByEvent(ctx, eventID)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Achievement stores
// ─────────────────────────────────────────────────────────────────────────────

// AchievementStore implements achievement.Repository over per-call sessions.
type AchievementStore struct {
	sessions *SessionManager
}

// NewAchievementStore creates a session-backed achievement catalog store.
func NewAchievementStore(sessions *SessionManager) *AchievementStore {
	return &AchievementStore{sessions: sessions}
}

func (s *AchievementStore) Create(ctx context.Context, a *achievement.Achievement) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewAchievementRepository(q).Create(ctx, a)
	})
}

func (s *AchievementStore) GetByID(ctx context.Context, id achievement.ID) (*achievement.Achievement, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*achievement.Achievement, error) {
		return NewAchievementRepository(q).GetByID(ctx, id)
	})
}

func (s *AchievementStore) GetByName(ctx context.Context, name string) (*achievement.Achievement, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*achievement.Achievement, error) {
		return NewAchievementRepository(q).GetByName(ctx, name)
	})
}

func (s *AchievementStore) Update(ctx context.Context, a *achievement.Achievement) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewAchievementRepository(q).Update(ctx, a)
	})
}

func (s *AchievementStore) GetAll(ctx context.Context, includeHidden bool) ([]*achievement.Achievement, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*achievement.Achievement, error) {
		return NewAchievementRepository(q).GetAll(ctx, includeHidden)
	})
}

func (s *AchievementStore) GetByCategory(ctx context.Context, category string, includeHidden bool) ([]*achievement.Achievement, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*achievement.Achievement, error) {
		return NewAchievementRepository(q).GetByCategory(ctx, category, includeHidden)
	})
}

func (s *AchievementStore) Count(ctx context.Context) (int, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (int, error) {
		return NewAchievementRepository(q).Count(ctx)
	})
}

// UnlockStore implements achievement.UnlockRepository over per-call sessions.
type UnlockStore struct {
	sessions *SessionManager
}

// NewUnlockStore creates a session-backed unlock store.
func NewUnlockStore(sessions *SessionManager) *UnlockStore {
	return &UnlockStore{sessions: sessions}
}

func (s *UnlockStore) Save(ctx context.Context, u *achievement.Unlock) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewUnlockRepository(q).Save(ctx, u)
	})
}

func (s *UnlockStore) Get(ctx context.Context, userID int64, achievementID achievement.ID) (*achievement.Unlock, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*achievement.Unlock, error) {
		return NewUnlockRepository(q).Get(ctx, userID, achievementID)
	})
}

func (s *UnlockStore) GetByUser(ctx context.Context, userID int64) ([]*achievement.Unlock, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*achievement.Unlock, error) {
		return NewUnlockRepository(q).GetByUser(ctx, userID)
	})
}

func (s *UnlockStore) Has(ctx context.Context, userID int64, achievementID achievement.ID) (bool, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (bool, error) {
		return NewUnlockRepository(q).Has(ctx, userID, achievementID)
	})
}

func (s *UnlockStore) UpdateProgress(ctx context.Context, userID int64, achievementID achievement.ID, progress achievement.Progress) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewUnlockRepository(q).UpdateProgress(ctx, userID, achievementID, progress)
	})
}

func (s *UnlockStore) CountByUser(ctx context.Context, userID int64) (int, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (int, error) {
		return NewUnlockRepository(q).CountByUser(ctx, userID)
	})
}

func (s *UnlockStore) CountByAchievement(ctx context.Context, achievementID achievement.ID) (int, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (int, error) {
		return NewUnlockRepository(q).CountByAchievement(ctx, achievementID)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Role store
// ─────────────────────────────────────────────────────────────────────────────

// RoleStore implements role.Repository over per-call sessions.
type RoleStore struct {
	sessions *SessionManager
}

// NewRoleStore creates a session-backed role store.
func NewRoleStore(sessions *SessionManager) *RoleStore {
	return &RoleStore{sessions: sessions}
}

func (s *RoleStore) Create(ctx context.Context, r *role.Role) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewRoleRepository(q).Create(ctx, r)
	})
}

func (s *RoleStore) GetByID(ctx context.Context, id role.ID) (*role.Role, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*role.Role, error) {
		return NewRoleRepository(q).GetByID(ctx, id)
	})
}

func (s *RoleStore) GetByName(ctx context.Context, name string) (*role.Role, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (*role.Role, error) {
		return NewRoleRepository(q).GetByName(ctx, name)
	})
}

func (s *RoleStore) GetActive(ctx context.Context) ([]*role.Role, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*role.Role, error) {
		return NewRoleRepository(q).GetActive(ctx)
	})
}

func (s *RoleStore) Update(ctx context.Context, r *role.Role) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewRoleRepository(q).Update(ctx, r)
	})
}

func (s *RoleStore) Delete(ctx context.Context, id role.ID) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewRoleRepository(q).Delete(ctx, id)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Usage store
// ─────────────────────────────────────────────────────────────────────────────

// UsageStore implements usage.Repository over per-call sessions.
type UsageStore struct {
	sessions *SessionManager
}

// NewUsageStore creates a session-backed command usage store.
func NewUsageStore(sessions *SessionManager) *UsageStore {
	return &UsageStore{sessions: sessions}
}

func (s *UsageStore) Record(ctx context.Context, r *usage.Record) error {
	return s.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		return NewUsageRepository(q).Record(ctx, r)
	})
}

func (s *UsageStore) GetByUser(ctx context.Context, userID int64, limit int) ([]*usage.Record, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*usage.Record, error) {
		return NewUsageRepository(q).GetByUser(ctx, userID, limit)
	})
}

func (s *UsageStore) GetRecent(ctx context.Context, limit int) ([]*usage.Record, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*usage.Record, error) {
		return NewUsageRepository(q).GetRecent(ctx, limit)
	})
}

func (s *UsageStore) GetFailures(ctx context.Context, limit int) ([]*usage.Record, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]*usage.Record, error) {
		return NewUsageRepository(q).GetFailures(ctx, limit)
	})
}

func (s *UsageStore) TopCommands(ctx context.Context, since time.Time, limit int) ([]usage.CommandCount, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) ([]usage.CommandCount, error) {
		return NewUsageRepository(q).TopCommands(ctx, since, limit)
	})
}

func (s *UsageStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	return read(ctx, s.sessions, func(ctx context.Context, q Querier) (int, error) {
		return NewUsageRepository(q).CountSince(ctx, since)
	})
}

func (s *UsageStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return write(ctx, s.sessions, func(ctx context.Context, q Querier) (int64, error) {
		return NewUsageRepository(q).PruneOlderThan(ctx, cutoff)
	})
}
