package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/questline-hub/questline-bot/internal/domain/achievement"
	"github.com/questline-hub/questline-bot/internal/domain/shared"
	"github.com/questline-hub/questline-bot/internal/domain/user"
	"github.com/questline-hub/questline-bot/internal/infrastructure/persistence/postgres"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ─────────────────────────────────────────────────────────────────────────────
// Fakes shared by the service tests
// ─────────────────────────────────────────────────────────────────────────────

// fakeSessions runs work functions directly: Run stands in for a
// transaction, RunReadOnly for a bare connection. The querier is nil
// because the fake repositories ignore it.
type fakeSessions struct {
	runs         int
	readOnlyRuns int
	runErr       error
}

func (s *fakeSessions) Run(ctx context.Context, fn postgres.SessionFunc) error {
	s.runs++
	if s.runErr != nil {
		return s.runErr
	}
	return fn(ctx, nil)
}

func (s *fakeSessions) RunReadOnly(ctx context.Context, fn postgres.SessionFunc) error {
	s.readOnlyRuns++
	if s.runErr != nil {
		return s.runErr
	}
	return fn(ctx, nil)
}

type memUserRepo struct {
	user.Repository
	users     map[user.ID]*user.User
	getErr    error
	updateErr error
	creates   int
	updates   int
}

func (r *memUserRepo) GetByID(ctx context.Context, id user.ID) (*user.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *user.User) error {
	if _, ok := r.users[u.ID]; ok {
		return user.ErrUserAlreadyExists
	}
	c := *u
	r.users[u.ID] = &c
	r.creates++
	return nil
}

func (r *memUserRepo) Update(ctx context.Context, u *user.User) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.users[u.ID]; !ok {
		return user.ErrUserNotFound
	}
	c := *u
	r.users[u.ID] = &c
	r.updates++
	return nil
}

type memAchievementRepo struct {
	achievement.Repository
	byID map[achievement.ID]*achievement.Achievement
}

func (r *memAchievementRepo) GetByID(ctx context.Context, id achievement.ID) (*achievement.Achievement, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, achievement.ErrNotFound
	}
	return a, nil
}

func (r *memAchievementRepo) GetByName(ctx context.Context, name string) (*achievement.Achievement, error) {
	for _, a := range r.byID {
		if strings.EqualFold(a.Name, name) {
			return a, nil
		}
	}
	return nil, achievement.ErrNotFound
}

type unlockKey struct {
	userID        int64
	achievementID achievement.ID
}

type memUnlockRepo struct {
	achievement.UnlockRepository
	rows            map[unlockKey]*achievement.Unlock
	saves           int
	progressUpdates int
}

func (r *memUnlockRepo) Get(ctx context.Context, userID int64, achievementID achievement.ID) (*achievement.Unlock, error) {
	u, ok := r.rows[unlockKey{userID, achievementID}]
	if !ok {
		return nil, achievement.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUnlockRepo) Save(ctx context.Context, u *achievement.Unlock) error {
	key := unlockKey{u.UserID, u.AchievementID}
	if _, ok := r.rows[key]; ok {
		return achievement.ErrAlreadyUnlocked
	}
	c := *u
	r.rows[key] = &c
	r.saves++
	return nil
}

func (r *memUnlockRepo) UpdateProgress(ctx context.Context, userID int64, achievementID achievement.ID, p achievement.Progress) error {
	u, ok := r.rows[unlockKey{userID, achievementID}]
	if !ok {
		return achievement.ErrNotFound
	}
	u.Progress = p
	r.progressUpdates++
	return nil
}

type fakeRepos struct {
	users   *memUserRepo
	achs    *memAchievementRepo
	unlocks *memUnlockRepo
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		users:   &memUserRepo{users: make(map[user.ID]*user.User)},
		achs:    &memAchievementRepo{byID: make(map[achievement.ID]*achievement.Achievement)},
		unlocks: &memUnlockRepo{rows: make(map[unlockKey]*achievement.Unlock)},
	}
}

func (r *fakeRepos) Users(postgres.Querier) user.Repository { return r.users }

func (r *fakeRepos) Achievements(postgres.Querier) achievement.Repository { return r.achs }

func (r *fakeRepos) Unlocks(postgres.Querier) achievement.UnlockRepository { return r.unlocks }

type fakeBus struct {
	events     []shared.Event
	publishErr error
}

func (b *fakeBus) Publish(e shared.Event) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.events = append(b.events, e)
	return nil
}

func (b *fakeBus) Subscribe(shared.EventType, shared.EventHandler) error { return nil }

func (b *fakeBus) SubscribeAll(shared.EventHandler) error { return nil }

func (b *fakeBus) types() []shared.EventType {
	out := make([]shared.EventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventType())
	}
	return out
}

type fakeCache struct {
	deletes int
}

func (c *fakeCache) Get(ctx context.Context, id user.ID) (*user.User, error) {
	return nil, errors.New("cache miss")
}

func (c *fakeCache) Set(ctx context.Context, u *user.User, ttl time.Duration) error { return nil }

func (c *fakeCache) Delete(ctx context.Context, id user.ID) error {
	c.deletes++
	return nil
}

func (c *fakeCache) InvalidateAll(ctx context.Context) error { return nil }

func newUserHarness() (*UserService, *fakeSessions, *fakeRepos, *fakeCache, *fakeBus) {
	sessions := &fakeSessions{}
	repos := newFakeRepos()
	cache := &fakeCache{}
	bus := &fakeBus{}
	svc := NewUserService(sessions, repos, cache, bus, testLogger())
	return svc, sessions, repos, cache, bus
}

func seedUser(t *testing.T, repos *fakeRepos, id user.ID, coins, exp int) {
	t.Helper()
	u, err := user.New(id)
	assert.NoError(t, err)
	u.Coins = user.Coins(coins)
	u.Exp = user.Exp(exp)
	repos.users.users[id] = u
}

func ptr[T any](v T) *T { return &v }

// ─────────────────────────────────────────────────────────────────────────────
// CreateOrUpdateUser
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateOrUpdateUserRegistersNewUsers(t *testing.T) {
	svc, sessions, repos, cache, bus := newUserHarness()

	u, err := svc.CreateOrUpdateUser(context.Background(), 42, user.Patch{Nickname: ptr("Quester One")})
	assert.NoError(t, err)
	assert.Equal(t, user.ID(42), u.ID)
	assert.Equal(t, "Quester One", u.DisplayName())

	assert.Equal(t, 1, sessions.runs)
	assert.Equal(t, 1, repos.users.creates)
	assert.Equal(t, 1, cache.deletes)
	assert.Equal(t, []shared.EventType{shared.EventUserRegistered}, bus.types())
}

func TestCreateOrUpdateUserAppliesPatchToExisting(t *testing.T) {
	svc, _, repos, _, bus := newUserHarness()
	seedUser(t, repos, 42, 100, 0)

	tz := "Asia/Almaty"
	u, err := svc.CreateOrUpdateUser(context.Background(), 42, user.Patch{Timezone: &tz})
	assert.NoError(t, err)
	assert.NotNil(t, u.Timezone)
	assert.Equal(t, tz, *u.Timezone)
	assert.Equal(t, user.Coins(100), u.Coins)

	assert.Equal(t, 0, repos.users.creates)
	assert.Equal(t, 1, repos.users.updates)
	// Existing accounts do not re-announce registration.
	assert.Empty(t, bus.events)
}

func TestCreateOrUpdateUserSkipsWriteForEmptyPatch(t *testing.T) {
	svc, _, repos, _, bus := newUserHarness()
	seedUser(t, repos, 42, 0, 0)

	u, err := svc.CreateOrUpdateUser(context.Background(), 42, user.Patch{})
	assert.NoError(t, err)
	assert.Equal(t, user.ID(42), u.ID)
	assert.Equal(t, 0, repos.users.updates)
	assert.Empty(t, bus.events)
}

func TestCreateOrUpdateUserRejectsInvalidPatch(t *testing.T) {
	svc, _, repos, _, bus := newUserHarness()

	future := time.Now().AddDate(1, 0, 0)
	_, err := svc.CreateOrUpdateUser(context.Background(), 42, user.Patch{Birthday: &future})
	assert.ErrorIs(t, err, user.ErrFutureBirthday)
	assert.Equal(t, 0, repos.users.creates)
	assert.Empty(t, bus.events)
}

func TestCreateOrUpdateUserPropagatesRepositoryErrors(t *testing.T) {
	svc, _, repos, cache, bus := newUserHarness()
	repos.users.getErr = errors.New("connection reset")

	_, err := svc.CreateOrUpdateUser(context.Background(), 42, user.Patch{})
	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, 0, cache.deletes)
	assert.Empty(t, bus.events)
}

// ─────────────────────────────────────────────────────────────────────────────
// AdjustBalance
// ─────────────────────────────────────────────────────────────────────────────

func TestAdjustBalanceAppliesDeltas(t *testing.T) {
	svc, _, repos, cache, bus := newUserHarness()
	seedUser(t, repos, 42, 100, 0)

	u, err := svc.AdjustBalance(context.Background(), 42, 50, 250, "quest")
	assert.NoError(t, err)
	assert.Equal(t, user.Coins(150), u.Coins)
	assert.Equal(t, user.Exp(250), u.Exp)

	assert.Equal(t, 1, repos.users.updates)
	assert.Equal(t, 1, cache.deletes)
	assert.Equal(t, []shared.EventType{
		shared.EventCoinsAdjusted,
		shared.EventExpGained,
		shared.EventLevelUp,
	}, bus.types())
}

func TestAdjustBalanceFloorsCoinsAtZero(t *testing.T) {
	svc, _, repos, _, _ := newUserHarness()
	seedUser(t, repos, 42, 30, 0)

	u, err := svc.AdjustBalance(context.Background(), 42, -50, 0, "penalty")
	assert.NoError(t, err)
	assert.Equal(t, user.Coins(0), u.Coins)
}

func TestAdjustBalanceSkipsLevelEventWithoutCrossing(t *testing.T) {
	svc, _, repos, _, bus := newUserHarness()
	seedUser(t, repos, 42, 0, 0)

	_, err := svc.AdjustBalance(context.Background(), 42, 0, 10, "daily")
	assert.NoError(t, err)
	assert.Equal(t, []shared.EventType{shared.EventExpGained}, bus.types())
}

func TestAdjustBalanceRequiresExistingUser(t *testing.T) {
	svc, _, _, cache, bus := newUserHarness()

	_, err := svc.AdjustBalance(context.Background(), 99, 10, 10, "quest")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
	assert.Equal(t, 0, cache.deletes)
	assert.Empty(t, bus.events)
}

// ─────────────────────────────────────────────────────────────────────────────
// Ban / Unban
// ─────────────────────────────────────────────────────────────────────────────

func TestBanBlocksUser(t *testing.T) {
	svc, _, repos, cache, bus := newUserHarness()
	seedUser(t, repos, 42, 0, 0)

	err := svc.Ban(context.Background(), 42, 1, "spam")
	assert.NoError(t, err)
	assert.True(t, repos.users.users[42].IsBanned)
	assert.Equal(t, 1, cache.deletes)
	assert.Equal(t, []shared.EventType{shared.EventUserBanned}, bus.types())
}

func TestBanIsIdempotent(t *testing.T) {
	svc, _, repos, _, bus := newUserHarness()
	seedUser(t, repos, 42, 0, 0)

	assert.NoError(t, svc.Ban(context.Background(), 42, 1, "spam"))
	assert.NoError(t, svc.Ban(context.Background(), 42, 1, "spam again"))

	assert.Equal(t, 1, repos.users.updates)
	assert.Len(t, bus.events, 1)
}

func TestUnbanLiftsBan(t *testing.T) {
	svc, _, repos, _, bus := newUserHarness()
	seedUser(t, repos, 42, 0, 0)
	repos.users.users[42].IsBanned = true

	err := svc.Unban(context.Background(), 42, 1)
	assert.NoError(t, err)
	assert.False(t, repos.users.users[42].IsBanned)
	assert.Equal(t, []shared.EventType{shared.EventUserUnbanned}, bus.types())
}

func TestUnbanOfActiveUserIsNoOp(t *testing.T) {
	svc, _, repos, cache, bus := newUserHarness()
	seedUser(t, repos, 42, 0, 0)

	err := svc.Unban(context.Background(), 42, 1)
	assert.NoError(t, err)
	assert.Equal(t, 0, repos.users.updates)
	assert.Equal(t, 0, cache.deletes)
	assert.Empty(t, bus.events)
}

func TestUserServiceSurvivesNilCacheAndBus(t *testing.T) {
	sessions := &fakeSessions{}
	repos := newFakeRepos()
	svc := NewUserService(sessions, repos, nil, nil, testLogger())

	u, err := svc.CreateOrUpdateUser(context.Background(), 42, user.Patch{})
	assert.NoError(t, err)
	assert.Equal(t, user.ID(42), u.ID)
}
