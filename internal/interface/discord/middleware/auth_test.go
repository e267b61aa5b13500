package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/questline-hub/questline-bot/internal/domain/user"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

// fakeUserRepo implements the handful of repository methods auth uses.
// The embedded interface panics on anything else.
type fakeUserRepo struct {
	user.Repository

	mu       sync.Mutex
	users    map[user.ID]*user.User
	gets     int
	upserts  int
	getError error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[user.ID]*user.User)}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id user.ID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.getError != nil {
		return nil, r.getError
	}
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Upsert(ctx context.Context, id user.ID, patch user.Patch) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	u, ok := r.users[id]
	if !ok {
		var err error
		u, err = user.New(id)
		if err != nil {
			return nil, err
		}
		r.users[id] = u
	}
	if err := u.Apply(patch, time.Now().UTC()); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *fakeUserRepo) add(u *user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

type fakeUserCache struct {
	mu    sync.Mutex
	users map[user.ID]*user.User
}

func newFakeUserCache() *fakeUserCache {
	return &fakeUserCache{users: make(map[user.ID]*user.User)}
}

func (c *fakeUserCache) Get(ctx context.Context, id user.ID) (*user.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (c *fakeUserCache) Set(ctx context.Context, u *user.User, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = u
	return nil
}

func (c *fakeUserCache) Delete(ctx context.Context, id user.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, id)
	return nil
}

func (c *fakeUserCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = make(map[user.ID]*user.User)
	return nil
}

func mustUser(t *testing.T, id int64) *user.User {
	t.Helper()
	u, err := user.New(user.ID(id))
	assert.NoError(t, err)
	return u
}

// ─────────────────────────────────────────────────────────────────────────────
// Authorization
// ─────────────────────────────────────────────────────────────────────────────

func TestAuthAutoRegistersUnknownUsers(t *testing.T) {
	repo := newFakeUserRepo()
	m := NewAuthMiddleware(repo, nil, DefaultAuthConfig())

	result, err := m.Authorize(context.Background(), 42, "Quester", false)
	assert.NoError(t, err)
	assert.True(t, result.ShouldContinue)
	assert.NotNil(t, result.User)
	assert.Equal(t, "Quester", result.User.DisplayName())
	assert.Equal(t, 1, repo.upserts)

	// The second command finds the row, no second registration.
	_, err = m.Authorize(context.Background(), 42, "Quester", false)
	assert.NoError(t, err)
	assert.Equal(t, 1, repo.upserts)
}

func TestAuthBlocksBannedUsersSilently(t *testing.T) {
	repo := newFakeUserRepo()
	banned := mustUser(t, 42)
	banned.Ban()
	repo.add(banned)

	m := NewAuthMiddleware(repo, nil, DefaultAuthConfig())

	result, err := m.Authorize(context.Background(), 42, "Quester", false)
	assert.NoError(t, err)
	assert.False(t, result.ShouldContinue)
	// Default policy gives banned users no feedback at all.
	assert.Equal(t, "", result.ResponseMessage)
}

func TestAuthGatesOwnerOnlyCommands(t *testing.T) {
	repo := newFakeUserRepo()
	config := DefaultAuthConfig()
	config.OwnerIDs = []int64{1}
	m := NewAuthMiddleware(repo, nil, config)

	result, err := m.Authorize(context.Background(), 42, "Quester", true)
	assert.NoError(t, err)
	assert.False(t, result.ShouldContinue)
	assert.Contains(t, result.ResponseMessage, "restricted")

	result, err = m.Authorize(context.Background(), 1, "Owner", true)
	assert.NoError(t, err)
	assert.True(t, result.ShouldContinue)

	assert.True(t, m.IsOwner(1))
	assert.False(t, m.IsOwner(42))
}

func TestAuthServesFromCache(t *testing.T) {
	repo := newFakeUserRepo()
	cache := newFakeUserCache()
	cached := mustUser(t, 42)
	assert.NoError(t, cache.Set(context.Background(), cached, time.Minute))

	m := NewAuthMiddleware(repo, cache, DefaultAuthConfig())

	result, err := m.Authorize(context.Background(), 42, "Quester", false)
	assert.NoError(t, err)
	assert.True(t, result.ShouldContinue)
	assert.Equal(t, 0, repo.gets)
}

func TestAuthPopulatesCacheAfterResolve(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(mustUser(t, 42))
	cache := newFakeUserCache()

	m := NewAuthMiddleware(repo, cache, DefaultAuthConfig())

	_, err := m.Authorize(context.Background(), 42, "Quester", false)
	assert.NoError(t, err)

	u, err := cache.Get(context.Background(), 42)
	assert.NoError(t, err)
	assert.Equal(t, user.ID(42), u.ID)

	m.InvalidateCache(context.Background(), 42)
	_, err = cache.Get(context.Background(), 42)
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestAuthPropagatesRepositoryErrors(t *testing.T) {
	repo := newFakeUserRepo()
	repo.getError = errors.New("database down")

	m := NewAuthMiddleware(repo, nil, DefaultAuthConfig())

	result, err := m.Authorize(context.Background(), 42, "Quester", false)
	assert.Error(t, err)
	assert.Nil(t, result)
}

// ─────────────────────────────────────────────────────────────────────────────
// Context helpers
// ─────────────────────────────────────────────────────────────────────────────

func TestUserContextRoundTrip(t *testing.T) {
	u := mustUser(t, 42)

	ctx := ContextWithUser(context.Background(), u)
	assert.Equal(t, u, UserFromContext(ctx))

	assert.Nil(t, UserFromContext(context.Background()))
}

func TestRequestIDContextRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-7")
	assert.Equal(t, "req-7", RequestIDFromContext(ctx))

	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}
