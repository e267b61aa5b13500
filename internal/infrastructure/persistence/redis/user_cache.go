package redis

import (
	"context"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/user"
)

// UserCache implements the user.Cache interface over the generic Cache.
// It keeps hot user records out of the command hot path; the auth
// middleware consults it before touching the database.
type UserCache struct {
	cache *Cache
}

// NewUserCache creates a new UserCache.
func NewUserCache(cache *Cache) *UserCache {
	return &UserCache{
		cache: cache,
	}
}

// Get returns a cached user. Misses come back as ErrCacheMiss; callers
// treat any error as a miss and fall through to the repository.
func (c *UserCache) Get(ctx context.Context, id user.ID) (*user.User, error) {
	var u user.User
	if err := c.cache.Get(ctx, UserKey(id.Int64()), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Set stores a user with the given TTL. A non-positive TTL falls back
// to the package default.
func (c *UserCache) Set(ctx context.Context, u *user.User, ttl time.Duration) error {
	if u == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = TTLUserCache
	}
	return c.cache.Set(ctx, UserKey(u.ID.Int64()), u, ttl)
}

// Delete removes a user from the cache.
func (c *UserCache) Delete(ctx context.Context, id user.ID) error {
	return c.cache.Delete(ctx, UserKey(id.Int64()))
}

// InvalidateAll clears every cached user record.
func (c *UserCache) InvalidateAll(ctx context.Context) error {
	return c.cache.DeleteByPattern(ctx, PrefixUser+"*")
}
