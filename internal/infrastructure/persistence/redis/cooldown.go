package redis

import (
	"context"
	"time"
)

// CooldownTracker enforces per-user per-command cooldown windows with
// Redis key expiry. Acquire is one SET NX round-trip on the allowed
// path, so cooldowns survive restarts and are shared across replicas.
type CooldownTracker struct {
	cache *Cache
}

// NewCooldownTracker creates a new CooldownTracker.
func NewCooldownTracker(cache *Cache) *CooldownTracker {
	return &CooldownTracker{
		cache: cache,
	}
}

// Acquire claims the cooldown window for a user and command. It
// returns zero when the command may run and the remaining wait
// otherwise. Claiming and reading the window is not one atomic step;
// a marker expiring between the two reads simply lets the command
// through one window early.
func (t *CooldownTracker) Acquire(ctx context.Context, userID int64, command string, window time.Duration) (time.Duration, error) {
	if window <= 0 {
		return 0, nil
	}

	key := CooldownKey(userID, command)

	acquired, err := t.cache.SetNX(ctx, key, "1", window)
	if err != nil {
		return 0, err
	}
	if acquired {
		return 0, nil
	}

	remaining, err := t.cache.TTL(ctx, key)
	if err != nil {
		return 0, err
	}
	if remaining <= 0 {
		return 0, nil
	}
	return remaining, nil
}

// Reset clears the cooldown for a user and command.
func (t *CooldownTracker) Reset(ctx context.Context, userID int64, command string) error {
	return t.cache.Delete(ctx, CooldownKey(userID, command))
}
