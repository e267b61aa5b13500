package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ─────────────────────────────────────────────────────────────────────────────
// Per-user rate limiting
// ─────────────────────────────────────────────────────────────────────────────

func TestRateLimiterAllowsBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 3})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		result := rl.Check(42)
		assert.True(t, result.Allowed)
	}

	result := rl.Check(42)
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
	assert.Contains(t, result.ResponseMessage, "Slow down")
}

func TestRateLimiterDefaultsBlockedResponse(t *testing.T) {
	// A caller-built config without OnRateLimited still answers blocked
	// checks instead of panicking on a nil callback.
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 1})
	defer rl.Stop()

	assert.True(t, rl.Check(42).Allowed)

	result := rl.Check(42)
	assert.False(t, result.Allowed)
	assert.NotEmpty(t, result.ResponseMessage)
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	// 6000/min refills one token every 10ms.
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 6000, BurstSize: 1})
	defer rl.Stop()

	assert.True(t, rl.Check(42).Allowed)
	assert.False(t, rl.Check(42).Allowed)

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Check(42).Allowed)
}

func TestRateLimiterIsolatesUsers(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 1})
	defer rl.Stop()

	assert.True(t, rl.Check(1).Allowed)
	assert.False(t, rl.Check(1).Allowed)

	// A different user has their own bucket.
	assert.True(t, rl.Check(2).Allowed)
}

func TestRateLimiterWhitelistBypasses(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         1,
		WhitelistedUsers:  map[int64]bool{7: true},
	})
	defer rl.Stop()

	for i := 0; i < 20; i++ {
		assert.True(t, rl.Check(7).Allowed)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Command cooldowns
// ─────────────────────────────────────────────────────────────────────────────

type fakeGate struct {
	remaining time.Duration
	err       error
	calls     int
}

func (g *fakeGate) Acquire(ctx context.Context, userID int64, command string, window time.Duration) (time.Duration, error) {
	g.calls++
	return g.remaining, g.err
}

func TestCooldownPassesWithoutGateOrWindow(t *testing.T) {
	gated := NewCooldownMiddleware(&fakeGate{remaining: time.Minute}, DefaultCooldownConfig())
	ungated := NewCooldownMiddleware(nil, DefaultCooldownConfig())

	// No gate wired, or no cooldown on the command: always allowed.
	assert.True(t, ungated.Check(context.Background(), 42, "daily", time.Minute).Allowed)
	assert.True(t, gated.Check(context.Background(), 42, "daily", 0).Allowed)
}

func TestCooldownBlocksWithinWindow(t *testing.T) {
	gate := &fakeGate{remaining: 42 * time.Second}
	m := NewCooldownMiddleware(gate, DefaultCooldownConfig())

	result := m.Check(context.Background(), 42, "daily", time.Minute)
	assert.False(t, result.Allowed)
	assert.Equal(t, 42*time.Second, result.RetryAfter)
	assert.Contains(t, result.ResponseMessage, "daily")
	assert.Equal(t, 1, gate.calls)
}

func TestCooldownDefaultsBlockedResponse(t *testing.T) {
	gate := &fakeGate{remaining: 30 * time.Second}
	m := NewCooldownMiddleware(gate, CooldownConfig{})

	result := m.Check(context.Background(), 42, "daily", time.Minute)
	assert.False(t, result.Allowed)
	assert.NotEmpty(t, result.ResponseMessage)
}

func TestCooldownAllowsOutsideWindow(t *testing.T) {
	gate := &fakeGate{remaining: 0}
	m := NewCooldownMiddleware(gate, DefaultCooldownConfig())

	assert.True(t, m.Check(context.Background(), 42, "daily", time.Minute).Allowed)
}

func TestCooldownFailsOpenOnGateErrors(t *testing.T) {
	gate := &fakeGate{err: errors.New("redis down")}
	m := NewCooldownMiddleware(gate, DefaultCooldownConfig())

	// A broken gate must not silence the bot.
	assert.True(t, m.Check(context.Background(), 42, "daily", time.Minute).Allowed)
}

func TestMemoryCooldownGateTracksWindows(t *testing.T) {
	gate := NewMemoryCooldownGate()

	remaining, err := gate.Acquire(context.Background(), 42, "daily", 50*time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, time.Duration(0), remaining)

	remaining, err = gate.Acquire(context.Background(), 42, "daily", 50*time.Millisecond)
	assert.NoError(t, err)
	assert.Greater(t, remaining, time.Duration(0))

	// Separate commands and users cool down independently.
	remaining, _ = gate.Acquire(context.Background(), 42, "hello", 50*time.Millisecond)
	assert.Equal(t, time.Duration(0), remaining)
	remaining, _ = gate.Acquire(context.Background(), 7, "daily", 50*time.Millisecond)
	assert.Equal(t, time.Duration(0), remaining)

	time.Sleep(60 * time.Millisecond)
	remaining, err = gate.Acquire(context.Background(), 42, "daily", 50*time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, time.Duration(0), remaining)
}
