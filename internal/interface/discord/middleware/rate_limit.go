package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER MIDDLEWARE
// Protects the bot from spam using a per-user token bucket. Legitimate
// users who double-send never notice it; spammers run dry fast.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of commands per user per minute.
	RequestsPerMinute int

	// BurstSize is the maximum burst size (tokens in bucket at start).
	BurstSize int

	// CleanupInterval is how often to clean up idle entries.
	CleanupInterval time.Duration

	// WhitelistedUsers are exempt from rate limiting (e.g. bot owners).
	WhitelistedUsers map[int64]bool

	// OnRateLimited builds the response for a rate-limited user.
	OnRateLimited func(userID int64, retryAfter time.Duration) string
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
		WhitelistedUsers:  make(map[int64]bool),
		OnRateLimited: func(userID int64, retryAfter time.Duration) string {
			return fmt.Sprintf("⏳ Slow down! Try again in %d seconds.", int(retryAfter.Seconds())+1)
		},
	}
}

// RateLimitResult represents the result of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates if the command may run.
	Allowed bool

	// RetryAfter is how long the user should wait before retrying.
	RetryAfter time.Duration

	// ResponseMessage is sent to the user when blocked.
	ResponseMessage string
}

// RateLimiter implements per-user rate limiting with token buckets.
type RateLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	buckets map[int64]*tokenBucket
	done    chan struct{}
	once    sync.Once
}

// tokenBucket tracks one user's rate limit state.
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 20
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 5
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.OnRateLimited == nil {
		config.OnRateLimited = DefaultRateLimitConfig().OnRateLimited
	}

	rl := &RateLimiter{
		config:  config,
		buckets: make(map[int64]*tokenBucket),
		done:    make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Check consumes one token for the user, reporting whether the command
// may run.
func (rl *RateLimiter) Check(userID int64) *RateLimitResult {
	if rl.config.WhitelistedUsers[userID] {
		return &RateLimitResult{Allowed: true}
	}

	refillRate := float64(rl.config.RequestsPerMinute) / 60.0
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.buckets[userID]
	if !ok {
		bucket = &tokenBucket{
			tokens:     float64(rl.config.BurstSize),
			lastRefill: now,
		}
		rl.buckets[userID] = bucket
	}

	// Refill since last touch, capped at the burst size
	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.tokens += elapsed * refillRate
	if bucket.tokens > float64(rl.config.BurstSize) {
		bucket.tokens = float64(rl.config.BurstSize)
	}
	bucket.lastRefill = now

	if bucket.tokens < 1 {
		retryAfter := time.Duration((1 - bucket.tokens) / refillRate * float64(time.Second))
		return &RateLimitResult{
			Allowed:         false,
			RetryAfter:      retryAfter,
			ResponseMessage: rl.config.OnRateLimited(userID, retryAfter),
		}
	}

	bucket.tokens--
	return &RateLimitResult{Allowed: true}
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() {
		close(rl.done)
	})
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup drops buckets idle long enough to have fully refilled.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := time.Now().Add(-2 * rl.config.CleanupInterval)
	for id, bucket := range rl.buckets {
		if bucket.lastRefill.Before(threshold) {
			delete(rl.buckets, id)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND COOLDOWNS
// Per-command cooldowns are shared state across bot instances, so the
// gate lives behind an interface implemented by the Redis layer.
// ══════════════════════════════════════════════════════════════════════════════

// CooldownGate tracks per-user, per-command cooldown windows.
type CooldownGate interface {
	// Acquire attempts to start a cooldown window. It returns the time
	// remaining on an active window, or zero when the attempt acquired
	// a fresh window and the command may run.
	Acquire(ctx context.Context, userID int64, command string, window time.Duration) (time.Duration, error)
}

// CooldownConfig holds configuration for the cooldown middleware.
type CooldownConfig struct {
	// OnCooldown builds the response for a command still cooling down.
	OnCooldown func(command string, remaining time.Duration) string
}

// DefaultCooldownConfig returns sensible defaults for command cooldowns.
func DefaultCooldownConfig() CooldownConfig {
	return CooldownConfig{
		OnCooldown: func(command string, remaining time.Duration) string {
			return fmt.Sprintf("🕐 `%s` is on cooldown, wait %s.", command, remaining.Round(time.Second))
		},
	}
}

// CooldownMiddleware enforces per-command cooldowns through a gate.
type CooldownMiddleware struct {
	gate   CooldownGate
	config CooldownConfig
}

// NewCooldownMiddleware creates a cooldown middleware. The gate is
// optional; with a nil gate every check passes.
func NewCooldownMiddleware(gate CooldownGate, config CooldownConfig) *CooldownMiddleware {
	if config.OnCooldown == nil {
		config.OnCooldown = DefaultCooldownConfig().OnCooldown
	}
	return &CooldownMiddleware{
		gate:   gate,
		config: config,
	}
}

// Check enforces the command's cooldown window for the user. Gate
// errors fail open: a broken Redis must not silence the bot.
func (m *CooldownMiddleware) Check(
	ctx context.Context,
	userID int64,
	command string,
	window time.Duration,
) *RateLimitResult {
	if m.gate == nil || window <= 0 {
		return &RateLimitResult{Allowed: true}
	}

	remaining, err := m.gate.Acquire(ctx, userID, command, window)
	if err != nil || remaining <= 0 {
		return &RateLimitResult{Allowed: true}
	}

	return &RateLimitResult{
		Allowed:         false,
		RetryAfter:      remaining,
		ResponseMessage: m.config.OnCooldown(command, remaining),
	}
}

// MemoryCooldownGate is the in-process fallback gate used when Redis
// is not configured. Windows do not survive restarts and are not
// shared across replicas.
type MemoryCooldownGate struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

// NewMemoryCooldownGate creates an in-memory cooldown gate.
func NewMemoryCooldownGate() *MemoryCooldownGate {
	return &MemoryCooldownGate{
		expiry: make(map[string]time.Time),
	}
}

// Acquire implements CooldownGate.
func (g *MemoryCooldownGate) Acquire(ctx context.Context, userID int64, command string, window time.Duration) (time.Duration, error) {
	if window <= 0 {
		return 0, nil
	}

	key := fmt.Sprintf("%d:%s", userID, command)
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if until, ok := g.expiry[key]; ok && until.After(now) {
		return until.Sub(now), nil
	}
	g.expiry[key] = now.Add(window)

	// Sweep expired windows once the map grows noticeable.
	if len(g.expiry) > 4096 {
		for k, until := range g.expiry {
			if !until.After(now) {
				delete(g.expiry, k)
			}
		}
	}

	return 0, nil
}
