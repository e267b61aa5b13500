// Package middleware contains Discord bot middlewares for command processing.
// These middlewares run on every command invocation before it reaches the
// handler, and can short-circuit dispatch with a response of their own.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT KEYS
// ══════════════════════════════════════════════════════════════════════════════

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the resolved user.
	UserContextKey contextKey = "user"

	// RequestIDContextKey is the context key for request tracing.
	RequestIDContextKey contextKey = "request_id"
)

// ContextWithUser adds the resolved user to the context.
func ContextWithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, UserContextKey, u)
}

// UserFromContext retrieves the resolved user from context.
// Returns nil if no user is in the context.
func UserFromContext(ctx context.Context) *user.User {
	u, ok := ctx.Value(UserContextKey).(*user.User)
	if !ok {
		return nil
	}
	return u
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey, id)
}

// RequestIDFromContext retrieves the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH MIDDLEWARE
// Resolves the invoking Discord user against the database before the
// handler runs. Unknown users are registered on first contact, banned
// users are cut off, and owner-only commands are gated on the
// configured owner list.
// ══════════════════════════════════════════════════════════════════════════════

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// OwnerIDs are Discord IDs allowed to run owner-only commands.
	OwnerIDs []int64

	// CacheTTL is how long resolved users stay cached.
	CacheTTL time.Duration

	// OnBanned builds the response for banned users. Empty means silence.
	OnBanned func(userID int64) string

	// OnOwnerOnly builds the response for non-owners invoking an
	// owner-only command.
	OnOwnerOnly func(userID int64) string
}

// DefaultAuthConfig returns sensible defaults for auth middleware.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		CacheTTL: 5 * time.Minute,
		OnBanned: func(userID int64) string {
			// Banned users get no feedback at all
			return ""
		},
		OnOwnerOnly: func(userID int64) string {
			return "⛔ This command is restricted to the bot owner."
		},
	}
}

// AuthMiddleware resolves and authorizes users for command dispatch.
type AuthMiddleware struct {
	users  user.Repository
	cache  user.Cache
	config AuthConfig
	owners map[int64]bool
}

// NewAuthMiddleware creates a new auth middleware. The cache is
// optional; pass nil to hit the repository on every command.
func NewAuthMiddleware(users user.Repository, cache user.Cache, config AuthConfig) *AuthMiddleware {
	owners := make(map[int64]bool, len(config.OwnerIDs))
	for _, id := range config.OwnerIDs {
		owners[id] = true
	}

	return &AuthMiddleware{
		users:  users,
		cache:  cache,
		config: config,
		owners: owners,
	}
}

// AuthResult represents the result of an authorization check.
type AuthResult struct {
	// User is the resolved user (nil when dispatch must not continue).
	User *user.User

	// ShouldContinue indicates if dispatch should proceed to the handler.
	ShouldContinue bool

	// ResponseMessage is sent to the user when dispatch stops.
	// Empty means stop silently.
	ResponseMessage string
}

// Authorize resolves the invoking user and applies ban and owner gates.
// Users never seen before are registered with their current display
// name, so every command arrives at its handler with a database row
// behind it.
func (m *AuthMiddleware) Authorize(
	ctx context.Context,
	userID int64,
	displayName string,
	ownerOnly bool,
) (*AuthResult, error) {
	u, err := m.resolve(ctx, user.ID(userID), displayName)
	if err != nil {
		return nil, fmt.Errorf("auth: resolve user %d: %w", userID, err)
	}

	if !u.CanInteract() {
		return &AuthResult{
			ShouldContinue:  false,
			ResponseMessage: m.config.OnBanned(userID),
		}, nil
	}

	if ownerOnly && !m.owners[userID] {
		return &AuthResult{
			ShouldContinue:  false,
			ResponseMessage: m.config.OnOwnerOnly(userID),
		}, nil
	}

	return &AuthResult{
		User:           u,
		ShouldContinue: true,
	}, nil
}

// IsOwner reports whether the given user is a configured bot owner.
func (m *AuthMiddleware) IsOwner(userID int64) bool {
	return m.owners[userID]
}

// resolve fetches the user, registering them on first contact.
func (m *AuthMiddleware) resolve(ctx context.Context, id user.ID, displayName string) (*user.User, error) {
	if m.cache != nil {
		if cached, err := m.cache.Get(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}

	u, err := m.users.GetByID(ctx, id)
	if errors.Is(err, user.ErrUserNotFound) {
		nickname := displayName
		u, err = m.users.Upsert(ctx, id, user.Patch{Nickname: &nickname})
	}
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		// Cache failures only cost us a future lookup
		_ = m.cache.Set(ctx, u, m.config.CacheTTL)
	}

	return u, nil
}

// InvalidateCache removes a user from the auth cache. Call this when
// user data changes outside the command path.
func (m *AuthMiddleware) InvalidateCache(ctx context.Context, id user.ID) {
	if m.cache != nil {
		_ = m.cache.Delete(ctx, id)
	}
}
