// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "user", "event", "achievement"
	Op      string // Operation that failed, e.g., "Create", "Update"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// User domain errors
var (
	ErrUserNotFound     = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrUserExists       = NewDomainError("user", "Create", ErrAlreadyExists, "user already exists")
	ErrUserBanned       = NewDomainError("user", "CheckAccess", ErrForbidden, "user is banned")
	ErrInvalidUserID    = NewDomainError("user", "Validate", ErrInvalidID, "invalid Discord user ID")
	ErrInvalidNickname  = NewDomainError("user", "Validate", ErrInvalidInput, "invalid nickname")
	ErrInvalidTimezone  = NewDomainError("user", "Validate", ErrInvalidInput, "invalid timezone")
	ErrInvalidBirthday  = NewDomainError("user", "Validate", ErrInvalidInput, "invalid birthday")
	ErrFutureBirthday   = NewDomainError("user", "Validate", ErrFutureTimestamp, "birthday cannot be in the future")
	ErrInsufficientCoin = NewDomainError("user", "Spend", ErrValueOutOfRange, "insufficient coin balance")
)

// Game and profile domain errors
var (
	ErrGameNotFound    = NewDomainError("game", "Find", ErrNotFound, "game not found")
	ErrGameExists      = NewDomainError("game", "Create", ErrAlreadyExists, "game already exists")
	ErrInvalidGameName = NewDomainError("game", "Validate", ErrInvalidInput, "invalid game name")
	ErrProfileNotFound = NewDomainError("game", "FindProfile", ErrNotFound, "profile not found")
	ErrProfileExists   = NewDomainError("game", "CreateProfile", ErrAlreadyExists, "profile already exists for this game")
)

// Event domain errors
var (
	ErrEventNotFound      = NewDomainError("event", "Find", ErrNotFound, "event not found")
	ErrEventClosed        = NewDomainError("event", "Join", ErrInvalidState, "event is not open for participation")
	ErrEventAlreadyJoined = NewDomainError("event", "Join", ErrAlreadyExists, "user already joined this event")
	ErrInvalidEventTime   = NewDomainError("event", "Validate", ErrInvalidInput, "event end time must be after start time")
	ErrInvalidEventStatus = NewDomainError("event", "UpdateStatus", ErrStateTransition, "invalid event status transition")
	ErrEventLogNotFound   = NewDomainError("event", "FindLog", ErrNotFound, "event log entry not found")
)

// Achievement domain errors
var (
	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrAchievementExists   = NewDomainError("achievement", "Create", ErrAlreadyExists, "achievement already exists")
	ErrAchievementInactive = NewDomainError("achievement", "Unlock", ErrInvalidState, "achievement is not active")
	ErrAlreadyUnlocked     = NewDomainError("achievement", "Unlock", ErrAlreadyExists, "achievement already unlocked")
	ErrInvalidRarity       = NewDomainError("achievement", "Validate", ErrInvalidInput, "invalid rarity")
	ErrInvalidProgress     = NewDomainError("achievement", "UpdateProgress", ErrValueOutOfRange, "progress must be between 0 and 100")
)

// Role domain errors
var (
	ErrRoleNotFound    = NewDomainError("role", "Find", ErrNotFound, "role not found")
	ErrRoleExists      = NewDomainError("role", "Create", ErrAlreadyExists, "role already exists")
	ErrInvalidBitValue = NewDomainError("role", "Validate", ErrValueOutOfRange, "bit value must be a positive power of two")
	ErrRoleInactive    = NewDomainError("role", "Check", ErrInvalidState, "role is not active")
)

// Command usage domain errors
var (
	ErrUsageNotFound       = NewDomainError("usage", "Find", ErrNotFound, "usage record not found")
	ErrInvalidCommandName  = NewDomainError("usage", "Validate", ErrInvalidInput, "invalid command name")
	ErrRetentionOutOfRange = NewDomainError("usage", "Prune", ErrValueOutOfRange, "retention period out of range")
)

// Cog registry domain errors
var (
	ErrCogNotFound  = NewDomainError("cog", "Find", ErrNotFound, "cog not found")
	ErrInvalidCogID = NewDomainError("cog", "Validate", ErrInvalidInput, "invalid cog module name")
)

// External service errors
var (
	ErrDiscordAPIUnavailable = NewDomainError("discord", "Request", ErrServiceUnavailable, "Discord API is unavailable")
	ErrDiscordAPIRateLimited = NewDomainError("discord", "Request", ErrRateLimited, "Discord API rate limit exceeded")
	ErrDiscordAPITimeout     = NewDomainError("discord", "Request", ErrTimeout, "Discord API request timeout")
	ErrDiscordInvalidPayload = NewDomainError("discord", "Parse", ErrInvalidFormat, "invalid payload from Discord API")
	ErrGatewayDisconnected   = NewDomainError("discord", "Gateway", ErrServiceUnavailable, "gateway connection lost")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
