package middleware

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// Catches panics in command handlers and converts them to user-facing
// error messages. A crashing handler must never take the dispatch loop
// down with it.
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace enables capturing stack traces.
	EnableStackTrace bool

	// UserErrorMessage is the message sent to users when a panic occurs.
	UserErrorMessage string

	// MaxPanicsPerMinute limits how many panics to process per minute
	// to prevent cascading failures.
	MaxPanicsPerMinute int

	// OnPanic is called when a panic is recovered.
	OnPanic func(ctx context.Context, info *PanicInfo)
}

// DefaultRecoveryConfig returns sensible defaults for recovery middleware.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		EnableStackTrace:   true,
		UserErrorMessage:   "😔 Something went wrong running that command. The team has been notified.",
		MaxPanicsPerMinute: 100,
	}
}

// PanicInfo contains information about a recovered panic.
type PanicInfo struct {
	// Error is the panic value converted to error.
	Error error

	// PanicValue is the raw panic value.
	PanicValue interface{}

	// StackTrace is the formatted stack trace.
	StackTrace string

	// UserID is the Discord user whose command panicked.
	UserID int64

	// Command is the command that was being processed.
	Command string

	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

// RecoveryResult reports what happened inside a recovered handler call.
type RecoveryResult struct {
	// Recovered indicates a panic was caught.
	Recovered bool

	// PanicInfo contains panic details (nil unless Recovered).
	PanicInfo *PanicInfo

	// Err is the error the handler returned (nil on panic or success).
	Err error

	// UserMessage is the message to show the user, empty when none.
	UserMessage string
}

// RecoveryMiddleware recovers from panics in command handlers.
type RecoveryMiddleware struct {
	config       RecoveryConfig
	panicCounter *panicRateLimiter
}

// NewRecoveryMiddleware creates a new recovery middleware.
func NewRecoveryMiddleware(config RecoveryConfig) *RecoveryMiddleware {
	return &RecoveryMiddleware{
		config:       config,
		panicCounter: newPanicRateLimiter(config.MaxPanicsPerMinute),
	}
}

// Run executes a handler under panic protection.
func (m *RecoveryMiddleware) Run(
	ctx context.Context,
	userID int64,
	command string,
	handler func() error,
) *RecoveryResult {
	var result *RecoveryResult

	func() {
		defer func() {
			if r := recover(); r != nil {
				result = m.handlePanic(ctx, r, userID, command)
			}
		}()
		result = &RecoveryResult{Err: handler()}
	}()

	return result
}

// handlePanic processes a recovered panic.
func (m *RecoveryMiddleware) handlePanic(
	ctx context.Context,
	panicValue interface{},
	userID int64,
	command string,
) *RecoveryResult {
	// Rate limit panic processing
	if !m.panicCounter.allow() {
		return &RecoveryResult{
			Recovered:   true,
			UserMessage: m.config.UserErrorMessage,
		}
	}

	info := &PanicInfo{
		Error:      toError(panicValue),
		PanicValue: panicValue,
		UserID:     userID,
		Command:    command,
		Timestamp:  time.Now(),
	}

	if m.config.EnableStackTrace {
		info.StackTrace = string(debug.Stack())
	}

	if m.config.OnPanic != nil {
		m.config.OnPanic(ctx, info)
	}

	return &RecoveryResult{
		Recovered:   true,
		PanicInfo:   info,
		UserMessage: m.config.UserErrorMessage,
	}
}

// toError converts a panic value to an error.
func toError(panicValue interface{}) error {
	switch v := panicValue.(type) {
	case error:
		return v
	case string:
		return fmt.Errorf("%s", v)
	default:
		return fmt.Errorf("panic: %v", v)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PANIC RATE LIMITER
// Prevents cascading failures by limiting how many panics we process.
// ══════════════════════════════════════════════════════════════════════════════

type panicRateLimiter struct {
	mu        sync.Mutex
	count     int
	maxPerMin int
	window    time.Time
}

func newPanicRateLimiter(maxPerMin int) *panicRateLimiter {
	return &panicRateLimiter{
		maxPerMin: maxPerMin,
		window:    time.Now(),
	}
}

func (p *panicRateLimiter) allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()

	if now.Sub(p.window) > time.Minute {
		p.count = 0
		p.window = now
	}

	if p.count >= p.maxPerMin {
		return false
	}

	p.count++
	return true
}
