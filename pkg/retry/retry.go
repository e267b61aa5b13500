// Package retry runs an operation until it succeeds, with jittered
// exponential backoff between attempts. Every error is retried unless
// it is marked Permanent or a RetryIf classifier rejects it.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// PermanentError stops the retry loop immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks an error as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a Permanent marker.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Retrier holds a backoff policy.
type Retrier struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       float64 // fraction of the delay, 0..1

	retryIf func(error) bool
	onRetry func(attempt int, err error, delay time.Duration)
}

// Option adjusts a Retrier at construction time.
type Option func(*Retrier)

// WithMaxAttempts caps total attempts, first call included (default 3).
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry (default 100ms).
func WithInitialDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.initialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff (default 30s).
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.maxDelay = d
		}
	}
}

// WithMultiplier sets the backoff growth factor (default 2.0).
func WithMultiplier(m float64) Option {
	return func(r *Retrier) {
		if m >= 1.0 {
			r.multiplier = m
		}
	}
}

// WithJitter sets the jitter fraction, 0 (none) to 1 (full spread).
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		if j >= 0 && j <= 1.0 {
			r.jitter = j
		}
	}
}

// WithRetryIf installs a classifier; errors it rejects end the loop.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) { r.retryIf = fn }
}

// WithOnRetry installs a callback fired before each sleep.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// New builds a Retrier.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		maxAttempts:  3,
		initialDelay: 100 * time.Millisecond,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		jitter:       0.1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs operation until it succeeds, the attempts run out, the error
// is non-retryable, or ctx is cancelled. Permanent errors come back
// unwrapped.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error
	delay := r.initialDelay

	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if lastErr != nil {
				return lastErr
			}
			return ctxErr
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if r.retryIf != nil && !r.retryIf(err) {
			return err
		}
		if attempt >= r.maxAttempts {
			return err
		}

		sleep := r.spread(delay)
		if r.onRetry != nil {
			r.onRetry(attempt, err, sleep)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * r.multiplier)
		if delay > r.maxDelay {
			delay = r.maxDelay
		}
	}
}

// spread randomizes a delay by ±jitter.
func (r *Retrier) spread(delay time.Duration) time.Duration {
	if r.jitter <= 0 {
		return delay
	}
	offset := float64(delay) * r.jitter * (rand.Float64()*2 - 1)
	out := time.Duration(float64(delay) + offset)
	if out < 0 {
		return 0
	}
	return out
}

// DatabaseRetrier is tuned for establishing database connections:
// 3 attempts, 1s then 2s between them (plus jitter).
func DatabaseRetrier() *Retrier {
	return New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Second),
		WithMaxDelay(10*time.Second),
	)
}
