// Package circuitbreaker guards calls to a flaky dependency. After a
// run of consecutive failures the circuit opens and callers fail fast;
// once the cool-down passes a single probe decides whether to close it
// again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen means the cool-down has not elapsed yet.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests means a recovery probe is already in flight.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// State of the circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Option tweaks a breaker at construction time.
type Option func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive failures open the
// circuit (default 5).
func WithFailureThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive half-open successes
// close the circuit (default 1).
func WithSuccessThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.successThreshold = n
		}
	}
}

// WithTimeout sets the open-state cool-down (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.cooldown = d
		}
	}
}

// WithIsFailure installs a classifier; errors it rejects do not count
// against the threshold. Nil counts every non-nil error.
func WithIsFailure(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.isFailure = fn }
}

// WithOnStateChange installs a transition callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(cb *CircuitBreaker) { cb.onStateChange = fn }
}

// CircuitBreaker tracks consecutive failures of a named dependency.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	isFailure        func(error) bool
	onStateChange    func(name string, from, to State)

	mu            sync.Mutex
	state         State
	failures      int // consecutive, classified failures
	successes     int // consecutive successes while half-open
	openedAt      time.Time
	probeInFlight bool
}

// New builds a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 1,
		cooldown:         30 * time.Second,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed and clears counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
}

// Execute runs fn when the circuit allows it and feeds the outcome
// back into the state machine. fn's error is returned as-is.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

// admit decides whether a call may proceed.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probeInFlight = true
		return nil

	case StateHalfOpen:
		if cb.probeInFlight {
			return ErrTooManyRequests
		}
		cb.probeInFlight = true
		return nil
	}
	return nil
}

// record feeds a call outcome into the state machine.
func (cb *CircuitBreaker) record(err error) {
	failed := err != nil
	if failed && cb.isFailure != nil {
		failed = cb.isFailure(err)
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probeInFlight = false

	if failed {
		cb.successes = 0
		cb.failures++
		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.failureThreshold {
				cb.trip()
			}
		case StateHalfOpen:
			// Probe failed, back to waiting.
			cb.trip()
		}
		return
	}

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.transition(StateClosed)
		}
	}
}

// trip opens the circuit and stamps the cool-down clock.
// Caller holds cb.mu.
func (cb *CircuitBreaker) trip() {
	cb.openedAt = time.Now()
	cb.transition(StateOpen)
}

// transition moves to a new state and resets counters.
// Caller holds cb.mu.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	cb.probeInFlight = false

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}
