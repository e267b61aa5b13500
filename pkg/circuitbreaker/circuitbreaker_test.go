package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

// open drives a closed breaker into the open state.
func open(t *testing.T, cb *CircuitBreaker, failures int) {
	t.Helper()
	for i := 0; i < failures; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	require.Equal(t, StateOpen, cb.State())
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	cb := New("db", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), fail)
		assert.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var from, to State
	cb := New("db",
		WithFailureThreshold(3),
		WithOnStateChange(func(name string, f, t State) {
			from, to = f, t
		}),
	)

	open(t, cb, 3)
	assert.Equal(t, StateClosed, from)
	assert.Equal(t, StateOpen, to)
}

func TestBreakerFailsFastWhileOpen(t *testing.T) {
	cb := New("db", WithFailureThreshold(1), WithTimeout(time.Hour))
	open(t, cb, 1)

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := New("db", WithFailureThreshold(3))

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	require.NoError(t, cb.Execute(context.Background(), ok))
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerClosesAfterSuccessfulProbe(t *testing.T) {
	cb := New("db", WithFailureThreshold(1), WithTimeout(10*time.Millisecond))
	open(t, cb, 1)

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	cb := New("db", WithFailureThreshold(1), WithTimeout(10*time.Millisecond))
	open(t, cb, 1)

	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(context.Background(), fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, cb.State())

	// The failed probe restarts the cool-down.
	err = cb.Execute(context.Background(), ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerAllowsOneProbeAtATime(t *testing.T) {
	cb := New("db", WithFailureThreshold(1), WithTimeout(10*time.Millisecond))
	open(t, cb, 1)

	time.Sleep(20 * time.Millisecond)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- cb.Execute(context.Background(), func(context.Context) error {
			close(probeStarted)
			<-release
			return nil
		})
	}()

	<-probeStarted
	err := cb.Execute(context.Background(), ok)
	assert.ErrorIs(t, err, ErrTooManyRequests)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerSuccessThresholdDelaysClose(t *testing.T) {
	cb := New("db",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(10*time.Millisecond),
	)
	open(t, cb, 1)

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerClassifierIgnoresBenignErrors(t *testing.T) {
	errBenign := errors.New("no rows")
	cb := New("db",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool {
			return !errors.Is(err, errBenign)
		}),
	)

	for i := 0; i < 5; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error {
			return errBenign
		})
		assert.ErrorIs(t, err, errBenign)
	}
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerReset(t *testing.T) {
	cb := New("db", WithFailureThreshold(1), WithTimeout(time.Hour))
	open(t, cb, 1)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	require.NoError(t, cb.Execute(context.Background(), ok))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
