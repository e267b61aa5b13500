package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

// fast keeps test retries from actually sleeping.
func fast(opts ...Option) *Retrier {
	base := []Option{
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5 * time.Millisecond),
		WithJitter(0),
	}
	return New(append(base, opts...)...)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(3)).Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestRetryPermanentStopsImmediately(t *testing.T) {
	errBad := errors.New("bad credentials")
	calls := 0
	err := fast().Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errBad)
	})

	assert.Equal(t, errBad, err)
	assert.Equal(t, 1, calls)
}

func TestRetryIfRejectsError(t *testing.T) {
	errFatal := errors.New("fatal")
	calls := 0
	r := fast(WithRetryIf(func(err error) bool {
		return !errors.Is(err, errFatal)
	}))

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errFatal
	})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestRetryStopsWhenContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fast().Do(ctx, func(context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestRetryReturnsLastErrorOnCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	r := New(WithInitialDelay(time.Hour), WithJitter(0))
	err := r.Do(ctx, func(context.Context) error {
		cancel()
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
}

func TestRetryBackoffGrowsAndCaps(t *testing.T) {
	var delays []time.Duration
	r := New(
		WithMaxAttempts(4),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
		WithMultiplier(2.0),
		WithJitter(0),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			delays = append(delays, delay)
		}),
	)
	_ = r.Do(context.Background(), func(context.Context) error { return errFlaky })

	require.Equal(t, []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		2 * time.Millisecond,
	}, delays)
}

func TestRetryOnRetrySeesAttemptNumbers(t *testing.T) {
	var attempts []int
	r := fast(
		WithMaxAttempts(3),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
			assert.ErrorIs(t, err, errFlaky)
		}),
	)

	_ = r.Do(context.Background(), func(context.Context) error { return errFlaky })

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestPermanentNilIsNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(errFlaky))
	assert.True(t, IsPermanent(Permanent(errFlaky)))
}

func TestSpreadStaysWithinJitterBand(t *testing.T) {
	r := New(WithJitter(0.5))
	base := 100 * time.Millisecond

	for i := 0; i < 50; i++ {
		d := r.spread(base)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestDatabaseRetrierRetriesDialErrors(t *testing.T) {
	r := DatabaseRetrier()
	assert.Equal(t, 3, r.maxAttempts)
	assert.Equal(t, time.Second, r.initialDelay)
}
