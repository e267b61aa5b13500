package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/questline-hub/questline-bot/pkg/circuitbreaker"
)

func newTestSessions(t *testing.T, poolCfg Config, sessCfg SessionConfig) (*SessionManager, *fakeDialer) {
	t.Helper()

	d := &fakeDialer{}
	p, err := NewPool(context.Background(), poolCfg, d.dial, testLogger())
	assert.NoError(t, err)
	return NewSessionManager(p, sessCfg, testLogger()), d
}

// ─────────────────────────────────────────────────────────────────────────────
// Commit / rollback choreography
// ─────────────────────────────────────────────────────────────────────────────

func TestSessionCommitsOnSuccess(t *testing.T) {
	m, d := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		// The querier handed to the work function is the transaction.
		_, ok := q.(*fakeTx)
		assert.True(t, ok)
		_, execErr := q.Exec(ctx, "UPDATE users SET coins = coins + 1")
		return execErr
	})
	assert.NoError(t, err)

	commits, rollbacks := d.conn(0).lastTx.counts()
	assert.Equal(t, 1, commits)
	assert.Equal(t, 0, rollbacks)

	stats := m.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 1, stats.Idle)
}

func TestSessionRollsBackOnError(t *testing.T) {
	m, d := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	errBoom := errors.New("boom")
	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	commits, rollbacks := d.conn(0).lastTx.counts()
	assert.Equal(t, 0, commits)
	assert.Equal(t, 1, rollbacks)

	// The connection is back in the pool despite the failure.
	stats := m.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 1, stats.Idle)
}

func TestSessionRollsBackOnPanic(t *testing.T) {
	m, d := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	assert.PanicsWithValue(t, "handler exploded", func() {
		_ = m.Run(context.Background(), func(ctx context.Context, q Querier) error {
			panic("handler exploded")
		})
	})

	commits, rollbacks := d.conn(0).lastTx.counts()
	assert.Equal(t, 0, commits)
	assert.Equal(t, 1, rollbacks)

	stats := m.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 1, stats.Idle)
}

func TestSessionRunsExactlyOneFinalizerPerSession(t *testing.T) {
	m, d := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	for i := 0; i < 3; i++ {
		err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
			return nil
		})
		assert.NoError(t, err)
	}

	// One reused connection, one transaction per run, one commit each.
	assert.Equal(t, 1, d.dialCount())
	assert.Equal(t, 3, d.conn(0).beginCount)
	commits, rollbacks := d.conn(0).lastTx.counts()
	assert.Equal(t, 1, commits)
	assert.Equal(t, 0, rollbacks)
}

func TestSessionCommitFailureDiscardsConnection(t *testing.T) {
	m, d := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		tx := q.(*fakeTx)
		tx.commitErr = errors.New("server closed the connection")
		return nil
	})
	assert.ErrorIs(t, err, ErrTransaction)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Discards)
	assert.Equal(t, 0, stats.Idle)
	assert.True(t, d.conn(0).IsClosed())
}

func TestSessionRollbackFailureDiscardsConnection(t *testing.T) {
	m, d := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	errBoom := errors.New("boom")
	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		tx := q.(*fakeTx)
		tx.rollbackErr = errors.New("server closed the connection")
		return errBoom
	})

	// The work error wins; the rollback failure is logged, not returned.
	assert.ErrorIs(t, err, errBoom)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Discards)
	assert.True(t, d.conn(0).IsClosed())
}

func TestSessionBeginFailureDiscardsConnection(t *testing.T) {
	m, d := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	// Prime the pool, then break Begin on the pooled connection.
	err := m.RunReadOnly(context.Background(), func(ctx context.Context, q Querier) error {
		return nil
	})
	assert.NoError(t, err)
	d.conn(0).beginErr = errors.New("cannot open transaction")

	err = m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrTransaction)
	assert.Equal(t, int64(1), m.Stats().Discards)
}

func TestSessionCancellationDoesNotBlockFinalization(t *testing.T) {
	m, d := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	err := m.Run(ctx, func(ctx context.Context, q Querier) error {
		// The caller gives up mid-transaction.
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)

	// Rollback still ran on the detached finalize context.
	_, rollbacks := d.conn(0).lastTx.counts()
	assert.Equal(t, 1, rollbacks)
	assert.Equal(t, 1, m.Stats().Idle)
}

// ─────────────────────────────────────────────────────────────────────────────
// Read-only path
// ─────────────────────────────────────────────────────────────────────────────

func TestSessionReadOnlySkipsTransaction(t *testing.T) {
	m, d := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	err := m.RunReadOnly(context.Background(), func(ctx context.Context, q Querier) error {
		_, execErr := q.Exec(ctx, "SELECT 1")
		return execErr
	})
	assert.NoError(t, err)

	assert.Equal(t, 0, d.conn(0).beginCount)
	assert.Equal(t, 1, d.conn(0).execCount)
	assert.Equal(t, 1, m.Stats().Idle)
}

func TestSessionReadOnlyReleasesOnError(t *testing.T) {
	m, _ := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	errBoom := errors.New("boom")
	err := m.RunReadOnly(context.Background(), func(ctx context.Context, q Querier) error {
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, m.Stats().Idle)
}

// ─────────────────────────────────────────────────────────────────────────────
// Circuit breaker
// ─────────────────────────────────────────────────────────────────────────────

func TestSessionBreakerOpensAfterConnectionFailures(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	p, err := NewPool(context.Background(), Config{MaxConns: 2, AcquireTimeout: time.Second}, d.dial, testLogger())
	assert.NoError(t, err)
	m := NewSessionManager(p, SessionConfig{BreakerThreshold: 3, BreakerCooldown: time.Minute}, testLogger())

	for i := 0; i < 3; i++ {
		err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
			return nil
		})
		assert.ErrorIs(t, err, ErrConnection)
	}

	assert.Equal(t, circuitbreaker.StateOpen, m.BreakerState())

	// With the circuit open the database is no longer dialed at all.
	err = m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, 3, d.dialCount())
}

func TestSessionPoolExhaustionDoesNotTripBreaker(t *testing.T) {
	m, _ := newTestSessions(t,
		Config{MaxConns: 1, AcquireTimeout: 30 * time.Millisecond},
		SessionConfig{BreakerThreshold: 1, BreakerCooldown: time.Minute})

	held, err := m.pool.Acquire(context.Background())
	assert.NoError(t, err)
	defer held.Release()

	err = m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, circuitbreaker.StateClosed, m.BreakerState())
}

func TestSessionQueryErrorsDoNotTripBreaker(t *testing.T) {
	m, _ := newTestSessions(t,
		Config{MaxConns: 1, AcquireTimeout: time.Second},
		SessionConfig{BreakerThreshold: 1, BreakerCooldown: time.Minute})

	for i := 0; i < 5; i++ {
		err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
			return errors.New("duplicate key value")
		})
		assert.Error(t, err)
	}

	assert.Equal(t, circuitbreaker.StateClosed, m.BreakerState())
}

// ─────────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────────

func TestSessionHealthIncludesBreakerState(t *testing.T) {
	m, _ := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	status, err := m.Health(context.Background())
	assert.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, "closed", status.Breaker)
}

// ─────────────────────────────────────────────────────────────────────────────
// Session counters
// ─────────────────────────────────────────────────────────────────────────────

func TestSessionStatsCountOutcomes(t *testing.T) {
	m, _ := newTestSessions(t, Config{MaxConns: 1, AcquireTimeout: time.Second}, SessionConfig{})

	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		return nil
	})
	assert.NoError(t, err)

	err = m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		return errors.New("boom")
	})
	assert.Error(t, err)

	err = m.RunReadOnly(context.Background(), func(ctx context.Context, q Querier) error {
		return nil
	})
	assert.NoError(t, err)

	stats := m.SessionStats()
	assert.Equal(t, int64(3), stats.Sessions)
	assert.Equal(t, int64(1), stats.Commits)
	assert.Equal(t, int64(1), stats.Rollbacks)
	assert.Equal(t, int64(1), stats.Failures)
}
