package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/questline-hub/questline-bot/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION MANAGER
// A session is acquire, begin, work, exactly one of commit or rollback,
// release. The manager owns that choreography so command handlers and
// services cannot leak a connection or leave a transaction open, even
// when the work function panics or the caller context dies mid-flight.
// ══════════════════════════════════════════════════════════════════════════════

// SessionFunc is the unit of work executed inside a session. The Querier
// it receives is the transaction for Run and the bare connection for
// RunReadOnly, so raw SQL and repository calls share one view of data.
type SessionFunc func(ctx context.Context, q Querier) error

// SessionManager coordinates pooled connections and transactions.
type SessionManager struct {
	pool            *Pool
	breaker         *circuitbreaker.CircuitBreaker
	logger          *slog.Logger
	finalizeTimeout time.Duration

	sessions  atomic.Int64
	commits   atomic.Int64
	rollbacks atomic.Int64
	failures  atomic.Int64
}

// SessionStats counts session outcomes since startup.
type SessionStats struct {
	Sessions  int64
	Commits   int64
	Rollbacks int64
	Failures  int64
}

// SessionConfig holds session manager tuning.
type SessionConfig struct {
	// FinalizeTimeout bounds commit and rollback. Finalization runs on a
	// context detached from the caller, so a canceled command cannot
	// leave a transaction open on the server.
	FinalizeTimeout time.Duration

	// BreakerThreshold is the number of consecutive connection failures
	// that opens the circuit.
	BreakerThreshold int

	// BreakerCooldown is how long the circuit stays open before a trial
	// request is allowed through.
	BreakerCooldown time.Duration
}

// DefaultSessionConfig returns the session defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		FinalizeTimeout:  5 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// NewSessionManager creates a session manager on top of the pool.
func NewSessionManager(pool *Pool, cfg SessionConfig, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = DefaultSessionConfig().FinalizeTimeout
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = DefaultSessionConfig().BreakerThreshold
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = DefaultSessionConfig().BreakerCooldown
	}

	logger = logger.With(slog.String("component", "pgsession"))

	// Only infrastructure failures feed the breaker. A full pool or a
	// failing statement says nothing about database reachability.
	breaker := circuitbreaker.New("postgres",
		circuitbreaker.WithFailureThreshold(cfg.BreakerThreshold),
		circuitbreaker.WithTimeout(cfg.BreakerCooldown),
		circuitbreaker.WithIsFailure(func(err error) bool {
			return errors.Is(err, ErrConnection)
		}),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			logger.Warn("database circuit state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		}),
	)

	return &SessionManager{
		pool:            pool,
		breaker:         breaker,
		logger:          logger,
		finalizeTimeout: cfg.FinalizeTimeout,
	}
}

// Run executes fn inside a transaction. fn returning nil commits; any
// error or panic rolls back. The connection goes back to the pool on
// every path; it is discarded only when commit or rollback itself fails
// and the connection state is unknown.
func (m *SessionManager) Run(ctx context.Context, fn SessionFunc) error {
	m.sessions.Add(1)

	conn, err := m.acquire(ctx)
	if err != nil {
		m.failures.Add(1)
		return err
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		// A connection that cannot open a transaction is not worth pooling.
		conn.Discard()
		m.failures.Add(1)
		return fmt.Errorf("%w: begin: %v", ErrTransaction, err)
	}

	finalized := false
	defer func() {
		if !finalized {
			// Reached only when fn panicked. Roll back and let the panic
			// continue to the recovery middleware.
			m.rollback(ctx, conn, tx)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		finalized = true
		m.failures.Add(1)
		m.rollback(ctx, conn, tx)
		return err
	}

	finalized = true
	if err := m.commit(ctx, conn, tx); err != nil {
		m.failures.Add(1)
		return err
	}
	return nil
}

// RunReadOnly executes fn on a bare pooled connection without opening a
// transaction. Use for queries; writes belong in Run.
func (m *SessionManager) RunReadOnly(ctx context.Context, fn SessionFunc) error {
	m.sessions.Add(1)

	conn, err := m.acquire(ctx)
	if err != nil {
		m.failures.Add(1)
		return err
	}
	defer conn.Release()

	if err := fn(ctx, conn); err != nil {
		m.failures.Add(1)
		return err
	}
	return nil
}

// acquire checks a connection out through the circuit breaker.
func (m *SessionManager) acquire(ctx context.Context) (*PooledConn, error) {
	var conn *PooledConn

	err := m.breaker.Execute(ctx, func(ctx context.Context) error {
		var aerr error
		conn, aerr = m.pool.Acquire(ctx)
		return aerr
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrConnection, err)
		}
		return nil, err
	}

	return conn, nil
}

// commit finalizes the transaction on a context detached from the caller.
func (m *SessionManager) commit(ctx context.Context, conn *PooledConn, tx Tx) error {
	fctx, cancel := m.finalizeContext(ctx)
	defer cancel()

	if err := tx.Commit(fctx); err != nil {
		conn.Discard()
		return fmt.Errorf("%w: commit: %v", ErrTransaction, err)
	}

	m.commits.Add(1)
	conn.Release()
	return nil
}

// rollback finalizes the transaction on a context detached from the
// caller. A failed rollback leaves server-side state unknown, so the
// connection is discarded rather than pooled.
func (m *SessionManager) rollback(ctx context.Context, conn *PooledConn, tx Tx) {
	m.rollbacks.Add(1)

	fctx, cancel := m.finalizeContext(ctx)
	defer cancel()

	if err := tx.Rollback(fctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		m.logger.Error("session rollback failed, discarding connection",
			slog.String("error", err.Error()))
		conn.Discard()
		return
	}

	conn.Release()
}

// finalizeContext detaches from the caller's cancellation while keeping
// its values, then bounds finalization with its own deadline.
func (m *SessionManager) finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.finalizeTimeout)
}

// Health reports pool health plus breaker state.
func (m *SessionManager) Health(ctx context.Context) (*HealthStatus, error) {
	status, err := m.pool.Healthcheck(ctx)
	if status != nil {
		status.Breaker = m.breaker.State().String()
	}
	return status, err
}

// Stats exposes the underlying pool counters.
func (m *SessionManager) Stats() Stats {
	return m.pool.Stats()
}

// SessionStats exposes session outcome counters.
func (m *SessionManager) SessionStats() SessionStats {
	return SessionStats{
		Sessions:  m.sessions.Load(),
		Commits:   m.commits.Load(),
		Rollbacks: m.rollbacks.Load(),
		Failures:  m.failures.Load(),
	}
}

// BreakerState returns the current circuit state.
func (m *SessionManager) BreakerState() circuitbreaker.State {
	return m.breaker.State()
}
