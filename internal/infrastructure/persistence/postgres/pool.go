package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION POOL
// Bounded pool with a token semaphore and a LIFO idle stack. Tokens are
// pre-filled: Acquire takes one, Release returns one, Close collects all
// of them, which is what makes shutdown wait for in-flight sessions.
// ══════════════════════════════════════════════════════════════════════════════

// Pool is a bounded PostgreSQL connection pool.
//
// Invariants:
//   - at most MaxConns connections exist at any moment;
//   - a connection is probed before every handout and replaced if dead;
//   - a released connection returns to the idle stack whatever the
//     outcome of the work done on it, unless it was discarded.
type Pool struct {
	cfg    Config
	dial   DialFunc
	logger *slog.Logger

	// slots is pre-filled with MaxConns tokens. Holding a token means
	// holding the right to one live connection.
	slots chan struct{}

	mu     sync.Mutex
	idle   []*PooledConn // LIFO: last released is first reused
	inUse  int
	closed bool

	acquires      int64
	discards      int64
	waits         int64
	dials         int64
	probeFailures int64
}

// PooledConn is a connection checked out of the pool. It must be returned
// with exactly one call to Release or Discard.
type PooledConn struct {
	conn      Conn
	pool      *Pool
	idleSince time.Time

	mu       sync.Mutex
	returned bool
	broken   bool
}

// NewPool dials MinConns connections and returns a ready pool.
// A dial failure during warmup closes everything and surfaces ErrConnection.
func NewPool(ctx context.Context, cfg Config, dial DialFunc, logger *slog.Logger) (*Pool, error) {
	cfg = cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		cfg:    cfg,
		dial:   dial,
		logger: logger.With(slog.String("component", "pgpool")),
		slots:  make(chan struct{}, cfg.MaxConns),
	}
	for i := 0; i < cfg.MaxConns; i++ {
		p.slots <- struct{}{}
	}

	for i := 0; i < cfg.MinConns; i++ {
		conn, err := p.dialConn(ctx)
		if err != nil {
			p.closeIdle()
			return nil, err
		}
		conn.idleSince = time.Now()
		p.idle = append(p.idle, conn)
	}

	p.logger.Info("connection pool ready",
		slog.Int("min_conns", cfg.MinConns),
		slog.Int("max_conns", cfg.MaxConns))

	return p, nil
}

// Acquire checks a connection out of the pool. It blocks until a
// connection is free or the acquire timeout elapses, whichever is first.
// The returned connection has passed a liveness probe.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	acquireCtx := ctx
	if p.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	select {
	case <-p.slots:
	default:
		// No free slot: record the wait and block.
		p.mu.Lock()
		p.waits++
		p.mu.Unlock()

		select {
		case <-p.slots:
		case <-acquireCtx.Done():
			err := acquireCtx.Err()
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return nil, fmt.Errorf("%w: %v", ErrPoolExhausted, err)
		}
	}

	// Closed may have flipped while waiting for a slot.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.slots <- struct{}{}
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	conn, err := p.checkout(ctx)
	if err != nil {
		p.slots <- struct{}{}
		return nil, err
	}

	p.mu.Lock()
	p.inUse++
	p.acquires++
	p.mu.Unlock()

	return conn, nil
}

// checkout pops idle connections until one passes the probe, then falls
// back to dialing a fresh one.
func (p *Pool) checkout(ctx context.Context) (*PooledConn, error) {
	for {
		p.mu.Lock()
		var pc *PooledConn
		if n := len(p.idle); n > 0 {
			pc = p.idle[n-1]
			p.idle = p.idle[:n-1]
		}
		p.mu.Unlock()

		if pc == nil {
			return p.dialConn(ctx)
		}

		if p.cfg.ConnMaxIdleTime > 0 && time.Since(pc.idleSince) > p.cfg.ConnMaxIdleTime {
			p.closeConn(pc.conn)
			continue
		}

		if err := p.probe(ctx, pc); err != nil {
			p.mu.Lock()
			p.probeFailures++
			p.mu.Unlock()
			p.logger.Warn("replacing dead idle connection", slog.String("error", err.Error()))
			p.closeConn(pc.conn)
			continue
		}

		pc.reset()
		return pc, nil
	}
}

// probe verifies the connection is alive within the healthcheck timeout.
func (p *Pool) probe(ctx context.Context, pc *PooledConn) error {
	if pc.conn.IsClosed() {
		return fmt.Errorf("connection already closed")
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.HealthcheckTimeout)
	defer cancel()

	return pc.conn.Ping(probeCtx)
}

// dialConn establishes a fresh connection via the dial function.
func (p *Pool) dialConn(ctx context.Context) (*PooledConn, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.dials++
	p.mu.Unlock()

	return &PooledConn{conn: conn, pool: p}, nil
}

// release puts a connection back. Broken connections are closed instead
// of pooled so the next Acquire dials a replacement.
func (p *Pool) release(pc *PooledConn, broken bool) {
	p.mu.Lock()
	keep := !broken && !p.closed && !pc.conn.IsClosed()
	if keep {
		pc.idleSince = time.Now()
		p.idle = append(p.idle, pc)
	}
	if broken {
		p.discards++
	}
	p.inUse--
	p.mu.Unlock()

	if !keep {
		p.closeConn(pc.conn)
	}

	p.slots <- struct{}{}
}

// closeConn closes a raw connection with a short independent deadline.
func (p *Pool) closeConn(conn Conn) {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Close(closeCtx); err != nil {
		p.logger.Debug("connection close failed", slog.String("error", err.Error()))
	}
}

// closeIdle closes every idle connection. Callers must not hold mu.
func (p *Pool) closeIdle() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, pc := range idle {
		p.closeConn(pc.conn)
	}
}

// Healthcheck acquires a connection and runs a round-trip probe query.
// It exercises the same path commands use, so a green healthcheck means
// the pool, not just the network, is serviceable.
func (p *Pool) Healthcheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{CheckedAt: time.Now().UTC()}

	conn, err := p.Acquire(ctx)
	if err != nil {
		status.Error = err.Error()
		return status, err
	}
	defer conn.Release()

	start := time.Now()
	var one int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		conn.MarkBroken()
		status.Error = err.Error()
		return status, WrapQuery(err)
	}
	status.RoundTrip = time.Since(start)
	status.Healthy = true
	status.Stats = p.Stats()

	return status, nil
}

// HealthStatus describes the outcome of a pool healthcheck.
type HealthStatus struct {
	Healthy   bool
	Error     string
	CheckedAt time.Time
	RoundTrip time.Duration
	Stats     Stats

	// Breaker is the circuit state, filled in by the session manager.
	Breaker string
}

// Stats is a point-in-time snapshot of pool state.
type Stats struct {
	// Size is the number of live connections, in use plus idle.
	Size int
	// InUse is the number of connections currently checked out.
	InUse int
	// Idle is the number of connections waiting on the idle stack.
	Idle int
	// MaxConns is the configured upper bound.
	MaxConns int

	// Acquires counts successful checkouts since the pool started.
	Acquires int64
	// Discards counts connections dropped instead of pooled.
	Discards int64
	// Waits counts acquires that blocked on a full pool.
	Waits int64
	// Dials counts fresh connections established.
	Dials int64
	// ProbeFailures counts dead connections caught by the handout probe.
	ProbeFailures int64
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Size:          p.inUse + len(p.idle),
		InUse:         p.inUse,
		Idle:          len(p.idle),
		MaxConns:      p.cfg.MaxConns,
		Acquires:      p.acquires,
		Discards:      p.discards,
		Waits:         p.waits,
		Dials:         p.dials,
		ProbeFailures: p.probeFailures,
	}
}

// Close drains the pool: it waits for checked-out connections to come
// back, then closes everything. When ctx expires first, remaining
// connections are abandoned to their owners and idle ones are closed.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	collected := 0
	for i := 0; i < cap(p.slots); i++ {
		select {
		case <-p.slots:
			collected++
		case <-ctx.Done():
			p.closeIdle()
			return fmt.Errorf("%w: %d connections still in use at shutdown",
				ErrPoolClosed, cap(p.slots)-collected)
		}
	}

	p.closeIdle()
	p.logger.Info("connection pool closed")
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PooledConn
// ─────────────────────────────────────────────────────────────────────────────

// reset prepares a connection for a new checkout.
func (pc *PooledConn) reset() {
	pc.mu.Lock()
	pc.returned = false
	pc.broken = false
	pc.mu.Unlock()
}

// Release returns the connection to the pool. Safe to call more than
// once; only the first call counts. A connection flagged with MarkBroken
// is discarded instead of pooled.
func (pc *PooledConn) Release() {
	pc.mu.Lock()
	if pc.returned {
		pc.mu.Unlock()
		return
	}
	pc.returned = true
	broken := pc.broken
	pc.mu.Unlock()

	pc.pool.release(pc, broken)
}

// Discard closes the connection instead of pooling it. Use after commit
// or rollback failures when the connection state is unknown.
func (pc *PooledConn) Discard() {
	pc.mu.Lock()
	if pc.returned {
		pc.mu.Unlock()
		return
	}
	pc.returned = true
	pc.mu.Unlock()

	pc.pool.release(pc, true)
}

// MarkBroken flags the connection so the eventual Release discards it.
func (pc *PooledConn) MarkBroken() {
	pc.mu.Lock()
	pc.broken = true
	pc.mu.Unlock()
}

// Begin starts a transaction on this connection.
func (pc *PooledConn) Begin(ctx context.Context) (Tx, error) {
	return pc.conn.Begin(ctx)
}

// Ping probes the connection.
func (pc *PooledConn) Ping(ctx context.Context) error {
	return pc.conn.Ping(ctx)
}

// Exec implements Querier.
func (pc *PooledConn) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return pc.conn.Exec(ctx, sql, arguments...)
}

// Query implements Querier.
func (pc *PooledConn) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return pc.conn.Query(ctx, sql, args...)
}

// QueryRow implements Querier.
func (pc *PooledConn) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return pc.conn.QueryRow(ctx, sql, args...)
}

// ─────────────────────────────────────────────────────────────────────────────
// Pool as Querier
// Single-shot statements check a connection out, run, and return it.
// Repositories bound to the pool work without an explicit session.
// ─────────────────────────────────────────────────────────────────────────────

// Exec implements Querier with a per-call checkout.
func (p *Pool) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, sql, arguments...)
	if err != nil {
		return tag, WrapQuery(err)
	}
	return tag, nil
}

// Query implements Querier with a per-call checkout. The connection is
// released when the returned rows are fully read or closed.
func (p *Pool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		conn.Release()
		return nil, WrapQuery(err)
	}

	return &pooledRows{Rows: rows, conn: conn}, nil
}

// QueryRow implements Querier with a per-call checkout.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return errRow{err: err}
	}

	row := conn.QueryRow(ctx, sql, args...)
	return &pooledRow{row: row, conn: conn}
}

// pooledRows releases the underlying connection when closed. Callers
// must close the rows, as with any pgx result set.
type pooledRows struct {
	pgx.Rows
	conn *PooledConn
	once sync.Once
}

func (r *pooledRows) Close() {
	r.Rows.Close()
	r.once.Do(r.conn.Release)
}

// pooledRow releases the connection after Scan.
type pooledRow struct {
	row  pgx.Row
	conn *PooledConn
}

func (r *pooledRow) Scan(dest ...interface{}) error {
	defer r.conn.Release()
	return r.row.Scan(dest...)
}

// errRow carries an acquire error into the deferred Scan call.
type errRow struct {
	err error
}

func (r errRow) Scan(dest ...interface{}) error {
	return r.err
}
