// Package postgres implements the PostgreSQL persistence layer for Questline.
// It carries its own bounded connection pool: every connection is probed
// before handout and transparently replaced when the probe fails, so callers
// never receive a dead connection.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnection indicates the database could not be reached or a
	// connection handshake failed.
	ErrConnection = errors.New("postgres: connection error")

	// ErrPoolExhausted indicates no connection became free within the
	// acquire timeout.
	ErrPoolExhausted = errors.New("postgres: pool exhausted")

	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = errors.New("postgres: pool is closed")

	// ErrQuery indicates a statement failed or timed out.
	ErrQuery = errors.New("postgres: query failed")

	// ErrTransaction indicates begin, commit or rollback failed.
	ErrTransaction = errors.New("postgres: transaction failed")

	// ErrMigrationFailed indicates a migration failure.
	ErrMigrationFailed = errors.New("postgres: migration failed")

	// ErrNoRows is returned when a query returns no rows.
	ErrNoRows = pgx.ErrNoRows
)

// WrapQuery maps a low-level statement error onto the package taxonomy.
// Context timeouts become ErrQuery, network failures become ErrConnection.
func WrapQuery(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrQuery, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s (%s)", ErrQuery, pgErr.Message, pgErr.Code)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return fmt.Errorf("%w: %v", ErrQuery, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// IsUniqueViolation checks if the error is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// IsForeignKeyViolation checks if the error is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" // foreign_key_violation
	}
	return false
}

// IsNotNullViolation checks if the error is a not null violation.
func IsNotNullViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23502" // not_null_violation
	}
	return false
}

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
