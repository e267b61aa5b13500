package postgres

import (
	"context"
	"fmt"

	"github.com/questline-hub/questline-bot/internal/domain/cog"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// COG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CogRepository implements cog.Repository for PostgreSQL.
type CogRepository struct {
	q Querier
}

// NewCogRepository creates a new CogRepository.
func NewCogRepository(q Querier) *CogRepository {
	return &CogRepository{q: q}
}

// WithQuerier returns a copy bound to q, typically a transaction.
func (r *CogRepository) WithQuerier(q Querier) *CogRepository {
	return &CogRepository{q: q}
}

// Get returns a registry record by module name.
func (r *CogRepository) Get(ctx context.Context, module cog.Module) (*cog.Record, error) {
	query := `
		SELECT cog_module, is_enabled, version, loaded_at
		FROM cogs
		WHERE cog_module = $1
	`

	row := r.q.QueryRow(ctx, query, module.String())
	return r.scanRecord(row)
}

// GetAll returns every registry record.
func (r *CogRepository) GetAll(ctx context.Context) ([]*cog.Record, error) {
	query := `
		SELECT cog_module, is_enabled, version, loaded_at
		FROM cogs
		ORDER BY cog_module
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cogs: %w", err)
	}
	defer rows.Close()

	var records []*cog.Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// Upsert creates or updates a registry record.
func (r *CogRepository) Upsert(ctx context.Context, rec *cog.Record) error {
	query := `
		INSERT INTO cogs (cog_module, is_enabled, version, loaded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cog_module) DO UPDATE SET
			is_enabled = $2,
			version    = $3,
			loaded_at  = $4
	`

	var version *string
	if rec.Version != "" {
		version = &rec.Version
	}

	_, err := r.q.Exec(ctx, query,
		rec.Module.String(),
		rec.IsEnabled,
		version,
		rec.LoadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cog record: %w", err)
	}

	return nil
}

// SetEnabled flips the autoload flag for a module.
func (r *CogRepository) SetEnabled(ctx context.Context, module cog.Module, enabled bool) error {
	query := `UPDATE cogs SET is_enabled = $2 WHERE cog_module = $1`

	tag, err := r.q.Exec(ctx, query, module.String(), enabled)
	if err != nil {
		return fmt.Errorf("failed to set cog enabled flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cog.ErrRecordNotFound
	}

	return nil
}

// Delete removes a registry record.
func (r *CogRepository) Delete(ctx context.Context, module cog.Module) error {
	query := `DELETE FROM cogs WHERE cog_module = $1`

	tag, err := r.q.Exec(ctx, query, module.String())
	if err != nil {
		return fmt.Errorf("failed to delete cog record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cog.ErrRecordNotFound
	}

	return nil
}

// scanRecord scans a single registry record.
func (r *CogRepository) scanRecord(row pgx.Row) (*cog.Record, error) {
	var rec cog.Record
	var module string
	var version *string

	err := row.Scan(&module, &rec.IsEnabled, &version, &rec.LoadedAt)

	if IsNoRows(err) {
		return nil, cog.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cog record: %w", err)
	}

	rec.Module = cog.Module(module)
	if version != nil {
		rec.Version = *version
	}

	return &rec, nil
}
