package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/usage"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND USAGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UsageRepository implements usage.Repository for PostgreSQL.
type UsageRepository struct {
	q Querier
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(q Querier) *UsageRepository {
	return &UsageRepository{q: q}
}

// WithQuerier returns a copy bound to q, typically a transaction.
func (r *UsageRepository) WithQuerier(q Querier) *UsageRepository {
	return &UsageRepository{q: q}
}

// Record appends a usage record and fills in the generated ID.
func (r *UsageRepository) Record(ctx context.Context, rec *usage.Record) error {
	query := `
		INSERT INTO command_usage (user_id, command_name, guild_id, error_message, executed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING usage_id
	`

	var id int32
	err := r.q.QueryRow(ctx, query,
		rec.UserID,
		rec.CommandName,
		rec.GuildID,
		rec.ErrorMessage,
		rec.ExecutedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to record command usage: %w", err)
	}

	rec.ID = usage.ID(id)
	return nil
}

// GetByUser returns a user's most recent records.
func (r *UsageRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*usage.Record, error) {
	query := `
		SELECT usage_id, user_id, command_name, guild_id, error_message, executed_at
		FROM command_usage
		WHERE user_id = $1
		ORDER BY executed_at DESC, usage_id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query command usage: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// GetRecent returns the most recent records across all users.
func (r *UsageRepository) GetRecent(ctx context.Context, limit int) ([]*usage.Record, error) {
	query := `
		SELECT usage_id, user_id, command_name, guild_id, error_message, executed_at
		FROM command_usage
		ORDER BY executed_at DESC, usage_id DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent command usage: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// GetFailures returns the most recent failed invocations.
func (r *UsageRepository) GetFailures(ctx context.Context, limit int) ([]*usage.Record, error) {
	query := `
		SELECT usage_id, user_id, command_name, guild_id, error_message, executed_at
		FROM command_usage
		WHERE error_message IS NOT NULL
		ORDER BY executed_at DESC, usage_id DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query command failures: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// TopCommands returns the most used commands since the given moment.
func (r *UsageRepository) TopCommands(ctx context.Context, since time.Time, limit int) ([]usage.CommandCount, error) {
	query := `
		SELECT command_name,
			   COUNT(*) AS total,
			   COUNT(error_message) AS failures
		FROM command_usage
		WHERE executed_at >= $1
		GROUP BY command_name
		ORDER BY total DESC, command_name
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top commands: %w", err)
	}
	defer rows.Close()

	var counts []usage.CommandCount
	for rows.Next() {
		var c usage.CommandCount
		if err := rows.Scan(&c.CommandName, &c.Total, &c.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan command count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return counts, nil
}

// CountSince returns the number of invocations since the given moment.
func (r *UsageRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM command_usage WHERE executed_at >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count command usage: %w", err)
	}
	return count, nil
}

// PruneOlderThan deletes records older than the cutoff.
func (r *UsageRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM command_usage WHERE executed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune command usage: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanRecords scans multiple usage records.
func (r *UsageRepository) scanRecords(rows pgx.Rows) ([]*usage.Record, error) {
	var records []*usage.Record

	for rows.Next() {
		var rec usage.Record
		var id int32

		err := rows.Scan(
			&id,
			&rec.UserID,
			&rec.CommandName,
			&rec.GuildID,
			&rec.ErrorMessage,
			&rec.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}

		rec.ID = usage.ID(id)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}
