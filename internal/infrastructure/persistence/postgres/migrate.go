package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// Migrations run through the session manager, one transaction per
// version: either the DDL and its bookkeeping row land together or
// neither does.
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations.
type Migrator struct {
	sessions   *SessionManager
	logger     *slog.Logger
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migration set.
func NewMigrator(sessions *SessionManager, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		sessions:   sessions,
		logger:     logger.With(slog.String("component", "migrator")),
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// NewMigratorWithMigrations creates a migrator with a custom migration set.
func NewMigratorWithMigrations(sessions *SessionManager, logger *slog.Logger, migrations []Migration) *Migrator {
	m := NewMigrator(sessions, logger)
	m.migrations = migrations
	return m
}

// EnsureMigrationTable creates the bookkeeping table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	err := m.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		_, err := q.Exec(ctx, query)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: create bookkeeping table: %v", ErrMigrationFailed, err)
	}
	return nil
}

// GetAppliedMigrations returns applied versions with their timestamps.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	applied := make(map[int]time.Time)
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	err := m.sessions.RunReadOnly(ctx, func(ctx context.Context, q Querier) error {
		rows, err := q.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var version int
			var appliedAt time.Time
			if err := rows.Scan(&version, &appliedAt); err != nil {
				return err
			}
			applied[version] = appliedAt
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read applied versions: %v", ErrMigrationFailed, err)
	}

	return applied, nil
}

// Migrate applies all pending migrations in version order.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}

		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for version %d", ErrMigrationFailed, mig.Version)
		}

		insertQuery := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)

		err := m.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
			if _, err := q.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("execute migration %d: %w", mig.Version, err)
			}
			_, err := q.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}

		m.logger.Info("migration applied",
			slog.Int("version", mig.Version),
			slog.String("name", mig.Name))
	}

	return nil
}

// Rollback reverts the most recently applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}
	if lastVersion == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for version %d", ErrMigrationFailed, lastVersion)
	}

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName)

	err = m.sessions.Run(ctx, func(ctx context.Context, q Querier) error {
		if _, err := q.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("rollback migration %d: %w", lastVersion, err)
		}
		_, err := q.Exec(ctx, deleteQuery, lastVersion)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: rollback version %d: %v", ErrMigrationFailed, lastVersion, err)
	}

	m.logger.Info("migration rolled back", slog.Int("version", lastVersion))
	return nil
}

// Status returns every known migration annotated with applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)

	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}

	return result, nil
}
