package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/questline-hub/questline-bot/internal/domain/user"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository for PostgreSQL.
//
// It is bound to a Querier, so the same repository works against the
// pool directly or inside an open transaction via WithQuerier.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(q Querier) *UserRepository {
	return &UserRepository{q: q}
}

// WithQuerier returns a copy bound to q, typically a transaction.
func (r *UserRepository) WithQuerier(q Querier) *UserRepository {
	return &UserRepository{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (user_id, nickname, timezone, birthday, coins, exp, is_banned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var nickname *string
	if u.Nickname != nil {
		n := u.Nickname.String()
		nickname = &n
	}

	_, err := r.q.Exec(ctx, query,
		u.ID.Int64(),
		nickname,
		u.Timezone,
		u.Birthday,
		int(u.Coins),
		int(u.Exp),
		u.IsBanned,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return user.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID returns a user by Discord ID.
func (r *UserRepository) GetByID(ctx context.Context, id user.ID) (*user.User, error) {
	query := `
		SELECT user_id, nickname, timezone, birthday, coins, exp, is_banned, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`

	row := r.q.QueryRow(ctx, query, id.Int64())
	return r.scanUser(row)
}

// Upsert creates the user or patches the existing row in one round trip.
// NULL parameters leave the stored column untouched on conflict.
func (r *UserRepository) Upsert(ctx context.Context, id user.ID, patch user.Patch) (*user.User, error) {
	// Validation and normalization happen in the domain before any SQL.
	candidate, err := user.New(id)
	if err != nil {
		return nil, err
	}
	if err := candidate.Apply(patch, time.Now().UTC()); err != nil {
		return nil, err
	}

	var nickname, timezone *string
	var birthday *time.Time
	if patch.Nickname != nil && candidate.Nickname != nil {
		n := candidate.Nickname.String()
		nickname = &n
	}
	if patch.Timezone != nil {
		timezone = candidate.Timezone
	}
	if patch.Birthday != nil {
		birthday = candidate.Birthday
	}

	query := `
		INSERT INTO users (user_id, nickname, timezone, birthday, coins, exp, is_banned)
		VALUES ($1, $2, $3, $4, COALESCE($5::INTEGER, 0), COALESCE($6::INTEGER, 0), COALESCE($7::BOOLEAN, FALSE))
		ON CONFLICT (user_id) DO UPDATE SET
			nickname   = COALESCE($2, users.nickname),
			timezone   = COALESCE($3, users.timezone),
			birthday   = COALESCE($4, users.birthday),
			coins      = COALESCE($5::INTEGER, users.coins),
			exp        = COALESCE($6::INTEGER, users.exp),
			is_banned  = COALESCE($7::BOOLEAN, users.is_banned),
			updated_at = NOW()
		RETURNING user_id, nickname, timezone, birthday, coins, exp, is_banned, created_at, updated_at
	`

	row := r.q.QueryRow(ctx, query,
		id.Int64(),
		nickname,
		timezone,
		birthday,
		patch.Coins,
		patch.Exp,
		patch.IsBanned,
	)
	return r.scanUser(row)
}

// Update saves all user fields.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users
		SET nickname = $2, timezone = $3, birthday = $4, coins = $5, exp = $6,
			is_banned = $7, updated_at = $8
		WHERE user_id = $1
	`

	var nickname *string
	if u.Nickname != nil {
		n := u.Nickname.String()
		nickname = &n
	}

	tag, err := r.q.Exec(ctx, query,
		u.ID.Int64(),
		nickname,
		u.Timezone,
		u.Birthday,
		int(u.Coins),
		int(u.Exp),
		u.IsBanned,
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}

	return nil
}

// Delete removes a user and all dependent rows via cascade.
func (r *UserRepository) Delete(ctx context.Context, id user.ID) error {
	query := `DELETE FROM users WHERE user_id = $1`

	tag, err := r.q.Exec(ctx, query, id.Int64())
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetAll returns users with pagination.
func (r *UserRepository) GetAll(ctx context.Context, opts user.ListOptions) ([]*user.User, error) {
	query := r.buildListQuery(opts, "")

	rows, err := r.q.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	return r.scanUsers(rows)
}

// GetByIDs returns users matching the given IDs.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []user.ID) ([]*user.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = id.Int64()
	}

	query := `
		SELECT user_id, nickname, timezone, birthday, coins, exp, is_banned, created_at, updated_at
		FROM users
		WHERE user_id = ANY($1)
	`

	rows, err := r.q.Query(ctx, query, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by ids: %w", err)
	}
	defer rows.Close()

	return r.scanUsers(rows)
}

// Count returns the total number of users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CountBanned returns the number of banned users.
func (r *UserRepository) CountBanned(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_banned`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count banned users: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Search & Filter
// ─────────────────────────────────────────────────────────────────────────────

// FindByBirthday returns users whose birthday falls on the given day.
func (r *UserRepository) FindByBirthday(ctx context.Context, month time.Month, day int) ([]*user.User, error) {
	query := `
		SELECT user_id, nickname, timezone, birthday, coins, exp, is_banned, created_at, updated_at
		FROM users
		WHERE birthday IS NOT NULL
		  AND EXTRACT(MONTH FROM birthday) = $1
		  AND EXTRACT(DAY FROM birthday) = $2
		  AND NOT is_banned
	`

	rows, err := r.q.Query(ctx, query, int(month), day)
	if err != nil {
		return nil, fmt.Errorf("failed to query users by birthday: %w", err)
	}
	defer rows.Close()

	return r.scanUsers(rows)
}

// TopByCoins returns the richest users.
func (r *UserRepository) TopByCoins(ctx context.Context, limit int) ([]*user.User, error) {
	return r.top(ctx, "coins", limit)
}

// TopByExp returns the most experienced users.
func (r *UserRepository) TopByExp(ctx context.Context, limit int) ([]*user.User, error) {
	return r.top(ctx, "exp", limit)
}

func (r *UserRepository) top(ctx context.Context, field string, limit int) ([]*user.User, error) {
	query := fmt.Sprintf(`
		SELECT user_id, nickname, timezone, birthday, coins, exp, is_banned, created_at, updated_at
		FROM users
		WHERE NOT is_banned
		ORDER BY %s DESC, user_id ASC
		LIMIT $1
	`, field)

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top users: %w", err)
	}
	defer rows.Close()

	return r.scanUsers(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Existence Checks
// ─────────────────────────────────────────────────────────────────────────────

// Exists checks whether a user exists.
func (r *UserRepository) Exists(ctx context.Context, id user.ID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`, id.Int64()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanUser scans a single user from a row.
func (r *UserRepository) scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	var id int64
	var nickname *string
	var coins, exp int

	err := row.Scan(
		&id,
		&nickname,
		&u.Timezone,
		&u.Birthday,
		&coins,
		&exp,
		&u.IsBanned,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.ID = user.ID(id)
	if nickname != nil {
		n := user.Nickname(*nickname)
		u.Nickname = &n
	}
	u.Coins = user.Coins(coins)
	u.Exp = user.Exp(exp)

	return &u, nil
}

// scanUsers scans multiple users from rows.
func (r *UserRepository) scanUsers(rows pgx.Rows) ([]*user.User, error) {
	var users []*user.User

	for rows.Next() {
		var u user.User
		var id int64
		var nickname *string
		var coins, exp int

		err := rows.Scan(
			&id,
			&nickname,
			&u.Timezone,
			&u.Birthday,
			&coins,
			&exp,
			&u.IsBanned,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		u.ID = user.ID(id)
		if nickname != nil {
			n := user.Nickname(*nickname)
			u.Nickname = &n
		}
		u.Coins = user.Coins(coins)
		u.Exp = user.Exp(exp)

		users = append(users, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return users, nil
}

// buildListQuery builds a SELECT query with filters and ordering.
func (r *UserRepository) buildListQuery(opts user.ListOptions, whereClause string) string {
	query := `
		SELECT user_id, nickname, timezone, birthday, coins, exp, is_banned, created_at, updated_at
		FROM users
	`

	conditions := []string{}
	if whereClause != "" {
		conditions = append(conditions, whereClause)
	}
	if !opts.IncludeBanned {
		conditions = append(conditions, "NOT is_banned")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += r.buildOrderBy(opts)
	query += " LIMIT $1 OFFSET $2"

	return query
}

// buildOrderBy builds an ORDER BY clause from a whitelisted field set.
func (r *UserRepository) buildOrderBy(opts user.ListOptions) string {
	orderField := "exp"
	validFields := map[string]string{
		"exp":        "exp",
		"coins":      "coins",
		"nickname":   "nickname",
		"created_at": "created_at",
		"updated_at": "updated_at",
		"user_id":    "user_id",
	}

	if field, ok := validFields[opts.SortBy]; ok {
		orderField = field
	}

	direction := "DESC"
	if !opts.SortDesc {
		direction = "ASC"
	}

	if orderField == "user_id" {
		return fmt.Sprintf(" ORDER BY user_id %s", direction)
	}
	return fmt.Sprintf(" ORDER BY %s %s, user_id ASC", orderField, direction)
}
