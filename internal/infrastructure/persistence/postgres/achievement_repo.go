package postgres

import (
	"context"
	"fmt"

	"github.com/questline-hub/questline-bot/internal/domain/achievement"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository for PostgreSQL.
type AchievementRepository struct {
	q Querier
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(q Querier) *AchievementRepository {
	return &AchievementRepository{q: q}
}

// WithQuerier returns a copy bound to q, typically a transaction.
func (r *AchievementRepository) WithQuerier(q Querier) *AchievementRepository {
	return &AchievementRepository{q: q}
}

// Create creates an achievement and fills in the generated ID.
func (r *AchievementRepository) Create(ctx context.Context, a *achievement.Achievement) error {
	query := `
		INSERT INTO achievements (name, description, rarity, coin_reward, exp_reward,
			icon_url, category, is_active, is_hidden, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING achievement_id
	`

	var id int32
	err := r.q.QueryRow(ctx, query,
		a.Name,
		a.Description,
		string(a.Rarity),
		a.CoinReward,
		a.ExpReward,
		nullIfEmpty(a.IconURL),
		nullIfEmpty(a.Category),
		a.IsActive,
		a.IsHidden,
		a.CreatedAt,
	).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			return achievement.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create achievement: %w", err)
	}

	a.ID = achievement.ID(id)
	return nil
}

// GetByID returns an achievement by ID.
func (r *AchievementRepository) GetByID(ctx context.Context, id achievement.ID) (*achievement.Achievement, error) {
	query := `
		SELECT achievement_id, name, description, rarity, coin_reward, exp_reward,
			   icon_url, category, is_active, is_hidden, created_at
		FROM achievements
		WHERE achievement_id = $1
	`

	row := r.q.QueryRow(ctx, query, int32(id))
	return r.scanAchievement(row)
}

// GetByName returns an achievement by name, case-insensitively.
func (r *AchievementRepository) GetByName(ctx context.Context, name string) (*achievement.Achievement, error) {
	query := `
		SELECT achievement_id, name, description, rarity, coin_reward, exp_reward,
			   icon_url, category, is_active, is_hidden, created_at
		FROM achievements
		WHERE LOWER(name) = LOWER($1)
	`

	row := r.q.QueryRow(ctx, query, name)
	return r.scanAchievement(row)
}

// Update saves all achievement fields.
func (r *AchievementRepository) Update(ctx context.Context, a *achievement.Achievement) error {
	query := `
		UPDATE achievements
		SET name = $2, description = $3, rarity = $4, coin_reward = $5, exp_reward = $6,
			icon_url = $7, category = $8, is_active = $9, is_hidden = $10
		WHERE achievement_id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		int32(a.ID),
		a.Name,
		a.Description,
		string(a.Rarity),
		a.CoinReward,
		a.ExpReward,
		nullIfEmpty(a.IconURL),
		nullIfEmpty(a.Category),
		a.IsActive,
		a.IsHidden,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return achievement.ErrAlreadyExists
		}
		return fmt.Errorf("failed to update achievement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return achievement.ErrNotFound
	}

	return nil
}

// GetAll returns the catalog, optionally including hidden achievements.
func (r *AchievementRepository) GetAll(ctx context.Context, includeHidden bool) ([]*achievement.Achievement, error) {
	query := `
		SELECT achievement_id, name, description, rarity, coin_reward, exp_reward,
			   icon_url, category, is_active, is_hidden, created_at
		FROM achievements
	`
	if !includeHidden {
		query += ` WHERE NOT is_hidden`
	}
	query += ` ORDER BY achievement_id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	return r.scanAchievements(rows)
}

// GetByCategory returns achievements in the given category.
func (r *AchievementRepository) GetByCategory(ctx context.Context, category string, includeHidden bool) ([]*achievement.Achievement, error) {
	query := `
		SELECT achievement_id, name, description, rarity, coin_reward, exp_reward,
			   icon_url, category, is_active, is_hidden, created_at
		FROM achievements
		WHERE category = $1
	`
	if !includeHidden {
		query += ` AND NOT is_hidden`
	}
	query += ` ORDER BY achievement_id`

	rows, err := r.q.Query(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements by category: %w", err)
	}
	defer rows.Close()

	return r.scanAchievements(rows)
}

// Count returns the total number of achievements.
func (r *AchievementRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM achievements`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count achievements: %w", err)
	}
	return count, nil
}

// scanAchievement scans a single achievement.
func (r *AchievementRepository) scanAchievement(row pgx.Row) (*achievement.Achievement, error) {
	var a achievement.Achievement
	var id int32
	var rarity string
	var iconURL, category *string

	err := row.Scan(
		&id,
		&a.Name,
		&a.Description,
		&rarity,
		&a.CoinReward,
		&a.ExpReward,
		&iconURL,
		&category,
		&a.IsActive,
		&a.IsHidden,
		&a.CreatedAt,
	)

	if IsNoRows(err) {
		return nil, achievement.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan achievement: %w", err)
	}

	a.ID = achievement.ID(id)
	a.Rarity = achievement.Rarity(rarity)
	if iconURL != nil {
		a.IconURL = *iconURL
	}
	if category != nil {
		a.Category = *category
	}

	return &a, nil
}

// scanAchievements scans multiple achievements.
func (r *AchievementRepository) scanAchievements(rows pgx.Rows) ([]*achievement.Achievement, error) {
	var achievements []*achievement.Achievement

	for rows.Next() {
		a, err := r.scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		achievements = append(achievements, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return achievements, nil
}

// nullIfEmpty converts an empty string to NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UnlockRepository implements achievement.UnlockRepository for PostgreSQL.
type UnlockRepository struct {
	q Querier
}

// NewUnlockRepository creates a new UnlockRepository.
func NewUnlockRepository(q Querier) *UnlockRepository {
	return &UnlockRepository{q: q}
}

// WithQuerier returns a copy bound to q, typically a transaction.
func (r *UnlockRepository) WithQuerier(q Querier) *UnlockRepository {
	return &UnlockRepository{q: q}
}

// Save stores an unlock.
func (r *UnlockRepository) Save(ctx context.Context, u *achievement.Unlock) error {
	query := `
		INSERT INTO user_achievements (user_id, achievement_id, progress, unlocked_at, unlock_data)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.Exec(ctx, query,
		u.UserID,
		int32(u.AchievementID),
		int(u.Progress),
		u.UnlockedAt,
		metadataParam(u.UnlockData),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return achievement.ErrAlreadyUnlocked
		}
		if IsForeignKeyViolation(err) {
			return achievement.ErrNotFound
		}
		return fmt.Errorf("failed to save unlock: %w", err)
	}

	return nil
}

// Get returns a user's unlock of an achievement.
func (r *UnlockRepository) Get(ctx context.Context, userID int64, achievementID achievement.ID) (*achievement.Unlock, error) {
	query := `
		SELECT user_id, achievement_id, progress, unlocked_at, unlock_data
		FROM user_achievements
		WHERE user_id = $1 AND achievement_id = $2
	`

	row := r.q.QueryRow(ctx, query, userID, int32(achievementID))
	return r.scanUnlock(row)
}

// GetByUser returns all of a user's unlocks ordered by unlock time.
func (r *UnlockRepository) GetByUser(ctx context.Context, userID int64) ([]*achievement.Unlock, error) {
	query := `
		SELECT user_id, achievement_id, progress, unlocked_at, unlock_data
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY unlocked_at
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []*achievement.Unlock
	for rows.Next() {
		u, err := r.scanUnlock(rows)
		if err != nil {
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return unlocks, nil
}

// Has checks whether the achievement is unlocked.
func (r *UnlockRepository) Has(ctx context.Context, userID int64, achievementID achievement.ID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_achievements WHERE user_id = $1 AND achievement_id = $2)`,
		userID, int32(achievementID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}
	return exists, nil
}

// UpdateProgress updates the progress of a partial unlock.
func (r *UnlockRepository) UpdateProgress(ctx context.Context, userID int64, achievementID achievement.ID, progress achievement.Progress) error {
	query := `
		UPDATE user_achievements
		SET progress = $3
		WHERE user_id = $1 AND achievement_id = $2
	`

	tag, err := r.q.Exec(ctx, query, userID, int32(achievementID), int(progress))
	if err != nil {
		return fmt.Errorf("failed to update unlock progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return achievement.ErrNotFound
	}

	return nil
}

// CountByUser returns the number of unlocks a user has.
func (r *UnlockRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM user_achievements WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count user unlocks: %w", err)
	}
	return count, nil
}

// CountByAchievement returns how many users unlocked an achievement.
func (r *UnlockRepository) CountByAchievement(ctx context.Context, achievementID achievement.ID) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM user_achievements WHERE achievement_id = $1`, int32(achievementID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count achievement unlocks: %w", err)
	}
	return count, nil
}

// scanUnlock scans a single unlock.
func (r *UnlockRepository) scanUnlock(row pgx.Row) (*achievement.Unlock, error) {
	var u achievement.Unlock
	var achievementID int32
	var progress int
	var data []byte

	err := row.Scan(&u.UserID, &achievementID, &progress, &u.UnlockedAt, &data)

	if IsNoRows(err) {
		return nil, achievement.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan unlock: %w", err)
	}

	u.AchievementID = achievement.ID(achievementID)
	u.Progress = achievement.Progress(progress)
	u.UnlockData = data

	return &u, nil
}
