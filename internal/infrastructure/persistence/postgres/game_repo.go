package postgres

import (
	"context"
	"fmt"

	"github.com/questline-hub/questline-bot/internal/domain/game"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// GAME REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// GameRepository implements game.Repository for PostgreSQL.
type GameRepository struct {
	q Querier
}

// NewGameRepository creates a new GameRepository.
func NewGameRepository(q Querier) *GameRepository {
	return &GameRepository{q: q}
}

// WithQuerier returns a copy bound to q, typically a transaction.
func (r *GameRepository) WithQuerier(q Querier) *GameRepository {
	return &GameRepository{q: q}
}

// Create creates a game and fills in the generated ID.
func (r *GameRepository) Create(ctx context.Context, g *game.Game) error {
	query := `
		INSERT INTO games (name, description)
		VALUES ($1, $2)
		RETURNING game_id
	`

	var description *string
	if g.Description != "" {
		description = &g.Description
	}

	var id int32
	err := r.q.QueryRow(ctx, query, g.Name.String(), description).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			return game.ErrGameAlreadyExists
		}
		return fmt.Errorf("failed to create game: %w", err)
	}

	g.ID = game.ID(id)
	return nil
}

// GetByID returns a game by ID.
func (r *GameRepository) GetByID(ctx context.Context, id game.ID) (*game.Game, error) {
	query := `SELECT game_id, name, description FROM games WHERE game_id = $1`

	row := r.q.QueryRow(ctx, query, int32(id))
	return r.scanGame(row)
}

// GetByName returns a game by name, case-insensitively.
func (r *GameRepository) GetByName(ctx context.Context, name game.Name) (*game.Game, error) {
	query := `SELECT game_id, name, description FROM games WHERE LOWER(name) = LOWER($1)`

	row := r.q.QueryRow(ctx, query, name.String())
	return r.scanGame(row)
}

// GetAll returns all games ordered by name.
func (r *GameRepository) GetAll(ctx context.Context) ([]*game.Game, error) {
	query := `SELECT game_id, name, description FROM games ORDER BY name`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []*game.Game
	for rows.Next() {
		g, err := r.scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return games, nil
}

// Delete removes a game and cascades to its profiles.
func (r *GameRepository) Delete(ctx context.Context, id game.ID) error {
	query := `DELETE FROM games WHERE game_id = $1`

	tag, err := r.q.Exec(ctx, query, int32(id))
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return game.ErrGameNotFound
	}

	return nil
}

// scanGame scans a single game.
func (r *GameRepository) scanGame(row pgx.Row) (*game.Game, error) {
	var g game.Game
	var id int32
	var name string
	var description *string

	err := row.Scan(&id, &name, &description)

	if IsNoRows(err) {
		return nil, game.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}

	g.ID = game.ID(id)
	g.Name = game.Name(name)
	if description != nil {
		g.Description = *description
	}

	return &g, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements game.ProfileRepository for PostgreSQL.
type ProfileRepository struct {
	q Querier
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(q Querier) *ProfileRepository {
	return &ProfileRepository{q: q}
}

// WithQuerier returns a copy bound to q, typically a transaction.
func (r *ProfileRepository) WithQuerier(q Querier) *ProfileRepository {
	return &ProfileRepository{q: q}
}

// Create creates a profile and fills in the generated ID.
func (r *ProfileRepository) Create(ctx context.Context, p *game.Profile) error {
	query := `
		INSERT INTO profiles (user_id, game_id, profile_name, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING profile_id
	`

	var id int32
	err := r.q.QueryRow(ctx, query,
		p.UserID,
		int32(p.GameID),
		p.ProfileName,
		[]byte(p.Data),
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			return game.ErrProfileAlreadyExists
		}
		if IsForeignKeyViolation(err) {
			return game.ErrGameNotFound
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	p.ID = game.ProfileID(id)
	return nil
}

// GetByID returns a profile by ID.
func (r *ProfileRepository) GetByID(ctx context.Context, id game.ProfileID) (*game.Profile, error) {
	query := `
		SELECT profile_id, user_id, game_id, profile_name, data, created_at, updated_at
		FROM profiles
		WHERE profile_id = $1
	`

	row := r.q.QueryRow(ctx, query, int32(id))
	return r.scanProfile(row)
}

// GetByUser returns all profiles of a user.
func (r *ProfileRepository) GetByUser(ctx context.Context, userID int64) ([]*game.Profile, error) {
	query := `
		SELECT profile_id, user_id, game_id, profile_name, data, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
		ORDER BY game_id
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	return r.scanProfiles(rows)
}

// GetByUserAndGame returns the user's profile in a specific game.
func (r *ProfileRepository) GetByUserAndGame(ctx context.Context, userID int64, gameID game.ID) (*game.Profile, error) {
	query := `
		SELECT profile_id, user_id, game_id, profile_name, data, created_at, updated_at
		FROM profiles
		WHERE user_id = $1 AND game_id = $2
	`

	row := r.q.QueryRow(ctx, query, userID, int32(gameID))
	return r.scanProfile(row)
}

// Update saves a modified profile.
func (r *ProfileRepository) Update(ctx context.Context, p *game.Profile) error {
	query := `
		UPDATE profiles
		SET profile_name = $2, data = $3, updated_at = $4
		WHERE profile_id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		int32(p.ID),
		p.ProfileName,
		[]byte(p.Data),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return game.ErrProfileNotFound
	}

	return nil
}

// Delete removes a profile.
func (r *ProfileRepository) Delete(ctx context.Context, id game.ProfileID) error {
	query := `DELETE FROM profiles WHERE profile_id = $1`

	tag, err := r.q.Exec(ctx, query, int32(id))
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return game.ErrProfileNotFound
	}

	return nil
}

// CountByGame returns the number of profiles in a game.
func (r *ProfileRepository) CountByGame(ctx context.Context, gameID game.ID) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM profiles WHERE game_id = $1`, int32(gameID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}

// scanProfile scans a single profile.
func (r *ProfileRepository) scanProfile(row pgx.Row) (*game.Profile, error) {
	var p game.Profile
	var id, gameID int32
	var profileName *string
	var data []byte

	err := row.Scan(
		&id,
		&p.UserID,
		&gameID,
		&profileName,
		&data,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, game.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.ID = game.ProfileID(id)
	p.GameID = game.ID(gameID)
	if profileName != nil {
		p.ProfileName = *profileName
	}
	p.Data = data

	return &p, nil
}

// scanProfiles scans multiple profiles.
func (r *ProfileRepository) scanProfiles(rows pgx.Rows) ([]*game.Profile, error) {
	var profiles []*game.Profile

	for rows.Next() {
		p, err := r.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return profiles, nil
}
