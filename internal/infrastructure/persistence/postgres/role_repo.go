package postgres

import (
	"context"
	"fmt"

	"github.com/questline-hub/questline-bot/internal/domain/role"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROLE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RoleRepository implements role.Repository for PostgreSQL.
type RoleRepository struct {
	q Querier
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(q Querier) *RoleRepository {
	return &RoleRepository{q: q}
}

// WithQuerier returns a copy bound to q, typically a transaction.
func (r *RoleRepository) WithQuerier(q Querier) *RoleRepository {
	return &RoleRepository{q: q}
}

// Create creates a role and fills in the generated ID.
func (r *RoleRepository) Create(ctx context.Context, ro *role.Role) error {
	query := `
		INSERT INTO bot_roles (name, description, bit_value, active)
		VALUES ($1, $2, $3, $4)
		RETURNING role_id
	`

	var id int32
	err := r.q.QueryRow(ctx, query,
		ro.Name,
		nullIfEmpty(ro.Description),
		int64(ro.BitValue),
		ro.Active,
	).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			return role.ErrRoleAlreadyExists
		}
		return fmt.Errorf("failed to create role: %w", err)
	}

	ro.ID = role.ID(id)
	return nil
}

// GetByID returns a role by ID.
func (r *RoleRepository) GetByID(ctx context.Context, id role.ID) (*role.Role, error) {
	query := `SELECT role_id, name, description, bit_value, active FROM bot_roles WHERE role_id = $1`

	row := r.q.QueryRow(ctx, query, int32(id))
	return r.scanRole(row)
}

// GetByName returns a role by name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*role.Role, error) {
	query := `SELECT role_id, name, description, bit_value, active FROM bot_roles WHERE name = $1`

	row := r.q.QueryRow(ctx, query, name)
	return r.scanRole(row)
}

// GetActive returns active roles ordered by bit value.
func (r *RoleRepository) GetActive(ctx context.Context) ([]*role.Role, error) {
	query := `
		SELECT role_id, name, description, bit_value, active
		FROM bot_roles
		WHERE active
		ORDER BY bit_value
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []*role.Role
	for rows.Next() {
		ro, err := r.scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, ro)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return roles, nil
}

// Update saves all role fields.
func (r *RoleRepository) Update(ctx context.Context, ro *role.Role) error {
	query := `
		UPDATE bot_roles
		SET name = $2, description = $3, bit_value = $4, active = $5
		WHERE role_id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		int32(ro.ID),
		ro.Name,
		nullIfEmpty(ro.Description),
		int64(ro.BitValue),
		ro.Active,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return role.ErrRoleAlreadyExists
		}
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return role.ErrRoleNotFound
	}

	return nil
}

// Delete removes a role.
func (r *RoleRepository) Delete(ctx context.Context, id role.ID) error {
	query := `DELETE FROM bot_roles WHERE role_id = $1`

	tag, err := r.q.Exec(ctx, query, int32(id))
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return role.ErrRoleNotFound
	}

	return nil
}

// scanRole scans a single role.
func (r *RoleRepository) scanRole(row pgx.Row) (*role.Role, error) {
	var ro role.Role
	var id int32
	var description *string
	var bitValue int64

	err := row.Scan(&id, &ro.Name, &description, &bitValue, &ro.Active)

	if IsNoRows(err) {
		return nil, role.ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}

	ro.ID = role.ID(id)
	if description != nil {
		ro.Description = *description
	}
	ro.BitValue = role.BitValue(bitValue)

	return &ro, nil
}
