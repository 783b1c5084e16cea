package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleRepository implements domain.RoleRepository over user_roles, which
// holds at most one row per user.
type RoleRepository struct {
	db *pgxpool.Pool
}

// NewRoleRepository creates a new PostgreSQL role repository
func NewRoleRepository(db *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{db: db}
}

// Get returns the raw role record. The role is returned as stored so callers
// can decide what to do with unknown values.
func (r *RoleRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.RoleRecord, error) {
	query := `
		SELECT user_id, role, updated_at, COALESCE(touched_at, updated_at)
		FROM user_roles WHERE user_id = $1
	`

	var rec domain.RoleRecord
	err := r.db.QueryRow(ctx, query, userID).Scan(&rec.UserID, &rec.Role, &rec.UpdatedAt, &rec.TouchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoleRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Exists reports whether userID has a role record
func (r *RoleRepository) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1)`, userID).Scan(&exists)
	return exists, err
}

// Count counts the records for userID holding role
func (r *RoleRepository) Count(ctx context.Context, userID uuid.UUID, role domain.Role) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles WHERE user_id = $1 AND role = $2`, userID, string(role)).Scan(&n)
	return n, err
}

// Update rewrites an existing record. A missing record is reported as
// domain.ErrRoleRecordNotFound.
func (r *RoleRepository) Update(ctx context.Context, userID uuid.UUID, role domain.Role, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE user_roles SET role = $1, updated_at = $2 WHERE user_id = $3`, string(role), at, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoleRecordNotFound
	}
	return nil
}

// Insert creates the record for userID
func (r *RoleRepository) Insert(ctx context.Context, userID uuid.UUID, role domain.Role, at time.Time) error {
	_, err := r.db.Exec(ctx, `INSERT INTO user_roles (user_id, role, updated_at) VALUES ($1, $2, $3)`, userID, string(role), at)
	return err
}

// Upsert inserts the record or replaces the role on conflict
func (r *RoleRepository) Upsert(ctx context.Context, userID uuid.UUID, role domain.Role, at time.Time) error {
	query := `
		INSERT INTO user_roles (user_id, role, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query, userID, string(role), at)
	return err
}

// Touch bumps touched_at without changing the role
func (r *RoleRepository) Touch(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE user_roles SET touched_at = $1 WHERE user_id = $2`, at, userID)
	return err
}

// Delete removes the record for userID
func (r *RoleRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
	return err
}
