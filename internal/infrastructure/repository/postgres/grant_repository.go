package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GrantRepository implements domain.CameraGrantRepository over camera_access
type GrantRepository struct {
	db *pgxpool.Pool
}

// NewGrantRepository creates a new PostgreSQL grant repository
func NewGrantRepository(db *pgxpool.Pool) *GrantRepository {
	return &GrantRepository{db: db}
}

// ListCameraIDs returns the ids of the cameras granted to userID
func (r *GrantRepository) ListCameraIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT camera_id FROM camera_access WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Insert grants every camera in cameraIDs as one batch. Existing grants are left alone.
func (r *GrantRepository) Insert(ctx context.Context, userID uuid.UUID, cameraIDs []uuid.UUID) error {
	if len(cameraIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO camera_access (user_id, camera_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT (user_id, camera_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, userID, cameraIDs)
	return err
}

// Delete revokes every camera in cameraIDs as one batch
func (r *GrantRepository) Delete(ctx context.Context, userID uuid.UUID, cameraIDs []uuid.UUID) error {
	if len(cameraIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM camera_access WHERE user_id = $1 AND camera_id = ANY($2)`, userID, cameraIDs)
	return err
}

// DeleteAllForUser revokes every grant held by userID
func (r *GrantRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM camera_access WHERE user_id = $1`, userID)
	return err
}
