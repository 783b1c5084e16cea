package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const cameraColumns = `id, name, location, stream_url, username, password, status, recording, created_at, updated_at`

// CameraRepository implements domain.CameraRepository with PostgreSQL
type CameraRepository struct {
	db *pgxpool.Pool
}

// NewCameraRepository creates a new PostgreSQL camera repository
func NewCameraRepository(db *pgxpool.Pool) *CameraRepository {
	return &CameraRepository{db: db}
}

// Create inserts a new camera
func (r *CameraRepository) Create(ctx context.Context, camera *domain.Camera) error {
	query := `
		INSERT INTO cameras (id, name, location, stream_url, username, password, status, recording, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		camera.ID,
		camera.Name,
		camera.Location,
		camera.StreamURL,
		camera.Username,
		camera.Password,
		camera.Status,
		camera.Recording,
		camera.CreatedAt,
		camera.UpdatedAt,
	)

	return err
}

// GetByID retrieves a camera by ID
func (r *CameraRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Camera, error) {
	query := `SELECT ` + cameraColumns + ` FROM cameras WHERE id = $1`

	camera, err := scanCamera(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCameraNotFound
		}
		return nil, fmt.Errorf("load camera: %w", err)
	}
	return camera, nil
}

// GetAll retrieves all cameras
func (r *CameraRepository) GetAll(ctx context.Context) ([]*domain.Camera, error) {
	query := `SELECT ` + cameraColumns + ` FROM cameras ORDER BY name`
	return r.list(ctx, query)
}

// GetByIDs retrieves the cameras among ids that exist. Unknown ids are skipped.
func (r *CameraRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Camera, error) {
	if len(ids) == 0 {
		return []*domain.Camera{}, nil
	}
	query := `SELECT ` + cameraColumns + ` FROM cameras WHERE id = ANY($1) ORDER BY name`
	return r.list(ctx, query, ids)
}

// Update updates an existing camera
func (r *CameraRepository) Update(ctx context.Context, camera *domain.Camera) error {
	query := `
		UPDATE cameras
		SET name = $1, location = $2, stream_url = $3, username = $4, password = $5, updated_at = $6
		WHERE id = $7
	`

	tag, err := r.db.Exec(ctx, query,
		camera.Name,
		camera.Location,
		camera.StreamURL,
		camera.Username,
		camera.Password,
		time.Now(),
		camera.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCameraNotFound
	}
	return nil
}

// Delete removes a camera; its grants cascade
func (r *CameraRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cameras WHERE id = $1`, id)
	return err
}

// UpdateStatus updates only the operational status of a camera
func (r *CameraRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CameraStatus, recording bool) error {
	query := `UPDATE cameras SET status = $1, recording = $2, updated_at = $3 WHERE id = $4`

	tag, err := r.db.Exec(ctx, query, status, recording, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCameraNotFound
	}
	return nil
}

func (r *CameraRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Camera, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cameras := []*domain.Camera{}
	for rows.Next() {
		camera, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, camera)
	}

	return cameras, rows.Err()
}

func scanCamera(row pgx.Row) (*domain.Camera, error) {
	var camera domain.Camera
	err := row.Scan(
		&camera.ID,
		&camera.Name,
		&camera.Location,
		&camera.StreamURL,
		&camera.Username,
		&camera.Password,
		&camera.Status,
		&camera.Recording,
		&camera.CreatedAt,
		&camera.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &camera, nil
}
