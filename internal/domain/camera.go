package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CameraStatus represents the connection state of a camera
type CameraStatus string

const (
	CameraStatusOnline  CameraStatus = "online"
	CameraStatusOffline CameraStatus = "offline"
	CameraStatusError   CameraStatus = "error"
)

// Camera represents a monitored camera
type Camera struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Location  string       `json:"location"`
	StreamURL string       `json:"stream_url"`
	Username  string       `json:"username,omitempty"`
	Password  string       `json:"-"`
	Status    CameraStatus `json:"status"`
	Recording bool         `json:"recording"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewCamera creates a new camera with default values
func NewCamera(name, location, streamURL string) *Camera {
	now := time.Now()
	return &Camera{
		ID:        uuid.New(),
		Name:      name,
		Location:  location,
		StreamURL: streamURL,
		Status:    CameraStatusOffline,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var ErrCameraNotFound = errors.New("camera not found")

// CameraRepository defines the interface for camera persistence
type CameraRepository interface {
	Create(ctx context.Context, camera *Camera) error
	GetByID(ctx context.Context, id uuid.UUID) (*Camera, error)
	GetAll(ctx context.Context) ([]*Camera, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Camera, error)
	Update(ctx context.Context, camera *Camera) error
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status CameraStatus, recording bool) error
}

// CameraGrantRepository defines persistence for (user, camera) access grants
type CameraGrantRepository interface {
	ListCameraIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	Insert(ctx context.Context, userID uuid.UUID, cameraIDs []uuid.UUID) error
	Delete(ctx context.Context, userID uuid.UUID, cameraIDs []uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}
