package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var ErrInvalidCamera = errors.New("invalid camera data")

// CameraInput carries editable camera fields. Empty fields are left
// unchanged on update.
type CameraInput struct {
	Name      string `validate:"omitempty,max=120"`
	Location  string `validate:"omitempty,max=240"`
	StreamURL string `validate:"omitempty,url"`
	Username  string `validate:"omitempty,max=120"`
	Password  *string
}

// trimmed returns in with surrounding whitespace removed
func (in CameraInput) trimmed() CameraInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	in.StreamURL = strings.TrimSpace(in.StreamURL)
	return in
}

// CameraService handles camera catalogue business logic
type CameraService struct {
	repo     domain.CameraRepository
	validate *validator.Validate
}

// NewCameraService creates a new camera service
func NewCameraService(repo domain.CameraRepository) *CameraService {
	return &CameraService{
		repo:     repo,
		validate: validator.New(),
	}
}

// CreateCamera registers a new camera
func (s *CameraService) CreateCamera(ctx context.Context, in CameraInput) (*domain.Camera, error) {
	in = in.trimmed()
	if err := s.validateInput(in, true); err != nil {
		return nil, err
	}

	camera := domain.NewCamera(in.Name, in.Location, in.StreamURL)
	camera.Username = in.Username
	if in.Password != nil {
		camera.Password = *in.Password
	}

	if err := s.repo.Create(ctx, camera); err != nil {
		return nil, err
	}
	return camera, nil
}

// UpdateCamera applies the non-empty fields of in
func (s *CameraService) UpdateCamera(ctx context.Context, id uuid.UUID, in CameraInput) (*domain.Camera, error) {
	in = in.trimmed()
	if err := s.validateInput(in, false); err != nil {
		return nil, err
	}
	camera, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		camera.Name = in.Name
	}
	if in.Location != "" {
		camera.Location = in.Location
	}
	if in.StreamURL != "" {
		camera.StreamURL = in.StreamURL
	}
	if in.Username != "" {
		camera.Username = in.Username
	}
	// nil keeps the stored password, empty string clears it
	if in.Password != nil {
		camera.Password = *in.Password
	}
	camera.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, camera); err != nil {
		return nil, err
	}
	return camera, nil
}

// DeleteCamera removes a camera. Grants go with it.
func (s *CameraService) DeleteCamera(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// UpdateStatus records the operational status reported by the camera subsystem
func (s *CameraService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CameraStatus, recording bool) error {
	switch status {
	case domain.CameraStatusOnline, domain.CameraStatusOffline, domain.CameraStatusError:
	default:
		return ErrInvalidCamera
	}
	return s.repo.UpdateStatus(ctx, id, status, recording)
}

func (s *CameraService) validateInput(in CameraInput, create bool) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCamera, err)
	}
	if create {
		if err := s.validate.Var(in.Name, "required"); err != nil {
			return fmt.Errorf("%w: name is required", ErrInvalidCamera)
		}
		if err := s.validate.Var(in.StreamURL, "required"); err != nil {
			return fmt.Errorf("%w: stream_url is required", ErrInvalidCamera)
		}
	}
	return nil
}
