package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings keys
const (
	SettingsKeyStorage   = "storage"
	SettingsKeyRecording = "recording"
)

// SettingsRepository defines the interface for settings persistence
type SettingsRepository interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Put(ctx context.Context, key string, value json.RawMessage) error
}

// StorageSettings configures where recordings are written. The provider is
// an external system; only its configuration lives here.
type StorageSettings struct {
	Provider        string `json:"provider" validate:"required,oneof=local s3 nas dropbox"`
	Path            string `json:"path" validate:"required_if=Provider local,required_if=Provider nas"`
	Bucket          string `json:"bucket" validate:"required_if=Provider s3"`
	Region          string `json:"region,omitempty"`
	RetentionDays   int    `json:"retention_days" validate:"min=1,max=365"`
	MaxUsagePercent int    `json:"max_usage_percent" validate:"min=10,max=100"`
}

// RecordingSettings configures how cameras record
type RecordingSettings struct {
	SegmentMinutes int  `json:"segment_minutes" validate:"min=1,max=60"`
	MotionOnly     bool `json:"motion_only"`
}

// Settings represents console settings
type Settings struct {
	Storage   StorageSettings   `json:"storage"`
	Recording RecordingSettings `json:"recording"`
}

// DefaultSettings returns the settings used when nothing is stored
func DefaultSettings() Settings {
	return Settings{
		Storage: StorageSettings{
			Provider:        "local",
			Path:            "/var/lib/camwatch/recordings",
			RetentionDays:   30,
			MaxUsagePercent: 90,
		},
		Recording: RecordingSettings{
			SegmentMinutes: 10,
		},
	}
}

// SettingsService handles settings business logic
type SettingsService struct {
	repo     SettingsRepository
	validate *validator.Validate
}

// NewSettingsService creates a new settings service
func NewSettingsService(repo SettingsRepository) *SettingsService {
	return &SettingsService{
		repo:     repo,
		validate: validator.New(),
	}
}

// GetSettings retrieves current settings, filling gaps with defaults
func (s *SettingsService) GetSettings(ctx context.Context) (*Settings, error) {
	settings := DefaultSettings()

	if err := s.load(ctx, SettingsKeyStorage, &settings.Storage); err != nil {
		return nil, err
	}
	if err := s.load(ctx, SettingsKeyRecording, &settings.Recording); err != nil {
		return nil, err
	}

	return &settings, nil
}

// UpdateStorage validates and stores storage settings
func (s *SettingsService) UpdateStorage(ctx context.Context, in StorageSettings) (*Settings, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.save(ctx, SettingsKeyStorage, in); err != nil {
		return nil, err
	}
	return s.GetSettings(ctx)
}

// UpdateRecording validates and stores recording settings
func (s *SettingsService) UpdateRecording(ctx context.Context, in RecordingSettings) (*Settings, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.save(ctx, SettingsKeyRecording, in); err != nil {
		return nil, err
	}
	return s.GetSettings(ctx)
}

func (s *SettingsService) load(ctx context.Context, key string, into interface{}) error {
	raw, err := s.repo.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load %s settings: %w", key, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("failed to decode %s settings: %w", key, err)
	}
	return nil
}

func (s *SettingsService) save(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.repo.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to save %s settings: %w", key, err)
	}
	return nil
}
