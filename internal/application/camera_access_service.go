package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/camwatch/backend/internal/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const cameraAccessAuditSource = "camera-access"

// AssignmentResult summarizes a reconciled grant set
type AssignmentResult struct {
	UserID  uuid.UUID   `json:"user_id"`
	Added   []uuid.UUID `json:"added"`
	Removed []uuid.UUID `json:"removed"`
}

// Changed reports whether any grant was written
func (r *AssignmentResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// CameraAccessService decides which cameras a user may see and reconciles grants
type CameraAccessService struct {
	cameras    domain.CameraRepository
	grants     domain.CameraGrantRepository
	users      domain.UserRepository
	roles      *RoleQueries
	audit      domain.AuditSink
	breakGlass domain.BreakGlass
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewCameraAccessService creates the camera access service
func NewCameraAccessService(
	cameras domain.CameraRepository,
	grants domain.CameraGrantRepository,
	users domain.UserRepository,
	roles *RoleQueries,
	audit domain.AuditSink,
	breakGlass domain.BreakGlass,
	m *metrics.Metrics,
) *CameraAccessService {
	return &CameraAccessService{
		cameras:    cameras,
		grants:     grants,
		users:      users,
		roles:      roles,
		audit:      audit,
		breakGlass: breakGlass,
		metrics:    m,
		log:        logger.Component("camera-access"),
	}
}

// GetAccessibleCameras returns every camera for privileged roles and only the
// granted cameras otherwise
func (s *CameraAccessService) GetAccessibleCameras(ctx context.Context, userID uuid.UUID, role domain.Role) ([]*domain.Camera, error) {
	if role.IsPrivileged() {
		cameras, err := s.cameras.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		if cameras == nil {
			cameras = []*domain.Camera{}
		}
		return cameras, nil
	}

	ids, err := s.GetUserAssignedCameras(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*domain.Camera{}, nil
	}

	cameras, err := s.cameras.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if cameras == nil {
		cameras = []*domain.Camera{}
	}
	return cameras, nil
}

// GetUserAssignedCameras returns the raw granted camera ids
func (s *CameraAccessService) GetUserAssignedCameras(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if userID == uuid.Nil {
		return []uuid.UUID{}, nil
	}
	ids, err := s.grants.ListCameraIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

// AssignCamerasToUser makes userID's grants equal to desired. Removals run
// before insertions; there is no multi-row transaction, so a failure part
// way through leaves the earlier batch committed.
func (s *CameraAccessService) AssignCamerasToUser(ctx context.Context, actor domain.Principal, userID uuid.UUID, desired []uuid.UUID) (*AssignmentResult, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	current, err := s.grants.ListCameraIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load current grants: %w", err)
	}

	toAdd, toRemove := diffGrants(current, desired)
	result := &AssignmentResult{UserID: userID, Added: toAdd, Removed: toRemove}
	if !result.Changed() {
		return result, nil
	}

	if len(toAdd) > 0 {
		known, err := s.cameras.GetByIDs(ctx, toAdd)
		if err != nil {
			return nil, err
		}
		if len(known) != len(toAdd) {
			return nil, domain.ErrCameraNotFound
		}
	}

	if len(toRemove) > 0 {
		if err := s.grants.Delete(ctx, userID, toRemove); err != nil {
			return nil, fmt.Errorf("remove grants: %w", err)
		}
	}
	if len(toAdd) > 0 {
		if err := s.grants.Insert(ctx, userID, toAdd); err != nil {
			return nil, fmt.Errorf("add grants: %w", err)
		}
	}

	s.metrics.RecordGrantMutations(len(toAdd), len(toRemove))
	s.recordAudit(ctx, actor, result)
	return result, nil
}

// authorize checks the role table, then the legacy admin flag, then the
// break-glass accounts. A failing signal falls through to the next one.
func (s *CameraAccessService) authorize(ctx context.Context, actor domain.Principal) error {
	if actor.UserID != uuid.Nil {
		for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleSuperadmin} {
			n, err := s.roles.CountRole(ctx, actor.UserID, role)
			if err != nil {
				s.log.Warn().Err(err).Str("actor_id", actor.UserID.String()).Msg("Role lookup failed during camera authorization")
				break
			}
			if n > 0 {
				return nil
			}
		}

		user, err := s.users.GetByID(ctx, actor.UserID)
		if err != nil {
			s.log.Warn().Err(err).Str("actor_id", actor.UserID.String()).Msg("Profile lookup failed during camera authorization")
		} else if user.IsAdmin {
			return nil
		}
	}

	if s.breakGlass.Contains(actor.Email) {
		return nil
	}
	return ErrPermissionDenied
}

func (s *CameraAccessService) recordAudit(ctx context.Context, actor domain.Principal, result *AssignmentResult) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		Level:   domain.AuditLevelInfo,
		Source:  cameraAccessAuditSource,
		Message: fmt.Sprintf("Camera access updated: %d added, %d removed", len(result.Added), len(result.Removed)),
		Details: map[string]interface{}{
			"user_id":  result.UserID.String(),
			"actor_id": actor.UserID.String(),
			"added":    len(result.Added),
			"removed":  len(result.Removed),
		},
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).Msg("Audit log write failed")
	}
}

// diffGrants returns desired−current and current−desired, preserving input order
func diffGrants(current, desired []uuid.UUID) (toAdd, toRemove []uuid.UUID) {
	currentSet := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	desiredSet := make(map[uuid.UUID]struct{}, len(desired))
	for _, id := range desired {
		if id == uuid.Nil {
			continue
		}
		if _, dup := desiredSet[id]; dup {
			continue
		}
		desiredSet[id] = struct{}{}
		if _, ok := currentSet[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for _, id := range current {
		if _, ok := desiredSet[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	return toAdd, toRemove
}
