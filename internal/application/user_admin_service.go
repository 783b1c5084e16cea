package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// User management actions accepted by the get-all-users function
const (
	UserActionUpdateRole           = "update_role"
	UserActionToggleMFARequirement = "toggle_mfa_requirement"
	UserActionRevokeMFA            = "revoke_mfa"
)

var ErrCannotDeleteSelf = errors.New("cannot delete your own account")

// UserAdminService lists and manages every user, bypassing per-user
// visibility. Callers must be admin or superadmin by the store, or break-glass.
type UserAdminService struct {
	users      domain.UserRepository
	queries    *RoleQueries
	roles      *RoleService
	grants     domain.CameraGrantRepository
	source     *RoleSource
	audit      domain.AuditSink
	breakGlass domain.BreakGlass
	log        zerolog.Logger
}

// NewUserAdminService creates the user management service
func NewUserAdminService(
	users domain.UserRepository,
	queries *RoleQueries,
	roles *RoleService,
	grants domain.CameraGrantRepository,
	source *RoleSource,
	audit domain.AuditSink,
	breakGlass domain.BreakGlass,
) *UserAdminService {
	return &UserAdminService{
		users:      users,
		queries:    queries,
		roles:      roles,
		grants:     grants,
		source:     source,
		audit:      audit,
		breakGlass: breakGlass,
		log:        logger.Component("user-admin"),
	}
}

// ListUsers returns every user with their role resolved from the role record
func (s *UserAdminService) ListUsers(ctx context.Context, caller domain.Principal) ([]*domain.User, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		role, err := s.queries.FetchRole(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve role for %s: %w", u.ID, err)
		}
		u.Role = role
	}
	if users == nil {
		users = []*domain.User{}
	}
	return users, nil
}

// UpdateRole changes a user's role through the role service
func (s *UserAdminService) UpdateRole(ctx context.Context, caller domain.Principal, userID uuid.UUID, role domain.Role) error {
	if err := s.authorize(ctx, caller); err != nil {
		return err
	}
	return s.roles.UpdateUserRoleWithTimeout(ctx, caller, userID, role)
}

// ToggleMFARequirement flips whether the user must enrol MFA
func (s *UserAdminService) ToggleMFARequirement(ctx context.Context, caller domain.Principal, userID uuid.UUID) (*domain.User, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.MFARequired = !user.MFARequired
	if err := s.users.SetMFA(ctx, userID, user.MFARequired, user.MFAEnrolled); err != nil {
		return nil, err
	}
	s.record(ctx, caller, userID, "MFA requirement toggled", map[string]interface{}{"mfa_required": user.MFARequired})
	return user, nil
}

// RevokeMFA removes the user's MFA enrolment
func (s *UserAdminService) RevokeMFA(ctx context.Context, caller domain.Principal, userID uuid.UUID) (*domain.User, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.MFAEnrolled = false
	if err := s.users.SetMFA(ctx, userID, user.MFARequired, false); err != nil {
		return nil, err
	}
	s.record(ctx, caller, userID, "MFA enrolment revoked", nil)
	return user, nil
}

// DeleteUser removes the user's grants, role record and account
func (s *UserAdminService) DeleteUser(ctx context.Context, caller domain.Principal, userID uuid.UUID) error {
	if err := s.authorize(ctx, caller); err != nil {
		return err
	}
	if userID == uuid.Nil {
		return ErrMissingUserID
	}
	if userID == caller.UserID {
		return ErrCannotDeleteSelf
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}

	if err := s.grants.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}
	if err := s.queries.DeleteRole(ctx, userID); err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.source.Forget(userID)
	s.record(ctx, caller, userID, "User deleted", nil)
	return nil
}

func (s *UserAdminService) authorize(ctx context.Context, caller domain.Principal) error {
	if s.breakGlass.Contains(caller.Email) {
		return nil
	}
	if caller.UserID == uuid.Nil {
		return ErrPermissionDenied
	}
	role, err := s.queries.FetchRole(ctx, caller.UserID)
	if err != nil {
		return fmt.Errorf("verify caller: %w", err)
	}
	if !role.IsPrivileged() {
		return ErrPermissionDenied
	}
	return nil
}

func (s *UserAdminService) record(ctx context.Context, caller domain.Principal, userID uuid.UUID, message string, extra map[string]interface{}) {
	if s.audit == nil {
		return
	}
	details := map[string]interface{}{
		"user_id":  userID.String(),
		"actor_id": caller.UserID.String(),
	}
	for k, v := range extra {
		details[k] = v
	}
	if err := s.audit.Append(ctx, domain.AuditEntry{
		Level:   domain.AuditLevelInfo,
		Source:  "user-admin",
		Message: message,
		Details: details,
	}); err != nil {
		s.log.Warn().Err(err).Msg("Audit log write failed")
	}
}
