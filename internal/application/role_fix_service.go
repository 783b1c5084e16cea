package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Role-fix function actions
const (
	RoleFixActionFix      = "fix"
	RoleFixActionDiagnose = "diagnose"
)

var ErrUnknownAction = errors.New("unknown action")

// RoleFixRequest is the role-fix function payload
type RoleFixRequest struct {
	Action string    `json:"action" validate:"required,oneof=fix diagnose"`
	UserID uuid.UUID `json:"userId" validate:"required"`
	Role   string    `json:"role"`
}

// RoleFixResponse is the role-fix function result
type RoleFixResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RoleFixService implements the privileged role-fix and superadmin-check
// functions. It writes the role record directly and is only callable by a
// superadmin confirmed against the store, or a break-glass account.
type RoleFixService struct {
	users      domain.UserRepository
	queries    *RoleQueries
	cache      *RoleCache
	notifier   *RoleNotifier
	pinned     domain.PinnedRoles
	breakGlass domain.BreakGlass
	log        zerolog.Logger
}

// NewRoleFixService creates the role-fix service
func NewRoleFixService(users domain.UserRepository, queries *RoleQueries, cache *RoleCache, notifier *RoleNotifier, pinned domain.PinnedRoles, breakGlass domain.BreakGlass) *RoleFixService {
	return &RoleFixService{
		users:      users,
		queries:    queries,
		cache:      cache,
		notifier:   notifier,
		pinned:     pinned,
		breakGlass: breakGlass,
		log:        logger.Component("role-fix"),
	}
}

// IsSuperadmin reads the caller's role from the store, bypassing every cache
func (s *RoleFixService) IsSuperadmin(ctx context.Context, principal domain.Principal) (bool, error) {
	if principal.UserID == uuid.Nil {
		return false, nil
	}
	role, err := s.queries.FetchRole(ctx, principal.UserID)
	if err != nil {
		return false, err
	}
	return role == domain.RoleSuperadmin, nil
}

// Handle runs a role-fix request on behalf of caller
func (s *RoleFixService) Handle(ctx context.Context, caller domain.Principal, req RoleFixRequest) (*RoleFixResponse, error) {
	if !s.breakGlass.Contains(caller.Email) {
		ok, err := s.IsSuperadmin(ctx, caller)
		if err != nil {
			return nil, fmt.Errorf("verify caller: %w", err)
		}
		if !ok {
			return nil, ErrPermissionDenied
		}
	}
	if req.UserID == uuid.Nil {
		return nil, ErrMissingUserID
	}

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case RoleFixActionDiagnose:
		return s.diagnose(ctx, req.UserID)
	case RoleFixActionFix:
		return s.fix(ctx, caller, req.UserID, req.Role)
	}
	return nil, ErrUnknownAction
}

func (s *RoleFixService) diagnose(ctx context.Context, userID uuid.UUID) (*RoleFixResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	exists, err := s.queries.RoleExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	role, err := s.queries.FetchRole(ctx, userID)
	if err != nil {
		return nil, err
	}

	details := map[string]interface{}{
		"user_id":       userID.String(),
		"email":         user.Email,
		"record_exists": exists,
		"role":          role.String(),
		"legacy_admin":  user.IsAdmin,
	}
	if pinned, ok := s.pinned.Lookup(user.Email); ok {
		details["pinned_role"] = pinned.String()
	}
	return &RoleFixResponse{Success: true, Message: "diagnosis complete", Details: details}, nil
}

func (s *RoleFixService) fix(ctx context.Context, caller domain.Principal, userID uuid.UUID, raw string) (*RoleFixResponse, error) {
	role, migrated, err := domain.MigrateLegacyRole(raw)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pinned, ok := s.pinned.Lookup(user.Email); ok && pinned != role {
		s.log.Info().
			Str("user_id", userID.String()).
			Str("requested", role.String()).
			Str("pinned", pinned.String()).
			Msg("Requested role overridden by pinned account")
		role = pinned
	}

	if err := s.queries.UpsertRole(ctx, userID, role); err != nil {
		return nil, err
	}
	s.cache.Set(userID, role)
	if s.notifier != nil {
		s.notifier.NotifyRoleChange(ctx, userID, role)
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("caller_id", caller.UserID.String()).
		Str("role", role.String()).
		Bool("legacy_migrated", migrated).
		Msg("Role fixed")

	return &RoleFixResponse{
		Success: true,
		Message: fmt.Sprintf("role set to %s", role),
		Details: map[string]interface{}{"role": role.String(), "legacy_migrated": migrated},
	}, nil
}

// ApplyPinnedRoles forces every pinned account to its configured role. It is
// run once at startup. Pinned writes are not broadcast, so any change drops
// every cached role.
func (s *RoleFixService) ApplyPinnedRoles(ctx context.Context) (fixed int, err error) {
	defer func() {
		if fixed > 0 {
			s.cache.InvalidateAll()
		}
	}()
	for email, role := range s.pinned {
		user, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				continue
			}
			return fixed, err
		}
		current, err := s.queries.FetchRole(ctx, user.ID)
		if err != nil {
			return fixed, err
		}
		if current == role {
			continue
		}
		if err := s.queries.UpsertRole(ctx, user.ID, role); err != nil {
			return fixed, err
		}
		fixed++
		s.log.Info().Str("email", email).Str("role", role.String()).Msg("Pinned role applied")
	}
	return fixed, nil
}
