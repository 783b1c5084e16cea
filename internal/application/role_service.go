package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/camwatch/backend/internal/pkg/metrics"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultRoleUpdateTimeout bounds how long a caller waits for a role update
const DefaultRoleUpdateTimeout = 10 * time.Second

var (
	ErrSelfDemotion      = errors.New("superadmins cannot change their own role")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrRoleUpdateFailed  = errors.New("role update failed")
	ErrRoleUpdateTimeout = errors.New("role update timed out")
)

// SessionRefresher reloads the role held by a user's live sessions
type SessionRefresher interface {
	RefreshSession(ctx context.Context, userID uuid.UUID) error
}

// RoleServiceConfig wires the role update orchestrator
type RoleServiceConfig struct {
	Strategies  []RoleUpdateStrategy
	Cache       *RoleCache
	Notifier    *RoleNotifier
	Permissions *PermissionResolver
	Refresher   SessionRefresher
	BreakGlass  domain.BreakGlass
	Timeout     time.Duration
	Clock       clockwork.Clock
	Metrics     *metrics.Metrics
}

// RoleService orchestrates role updates through an ordered list of
// strategies, stopping at the first that succeeds.
type RoleService struct {
	strategies  []RoleUpdateStrategy
	cache       *RoleCache
	notifier    *RoleNotifier
	permissions *PermissionResolver
	refresher   SessionRefresher
	breakGlass  domain.BreakGlass
	timeout     time.Duration
	clock       clockwork.Clock
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewRoleService creates a role service
func NewRoleService(cfg RoleServiceConfig) *RoleService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRoleUpdateTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &RoleService{
		strategies:  cfg.Strategies,
		cache:       cfg.Cache,
		notifier:    cfg.Notifier,
		permissions: cfg.Permissions,
		refresher:   cfg.Refresher,
		breakGlass:  cfg.BreakGlass,
		timeout:     cfg.Timeout,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		log:         logger.Component("role-service"),
	}
}

// UpdateUserRole changes userID's role on behalf of actor
func (s *RoleService) UpdateUserRole(ctx context.Context, actor domain.Principal, userID uuid.UUID, role domain.Role) error {
	if userID == uuid.Nil {
		return ErrMissingUserID
	}
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	if actor.UserID == userID && actor.Role == domain.RoleSuperadmin && role != domain.RoleSuperadmin && !s.breakGlass.Contains(actor.Email) {
		return ErrSelfDemotion
	}
	if s.permissions != nil && !s.permissions.HasElevatedPermission(ctx, actor, domain.PermAssignRoles) {
		return ErrPermissionDenied
	}

	update := RoleUpdate{UserID: userID, Role: role}
	var failures []string
	for _, strategy := range s.strategies {
		err := strategy.Attempt(ctx, update)
		s.metrics.RecordRoleAttempt(strategy.Name(), err)
		if err == nil {
			s.log.Info().
				Str("user_id", userID.String()).
				Str("role", role.String()).
				Str("strategy", strategy.Name()).
				Msg("Role updated")
			s.afterUpdate(ctx, actor, userID, role)
			return nil
		}
		s.log.Warn().
			Err(err).
			Str("user_id", userID.String()).
			Str("strategy", strategy.Name()).
			Msg("Role update strategy failed")
		failures = append(failures, fmt.Sprintf("%s: %v", strategy.Name(), err))
	}

	if len(failures) == 0 {
		return fmt.Errorf("%w: no update strategy configured", ErrRoleUpdateFailed)
	}
	return fmt.Errorf("%w: %s", ErrRoleUpdateFailed, strings.Join(failures, "; "))
}

// UpdateUserRoleWithTimeout waits at most the configured timeout. When the
// timeout fires the update keeps running in the background and its outcome
// is only logged.
func (s *RoleService) UpdateUserRoleWithTimeout(ctx context.Context, actor domain.Principal, userID uuid.UUID, role domain.Role) error {
	done := make(chan error, 1)
	bg := context.WithoutCancel(ctx)
	go func() {
		done <- s.UpdateUserRole(bg, actor, userID, role)
	}()

	timer := s.clock.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.Chan():
		go func() {
			err := <-done
			event := s.log.Info()
			if err != nil {
				event = s.log.Error().Err(err)
			}
			event.Str("user_id", userID.String()).Msg("Role update finished after timeout")
		}()
		return ErrRoleUpdateTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// afterUpdate runs the success side effects. The cache is written before
// notifying because listeners re-read it immediately.
func (s *RoleService) afterUpdate(ctx context.Context, actor domain.Principal, userID uuid.UUID, role domain.Role) {
	if s.cache != nil {
		s.cache.Set(userID, role)
	}
	if s.notifier != nil {
		s.notifier.NotifyRoleChange(ctx, userID, role)
		s.notifier.TriggerRealtimeNotification(ctx, userID)
	}
	if actor.UserID == userID && s.refresher != nil {
		if err := s.refresher.RefreshSession(ctx, userID); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("Session refresh failed")
		}
	}
}
