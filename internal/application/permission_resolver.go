package application

import (
	"context"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/camwatch/backend/internal/pkg/metrics"
	"github.com/camwatch/backend/internal/pkg/ttlcache"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// FailurePolicy decides the outcome of a permission check that could not be resolved
type FailurePolicy int

const (
	// FailClosed denies access when the role cannot be resolved
	FailClosed FailurePolicy = iota
	// FailOpen grants access when the role cannot be resolved
	FailOpen
)

func (p FailurePolicy) String() string {
	if p == FailOpen {
		return "fail-open"
	}
	return "fail-closed"
}

// PermissionResolverConfig wires the resolver
type PermissionResolverConfig struct {
	Roles      *RoleSource
	Superadmin domain.SuperadminChecker
	BreakGlass domain.BreakGlass
	Policy     FailurePolicy
	CacheTTL   time.Duration
	Clock      clockwork.Clock
	Metrics    *metrics.Metrics
}

// PermissionResolver answers (role, permission) questions
type PermissionResolver struct {
	cache      *ttlcache.Cache[string, bool]
	roles      *RoleSource
	superadmin domain.SuperadminChecker
	breakGlass domain.BreakGlass
	policy     FailurePolicy
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewPermissionResolver creates a resolver with its own result cache
func NewPermissionResolver(cfg PermissionResolverConfig) (*PermissionResolver, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultRoleCacheTTL
	}
	cache, err := ttlcache.New[string, bool](cfg.CacheTTL, 0, cfg.Clock)
	if err != nil {
		return nil, err
	}
	return &PermissionResolver{
		cache:      cache,
		roles:      cfg.Roles,
		superadmin: cfg.Superadmin,
		breakGlass: cfg.BreakGlass,
		policy:     cfg.Policy,
		metrics:    cfg.Metrics,
		log:        logger.Component("permission-resolver"),
	}, nil
}

// HasPermission is the pure policy-table lookup
func (r *PermissionResolver) HasPermission(role domain.Role, perm domain.Permission) bool {
	return role.Allows(perm)
}

// HasPermissionCached consults the result cache before the policy table
func (r *PermissionResolver) HasPermissionCached(role domain.Role, perm domain.Permission) bool {
	key := string(role) + ":" + string(perm)
	if granted, ok := r.cache.Get(key); ok {
		r.metrics.RecordCacheLookup("permission", true)
		return granted
	}
	r.metrics.RecordCacheLookup("permission", false)

	granted := r.HasPermission(role, perm)
	r.cache.Set(key, granted)
	return granted
}

// HasElevatedPermission resolves the principal's current role and checks
// perm. Sensitive permissions that the local role does not grant are
// re-checked against the break-glass accounts and the superadmin function,
// since the local role may lag behind a recent change. Both are consulted
// even when the role itself cannot be resolved.
func (r *PermissionResolver) HasElevatedPermission(ctx context.Context, principal domain.Principal, perm domain.Permission) bool {
	role := principal.Role
	if r.roles != nil {
		resolved, err := r.roles.ResolveRole(ctx, principal.UserID)
		if err != nil {
			if perm.Sensitive() {
				if granted, checkErr := r.elevated(ctx, principal, role, perm); checkErr == nil && granted {
					return true
				}
			}
			return r.onFailure(principal, perm, err)
		}
		role = resolved
	}

	if r.HasPermissionCached(role, perm) {
		r.metrics.RecordPermissionCheck("local", true)
		return true
	}
	if !perm.Sensitive() {
		r.metrics.RecordPermissionCheck("local", false)
		return false
	}

	granted, err := r.elevated(ctx, principal, role, perm)
	if err != nil {
		return r.onFailure(principal, perm, err)
	}
	if !granted {
		r.metrics.RecordPermissionCheck("elevated", false)
	}
	return granted
}

// elevated confirms a sensitive permission without the local role
func (r *PermissionResolver) elevated(ctx context.Context, principal domain.Principal, role domain.Role, perm domain.Permission) (bool, error) {
	if r.breakGlass.Contains(principal.Email) {
		r.metrics.RecordPermissionCheck("break-glass", true)
		return true, nil
	}
	if r.superadmin == nil {
		return false, nil
	}
	ok, err := r.superadmin.IsSuperadmin(ctx, principal)
	if err != nil {
		return false, err
	}
	if ok {
		r.log.Info().
			Str("user_id", principal.UserID.String()).
			Str("local_role", role.String()).
			Str("permission", string(perm)).
			Msg("Elevated permission confirmed by superadmin check")
		r.metrics.RecordPermissionCheck("superadmin-check", true)
	}
	return ok, nil
}

// Permissions lists what role is allowed to do
func (r *PermissionResolver) Permissions(role domain.Role) []domain.Permission {
	return domain.PolicyFor(role)
}

// Policy reports the configured failure policy
func (r *PermissionResolver) Policy() FailurePolicy {
	return r.policy
}

func (r *PermissionResolver) onFailure(principal domain.Principal, perm domain.Permission, err error) bool {
	granted := r.policy == FailOpen
	r.log.Error().
		Err(err).
		Str("user_id", principal.UserID.String()).
		Str("permission", string(perm)).
		Str("policy", r.policy.String()).
		Bool("granted", granted).
		Msg("Permission check could not be resolved")
	r.metrics.RecordPermissionCheck("failure", granted)
	return granted
}
