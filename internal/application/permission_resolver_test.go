package application

import (
	"context"
	"errors"
	"testing"

	"github.com/camwatch/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, s *roleStack, superadmin domain.SuperadminChecker, policy FailurePolicy, breakGlass ...string) *PermissionResolver {
	t.Helper()
	r, err := NewPermissionResolver(PermissionResolverConfig{
		Roles:      s.source,
		Superadmin: superadmin,
		BreakGlass: domain.NewBreakGlass(breakGlass),
		Policy:     policy,
		Clock:      s.clock,
	})
	require.NoError(t, err)
	return r
}

func TestHasPermissionIsPure(t *testing.T) {
	s := newRoleStack(t, 0)
	r := newResolver(t, s, nil, FailClosed)

	for i := 0; i < 3; i++ {
		assert.True(t, r.HasPermission(domain.RoleUser, domain.PermViewDashboard))
		assert.False(t, r.HasPermission(domain.RoleUser, domain.PermManageUsers))
		assert.True(t, r.HasPermission(domain.RoleObserver, domain.PermExportRecordings))
		assert.False(t, r.HasPermission(domain.RoleAdmin, domain.PermSystemMigration))
	}
	for _, p := range domain.Permissions() {
		assert.True(t, r.HasPermission(domain.RoleSuperadmin, p), p)
	}
	assert.Empty(t, s.repo.callLog())
}

func TestHasPermissionCachedMatchesTable(t *testing.T) {
	s := newRoleStack(t, 0)
	r := newResolver(t, s, nil, FailClosed)

	for _, role := range domain.Roles() {
		for _, p := range domain.Permissions() {
			want := r.HasPermission(role, p)
			assert.Equal(t, want, r.HasPermissionCached(role, p))
			assert.Equal(t, want, r.HasPermissionCached(role, p))
		}
	}
}

func TestHasElevatedPermissionUsesResolvedRole(t *testing.T) {
	ctx := context.Background()
	s := newRoleStack(t, 0)
	r := newResolver(t, s, &fakeSuperadmin{}, FailClosed)

	p := principalFor(domain.RoleUser)
	s.repo.seed(p.UserID, "admin")

	assert.True(t, r.HasElevatedPermission(ctx, p, domain.PermManageUsers), "the stored role wins over the token role")
}

func TestHasElevatedPermissionSuperadminBypass(t *testing.T) {
	ctx := context.Background()
	s := newRoleStack(t, 0)
	checker := &fakeSuperadmin{ok: true}
	r := newResolver(t, s, checker, FailClosed)

	p := principalFor(domain.RoleUser)
	s.repo.seed(p.UserID, "user")

	assert.True(t, r.HasElevatedPermission(ctx, p, domain.PermAssignRoles))
	assert.Equal(t, 1, checker.calls)

	assert.False(t, r.HasElevatedPermission(ctx, p, domain.PermManageUsers), "non-sensitive permissions are not escalated")
	assert.Equal(t, 1, checker.calls)
}

func TestHasElevatedPermissionBreakGlass(t *testing.T) {
	ctx := context.Background()
	s := newRoleStack(t, 0)
	checker := &fakeSuperadmin{}
	p := principalFor(domain.RoleUser)
	r := newResolver(t, s, checker, FailClosed, p.Email)

	assert.True(t, r.HasElevatedPermission(ctx, p, domain.PermSystemMigration))
	assert.Zero(t, checker.calls)
	assert.False(t, r.HasElevatedPermission(ctx, p, domain.PermManageStorage))
}

func TestHasElevatedPermissionFailurePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("fail closed on role lookup error", func(t *testing.T) {
		s := newRoleStack(t, 0)
		s.repo.getErr = errors.New("timeout")
		r := newResolver(t, s, &fakeSuperadmin{ok: true}, FailClosed)
		assert.False(t, r.HasElevatedPermission(ctx, principalFor(domain.RoleAdmin), domain.PermViewDashboard))
	})

	t.Run("fail open on role lookup error", func(t *testing.T) {
		s := newRoleStack(t, 0)
		s.repo.getErr = errors.New("timeout")
		r := newResolver(t, s, nil, FailOpen)
		assert.True(t, r.HasElevatedPermission(ctx, principalFor(domain.RoleUser), domain.PermManageSystem))
	})

	t.Run("fail closed on superadmin check error", func(t *testing.T) {
		s := newRoleStack(t, 0)
		r := newResolver(t, s, &fakeSuperadmin{err: errors.New("502")}, FailClosed)
		assert.False(t, r.HasElevatedPermission(ctx, principalFor(domain.RoleUser), domain.PermAssignCameras))
	})

	t.Run("break-glass survives role lookup error", func(t *testing.T) {
		s := newRoleStack(t, 0)
		s.repo.getErr = errors.New("connection refused")
		p := principalFor(domain.RoleUser)
		checker := &fakeSuperadmin{}
		r := newResolver(t, s, checker, FailClosed, p.Email)

		assert.True(t, r.HasElevatedPermission(ctx, p, domain.PermAssignCameras))
		assert.True(t, r.HasElevatedPermission(ctx, p, domain.PermAssignRoles))
		assert.Zero(t, checker.calls)
		assert.False(t, r.HasElevatedPermission(ctx, p, domain.PermViewLogs), "only sensitive permissions fall back")
	})

	t.Run("superadmin check survives role lookup error", func(t *testing.T) {
		s := newRoleStack(t, 0)
		s.repo.getErr = errors.New("connection refused")
		r := newResolver(t, s, &fakeSuperadmin{ok: true}, FailClosed)
		assert.True(t, r.HasElevatedPermission(ctx, principalFor(domain.RoleUser), domain.PermAssignRoles))
	})

	t.Run("default policy is fail closed", func(t *testing.T) {
		r, err := NewPermissionResolver(PermissionResolverConfig{})
		require.NoError(t, err)
		assert.Equal(t, FailClosed, r.Policy())
	})
}
