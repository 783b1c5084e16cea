package application

import (
	"context"
	"errors"
	"testing"

	"github.com/camwatch/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userAdminFixture struct {
	*roleStack
	users   *fakeUserRepo
	grants  *fakeGrantRepo
	audit   *fakeAudit
	service *UserAdminService
	admin   domain.Principal
	alice   *domain.User
}

func newUserAdminFixture(t *testing.T) *userAdminFixture {
	t.Helper()
	s := newRoleStack(t, 0)
	admin := principalFor(domain.RoleAdmin)
	s.repo.seed(admin.UserID, "admin")
	alice := domain.NewUser("alice@camwatch.test", "Alice", domain.RoleUser)
	s.repo.seed(alice.ID, "observer")

	f := &userAdminFixture{
		roleStack: s,
		users:     newFakeUserRepo(alice),
		grants:    newFakeGrantRepo(),
		audit:     &fakeAudit{},
		admin:     admin,
		alice:     alice,
	}
	roles := NewRoleService(RoleServiceConfig{
		Strategies: []RoleUpdateStrategy{NewUpsertStrategy(s.queries)},
		Cache:      s.cache,
		Clock:      s.clock,
	})
	f.service = NewUserAdminService(f.users, s.queries, roles, f.grants, s.source, f.audit, domain.NewBreakGlass(nil))
	return f
}

func TestListUsersResolvesRoles(t *testing.T) {
	ctx := context.Background()
	f := newUserAdminFixture(t)

	users, err := f.service.ListUsers(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, domain.RoleObserver, users[0].Role)
}

func TestUserAdminRequiresPrivilegedCaller(t *testing.T) {
	ctx := context.Background()
	f := newUserAdminFixture(t)
	caller := domain.Principal{UserID: f.alice.ID, Email: f.alice.Email, Role: domain.RoleSuperadmin}

	_, err := f.service.ListUsers(ctx, caller)
	assert.ErrorIs(t, err, ErrPermissionDenied, "the stored role decides, not the token")

	err = f.service.DeleteUser(ctx, caller, uuid.New())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUserAdminUpdateRole(t *testing.T) {
	ctx := context.Background()
	f := newUserAdminFixture(t)

	require.NoError(t, f.service.UpdateRole(ctx, f.admin, f.alice.ID, domain.RoleAdmin))
	rec, _ := f.repo.stored(f.alice.ID)
	assert.Equal(t, "admin", rec.Role)
}

func TestUserAdminMFA(t *testing.T) {
	ctx := context.Background()
	f := newUserAdminFixture(t)
	f.alice.MFAEnrolled = true

	u, err := f.service.ToggleMFARequirement(ctx, f.admin, f.alice.ID)
	require.NoError(t, err)
	assert.True(t, u.MFARequired)
	u, err = f.service.ToggleMFARequirement(ctx, f.admin, f.alice.ID)
	require.NoError(t, err)
	assert.False(t, u.MFARequired)

	u, err = f.service.RevokeMFA(ctx, f.admin, f.alice.ID)
	require.NoError(t, err)
	assert.False(t, u.MFAEnrolled)
	stored, _ := f.users.GetByID(ctx, f.alice.ID)
	assert.False(t, stored.MFAEnrolled)
	assert.Equal(t, 3, f.audit.count())

	_, err = f.service.RevokeMFA(ctx, f.admin, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserAdminDeleteUser(t *testing.T) {
	ctx := context.Background()
	f := newUserAdminFixture(t)
	f.grants.grants[f.alice.ID] = []uuid.UUID{uuid.New()}

	assert.ErrorIs(t, f.service.DeleteUser(ctx, f.admin, f.admin.UserID), ErrCannotDeleteSelf)
	assert.ErrorIs(t, f.service.DeleteUser(ctx, f.admin, uuid.New()), domain.ErrUserNotFound)

	require.NoError(t, f.service.DeleteUser(ctx, f.admin, f.alice.ID))
	_, err := f.users.GetByID(ctx, f.alice.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, ok := f.repo.stored(f.alice.ID)
	assert.False(t, ok)
	assert.Empty(t, f.grants.grants[f.alice.ID])
}

func TestUserAdminKeepsStoreErrors(t *testing.T) {
	ctx := context.Background()
	f := newUserAdminFixture(t)
	storeErr := errors.New("connection reset")
	f.users.err = storeErr

	_, err := f.service.ToggleMFARequirement(ctx, f.admin, f.alice.ID)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, domain.ErrUserNotFound)

	_, err = f.service.RevokeMFA(ctx, f.admin, f.alice.ID)
	assert.ErrorIs(t, err, storeErr)

	err = f.service.DeleteUser(ctx, f.admin, f.alice.ID)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, domain.ErrUserNotFound)
}
