package application

import (
	"context"
	"testing"

	"github.com/camwatch/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*AuthService, *roleStack) {
	t.Helper()
	s := newRoleStack(t, 0)
	return NewAuthService(newFakeUserRepo(), s.queries, s.source, "test-secret", 1, 24), s
}

func TestAuthLoginCarriesStoredRole(t *testing.T) {
	ctx := context.Background()
	auth, s := newAuthFixture(t)

	user, err := auth.CreateUser(ctx, "ops@camwatch.test", "hunter22", "Ops", domain.RoleObserver)
	require.NoError(t, err)
	rec, ok := s.repo.stored(user.ID)
	require.True(t, ok)
	assert.Equal(t, "observer", rec.Role)

	s.repo.seed(user.ID, "admin")
	pair, err := auth.Login(ctx, "ops@camwatch.test", "hunter22")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	p := claims.Principal(pair.AccessToken)
	assert.Equal(t, pair.AccessToken, p.Token)
	assert.Equal(t, "ops@camwatch.test", p.Email)
}

func TestAuthLoginRejectsBadPassword(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuthFixture(t)
	_, err := auth.CreateUser(ctx, "ops@camwatch.test", "hunter22", "Ops", domain.RoleUser)
	require.NoError(t, err)

	_, err = auth.Login(ctx, "ops@camwatch.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Login(ctx, "nobody@camwatch.test", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthValidateToken(t *testing.T) {
	auth, _ := newAuthFixture(t)
	_, err := auth.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewAuthService(newFakeUserRepo(), nil, nil, "other-secret", 1, 1)
	pair, err := other.generateTokenPair(domain.NewUser("x@camwatch.test", "X", domain.RoleUser))
	require.NoError(t, err)
	_, err = auth.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthRefreshAndCurrentUser(t *testing.T) {
	ctx := context.Background()
	auth, s := newAuthFixture(t)
	user, err := auth.CreateUser(ctx, "ops@camwatch.test", "hunter22", "Ops", domain.RoleUser)
	require.NoError(t, err)

	pair, err := auth.Login(ctx, "ops@camwatch.test", "hunter22")
	require.NoError(t, err)
	refreshed, err := auth.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	s.repo.seed(user.ID, "observer")
	current, err := auth.GetCurrentUser(ctx, domain.Principal{UserID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleObserver, current.Role)
}

func TestAuthCreateUserRejectsInvalidRole(t *testing.T) {
	auth, _ := newAuthFixture(t)
	_, err := auth.CreateUser(context.Background(), "a@camwatch.test", "pw", "A", domain.Role("root"))
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}
