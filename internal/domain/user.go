package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a console account. Role is resolved from the role record,
// not stored on the profile row.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	IsAdmin      bool      `json:"is_admin"`
	MFARequired  bool      `json:"mfa_required"`
	MFAEnrolled  bool      `json:"mfa_enrolled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser creates a new user
func NewUser(email, name string, role Role) *User {
	now := time.Now()
	return &User{
		ID:        uuid.New(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the interface for user persistence
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetAll(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, user *User) error
	SetMFA(ctx context.Context, id uuid.UUID, required, enrolled bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Principal is the authenticated actor behind a request
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   Role
	Token  string
}

// BreakGlass is the configured set of accounts that are always treated as privileged
type BreakGlass struct {
	emails map[string]struct{}
}

// NewBreakGlass normalizes emails into a lookup set
func NewBreakGlass(emails []string) BreakGlass {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		set[e] = struct{}{}
	}
	return BreakGlass{emails: set}
}

// Contains reports whether email is a break-glass account
func (b BreakGlass) Contains(email string) bool {
	if len(b.emails) == 0 {
		return false
	}
	_, ok := b.emails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// PinnedRoles maps well-known accounts to a role they are always forced to
type PinnedRoles map[string]Role

// NewPinnedRoles parses email→role pairs, migrating legacy role names
func NewPinnedRoles(raw map[string]string) (PinnedRoles, error) {
	pinned := make(PinnedRoles, len(raw))
	for email, value := range raw {
		role, _, err := MigrateLegacyRole(value)
		if err != nil {
			return nil, err
		}
		pinned[strings.ToLower(strings.TrimSpace(email))] = role
	}
	return pinned, nil
}

// Lookup returns the pinned role for email, if any
func (p PinnedRoles) Lookup(email string) (Role, bool) {
	role, ok := p[strings.ToLower(strings.TrimSpace(email))]
	return role, ok
}

type principalKey struct{}

// ContextWithPrincipal attaches the acting principal to ctx
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the acting principal stored in ctx
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
