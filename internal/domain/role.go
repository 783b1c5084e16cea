package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents a user's authorization level
type Role string

const (
	RoleUser       Role = "user"
	RoleObserver   Role = "observer"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// DefaultRole is assigned when no role record exists or the stored value is unknown
const DefaultRole = RoleUser

// Legacy role names still found in old records and in the role-fix function payloads
const (
	legacyRoleOperator          = "operator"
	legacyRoleMonitoringOfficer = "monitoringofficer"
)

var ErrInvalidRole = errors.New("invalid role")

// Roles returns the closed set of roles in ascending order of privilege
func Roles() []Role {
	return []Role{RoleUser, RoleObserver, RoleAdmin, RoleSuperadmin}
}

// ParseRole converts a raw value into a Role, rejecting anything outside the closed set
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleObserver:
		return RoleObserver, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSuperadmin:
		return RoleSuperadmin, nil
	}
	return "", ErrInvalidRole
}

// CoerceRole parses raw and falls back to DefaultRole for unknown values
func CoerceRole(raw string) Role {
	role, err := ParseRole(raw)
	if err != nil {
		return DefaultRole
	}
	return role
}

// MigrateLegacyRole accepts the deprecated operator/monitoringOfficer names
// and maps them to RoleUser. Any other value goes through ParseRole.
func MigrateLegacyRole(raw string) (Role, bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case legacyRoleOperator, legacyRoleMonitoringOfficer:
		return RoleUser, true, nil
	}
	role, err := ParseRole(raw)
	return role, false, err
}

// Valid reports whether r is exactly one of the role constants. Raw input
// should go through ParseRole first.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleObserver, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// IsPrivileged reports whether the role sees and manages every camera
func (r Role) IsPrivileged() bool {
	switch r {
	case RoleAdmin, RoleSuperadmin:
		return true
	case RoleUser, RoleObserver:
		return false
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// RoleRecord is the authoritative role row for a user
type RoleRecord struct {
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	UpdatedAt time.Time `json:"updated_at"`
	TouchedAt time.Time `json:"touched_at"`
}

// RoleChange is broadcast to other sessions when a user's role is written
type RoleChange struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
	At     time.Time `json:"at"`
}

// RoleRepository defines persistence for user role records.
// Get returns ErrRoleRecordNotFound when the user has no record.
type RoleRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*RoleRecord, error)
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
	Count(ctx context.Context, userID uuid.UUID, role Role) (int, error)
	Update(ctx context.Context, userID uuid.UUID, role Role, at time.Time) error
	Insert(ctx context.Context, userID uuid.UUID, role Role, at time.Time) error
	Upsert(ctx context.Context, userID uuid.UUID, role Role, at time.Time) error
	Touch(ctx context.Context, userID uuid.UUID, at time.Time) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

var ErrRoleRecordNotFound = errors.New("role record not found")

// RoleBroadcaster publishes and delivers role changes across sessions
type RoleBroadcaster interface {
	Publish(ctx context.Context, change RoleChange) error
	Subscribe(ctx context.Context, userID uuid.UUID) (<-chan RoleChange, func(), error)
}

// RoleFixer performs a role write through the privileged role-fix function
type RoleFixer interface {
	FixRole(ctx context.Context, userID uuid.UUID, role Role) error
}

// SuperadminChecker asks an authoritative source whether the calling principal is a superadmin
type SuperadminChecker interface {
	IsSuperadmin(ctx context.Context, principal Principal) (bool, error)
}
