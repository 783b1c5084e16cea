package application

import (
	"context"
	"errors"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var ErrMissingUserID = errors.New("user id is required")

// RoleQueries reads and writes the authoritative role record. Store errors
// are returned unchanged; retrying through another path is the caller's job.
type RoleQueries struct {
	repo  domain.RoleRepository
	clock clockwork.Clock
	log   zerolog.Logger
}

// NewRoleQueries creates the role query layer
func NewRoleQueries(repo domain.RoleRepository, clock clockwork.Clock) *RoleQueries {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RoleQueries{
		repo:  repo,
		clock: clock,
		log:   logger.Component("role-queries"),
	}
}

// FetchRole returns the stored role, or DefaultRole when the user has no
// record or the stored value is not a known role.
func (q *RoleQueries) FetchRole(ctx context.Context, userID uuid.UUID) (domain.Role, error) {
	if userID == uuid.Nil {
		return "", ErrMissingUserID
	}

	record, err := q.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRoleRecordNotFound) {
			return domain.DefaultRole, nil
		}
		return "", err
	}

	role, err := domain.ParseRole(record.Role)
	if err != nil {
		q.log.Warn().
			Str("user_id", userID.String()).
			Str("stored_role", record.Role).
			Msg("Unknown stored role, using default")
		return domain.DefaultRole, nil
	}

	return role, nil
}

// RoleExists reports whether a role record exists for userID
func (q *RoleQueries) RoleExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, ErrMissingUserID
	}
	return q.repo.Exists(ctx, userID)
}

// CountRole counts records for userID holding exactly role
func (q *RoleQueries) CountRole(ctx context.Context, userID uuid.UUID, role domain.Role) (int, error) {
	if err := validateRoleWrite(userID, role); err != nil {
		return 0, err
	}
	return q.repo.Count(ctx, userID, role)
}

// UpdateExistingRole rewrites the role on an existing record
func (q *RoleQueries) UpdateExistingRole(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	if err := validateRoleWrite(userID, role); err != nil {
		return err
	}
	return q.repo.Update(ctx, userID, role, q.clock.Now())
}

// InsertNewRole creates the role record for userID
func (q *RoleQueries) InsertNewRole(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	if err := validateRoleWrite(userID, role); err != nil {
		return err
	}
	return q.repo.Insert(ctx, userID, role, q.clock.Now())
}

// UpsertRole inserts or updates the role record keyed by userID
func (q *RoleQueries) UpsertRole(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	if err := validateRoleWrite(userID, role); err != nil {
		return err
	}
	return q.repo.Upsert(ctx, userID, role, q.clock.Now())
}

// TouchRole bumps touched_at so change listeners fire without altering the role
func (q *RoleQueries) TouchRole(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrMissingUserID
	}
	return q.repo.Touch(ctx, userID, q.clock.Now())
}

// DeleteRole removes the role record for userID
func (q *RoleQueries) DeleteRole(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrMissingUserID
	}
	return q.repo.Delete(ctx, userID)
}

func validateRoleWrite(userID uuid.UUID, role domain.Role) error {
	if userID == uuid.Nil {
		return ErrMissingUserID
	}
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	return nil
}
