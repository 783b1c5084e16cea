package application

import (
	"context"
	"fmt"

	"github.com/camwatch/backend/internal/domain"
	"github.com/google/uuid"
)

// RoleUpdate is the intent shared by every update strategy
type RoleUpdate struct {
	UserID uuid.UUID
	Role   domain.Role
}

// RoleUpdateStrategy is one way of persisting a role change
type RoleUpdateStrategy interface {
	Name() string
	Attempt(ctx context.Context, update RoleUpdate) error
}

// DirectWriteStrategy updates the existing record or inserts a new one
type DirectWriteStrategy struct {
	queries *RoleQueries
}

// NewDirectWriteStrategy creates the first-choice strategy
func NewDirectWriteStrategy(queries *RoleQueries) *DirectWriteStrategy {
	return &DirectWriteStrategy{queries: queries}
}

func (s *DirectWriteStrategy) Name() string { return "direct" }

func (s *DirectWriteStrategy) Attempt(ctx context.Context, update RoleUpdate) error {
	exists, err := s.queries.RoleExists(ctx, update.UserID)
	if err != nil {
		return fmt.Errorf("check role record: %w", err)
	}
	if exists {
		return s.queries.UpdateExistingRole(ctx, update.UserID, update.Role)
	}
	return s.queries.InsertNewRole(ctx, update.UserID, update.Role)
}

// UpsertStrategy retries the same intent as a single insert-or-update
type UpsertStrategy struct {
	queries *RoleQueries
}

// NewUpsertStrategy creates the upsert strategy
func NewUpsertStrategy(queries *RoleQueries) *UpsertStrategy {
	return &UpsertStrategy{queries: queries}
}

func (s *UpsertStrategy) Name() string { return "upsert" }

func (s *UpsertStrategy) Attempt(ctx context.Context, update RoleUpdate) error {
	return s.queries.UpsertRole(ctx, update.UserID, update.Role)
}

// EdgeFunctionStrategy routes the write through the privileged role-fix
// function, which is not subject to the caller's write restrictions.
type EdgeFunctionStrategy struct {
	fixer domain.RoleFixer
}

// NewEdgeFunctionStrategy creates the last-resort strategy
func NewEdgeFunctionStrategy(fixer domain.RoleFixer) *EdgeFunctionStrategy {
	return &EdgeFunctionStrategy{fixer: fixer}
}

func (s *EdgeFunctionStrategy) Name() string { return "edge-function" }

func (s *EdgeFunctionStrategy) Attempt(ctx context.Context, update RoleUpdate) error {
	return s.UpdateRoleViaEdgeFunction(ctx, update.UserID, update.Role)
}

// UpdateRoleViaEdgeFunction validates the role and calls the role-fix function
func (s *EdgeFunctionStrategy) UpdateRoleViaEdgeFunction(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	if err := validateRoleWrite(userID, role); err != nil {
		return err
	}
	if s.fixer == nil {
		return fmt.Errorf("role-fix function not configured")
	}
	return s.fixer.FixRole(ctx, userID, role)
}
