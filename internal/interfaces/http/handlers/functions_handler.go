package handlers

import (
	"github.com/camwatch/backend/internal/application"
	"github.com/camwatch/backend/internal/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// FunctionsHandler serves the privileged role and user management functions
type FunctionsHandler struct {
	roleFix *application.RoleFixService
	users   *application.UserAdminService
}

// NewFunctionsHandler creates a new functions handler
func NewFunctionsHandler(roleFix *application.RoleFixService, users *application.UserAdminService) *FunctionsHandler {
	return &FunctionsHandler{roleFix: roleFix, users: users}
}

// UserActionRequest is the get-all-users PUT payload
type UserActionRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
	Action string    `json:"action" validate:"required,oneof=update_role toggle_mfa_requirement revoke_mfa"`
	Role   string    `json:"role" validate:"required_if=Action update_role"`
}

// DeleteUserRequest is the get-all-users DELETE payload
type DeleteUserRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
}

// FixUserRole runs the role-fix function. Failures keep the function's
// {success, error} shape so callers can read them uniformly.
func (h *FunctionsHandler) FixUserRole(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return fail(c, err)
	}

	var req application.RoleFixRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(application.RoleFixResponse{
			Error: "invalid request body",
		})
	}

	resp, err := h.roleFix.Handle(c.UserContext(), caller, req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(application.RoleFixResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(resp)
}

// IsSuperadmin reports whether the caller is a superadmin by the store
func (h *FunctionsHandler) IsSuperadmin(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return fail(c, err)
	}

	ok, err := h.roleFix.IsSuperadmin(c.UserContext(), caller)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": ok,
	})
}

// ListUsers returns every user with their resolved role
func (h *FunctionsHandler) ListUsers(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return fail(c, err)
	}

	users, err := h.users.ListUsers(c.UserContext(), caller)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"users": users,
	})
}

// UserAction applies a role or MFA change to one user
func (h *FunctionsHandler) UserAction(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return fail(c, err)
	}

	var req UserActionRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	ctx := c.UserContext()
	switch req.Action {
	case application.UserActionUpdateRole:
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			return fail(c, err)
		}
		if err := h.users.UpdateRole(ctx, caller, req.UserID, role); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"role":    role,
		})
	case application.UserActionToggleMFARequirement:
		user, err := h.users.ToggleMFARequirement(ctx, caller, req.UserID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"user":    user,
		})
	case application.UserActionRevokeMFA:
		user, err := h.users.RevokeMFA(ctx, caller, req.UserID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"user":    user,
		})
	}

	return fail(c, application.ErrUnknownAction)
}

// DeleteUser removes a user with its role record and camera grants
func (h *FunctionsHandler) DeleteUser(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return fail(c, err)
	}

	var req DeleteUserRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	if err := h.users.DeleteUser(c.UserContext(), caller, req.UserID); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}
