package handlers

import (
	"time"

	"github.com/camwatch/backend/internal/application"
	"github.com/camwatch/backend/internal/domain"
	"github.com/gofiber/fiber/v2"
)

const maxRoleWait = 55 * time.Second

// RoleHandler serves role updates and the live role of the caller
type RoleHandler struct {
	roles  *application.RoleService
	source *application.RoleSource
	hub    *application.SubscriptionHub
}

// NewRoleHandler creates a new role handler
func NewRoleHandler(roles *application.RoleService, source *application.RoleSource, hub *application.SubscriptionHub) *RoleHandler {
	return &RoleHandler{roles: roles, source: source, hub: hub}
}

// UpdateRoleRequest represents a role change
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// UpdateUserRole changes the role of the user in the path
func (h *RoleHandler) UpdateUserRole(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return fail(c, err)
	}
	userID, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	var req UpdateRoleRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return fail(c, err)
	}

	if err := h.roles.UpdateUserRoleWithTimeout(c.UserContext(), actor, userID, role); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user_id": userID,
			"role":    role,
		},
	})
}

// MyRole returns the caller's current role. With known set, the request
// waits up to wait for the role to differ from known before answering.
func (h *RoleHandler) MyRole(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return fail(c, err)
	}

	known := c.Query("known")
	wait, err := time.ParseDuration(c.Query("wait", "0s"))
	if err != nil || wait < 0 {
		return fail(c, fiber.NewError(fiber.StatusBadRequest, "invalid wait"))
	}
	if wait > maxRoleWait {
		wait = maxRoleWait
	}

	sub, err := h.hub.Subscribe(c.UserContext(), p.UserID)
	if err != nil {
		return fail(c, err)
	}
	defer sub.Close()

	role := sub.Current()
	if known != "" && string(role) == known && wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case role = <-sub.Updates():
		case <-timer.C:
		case <-c.UserContext().Done():
		}
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"role":    role,
			"changed": known != "" && string(role) != known,
		},
	})
}

// RefreshMyRole re-reads the caller's role from the store, subject to the
// fetch throttle, and pushes it to every open session.
func (h *RoleHandler) RefreshMyRole(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return fail(c, err)
	}

	role, _, err := h.source.Fetch(c.UserContext(), p.UserID)
	if err != nil {
		return fail(c, err)
	}
	if err := h.hub.RefreshSession(c.UserContext(), p.UserID); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"role": role,
		},
	})
}
