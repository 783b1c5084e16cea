package handlers

import (
	"github.com/camwatch/backend/internal/application"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication
type AuthHandler struct {
	service     *application.AuthService
	permissions *application.PermissionResolver
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *application.AuthService, permissions *application.PermissionResolver) *AuthHandler {
	return &AuthHandler{service: service, permissions: permissions}
}

// LoginRequest represents login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RefreshRequest represents token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Login authenticates a user
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	tokens, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": tokens,
	})
}

// Logout invalidates the current session
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	// Tokens are stateless; the client drops them
	return c.JSON(fiber.Map{
		"message": "logged out",
	})
}

// Refresh generates new token pair
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	tokens, err := h.service.RefreshToken(c.UserContext(), req.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid or expired refresh token",
		})
	}

	return c.JSON(fiber.Map{
		"data": tokens,
	})
}

// Me returns the current user with the permissions of their live role
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return fail(c, err)
	}

	user, err := h.service.GetCurrentUser(c.UserContext(), p)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user":        user,
			"permissions": h.permissions.Permissions(user.Role),
		},
	})
}
