package middleware

import (
	"context"
	"strings"

	"github.com/camwatch/backend/internal/application"
	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const principalKey = "principal"

// RoleResolver returns the live role for a user
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID uuid.UUID) (domain.Role, error)
}

// PermissionChecker decides whether a principal holds a permission
type PermissionChecker interface {
	HasElevatedPermission(ctx context.Context, principal domain.Principal, perm domain.Permission) bool
}

// AuthMiddleware handles JWT authentication and permission checks
type AuthMiddleware struct {
	authService *application.AuthService
	roles       RoleResolver
	permissions PermissionChecker
	log         zerolog.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authService *application.AuthService, roles RoleResolver, permissions PermissionChecker) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		roles:       roles,
		permissions: permissions,
		log:         logger.Component("http-auth"),
	}
}

// Authenticate validates the JWT and attaches the principal with its live role
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization header",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authorization header format",
			})
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		principal := claims.Principal(token)
		if m.roles != nil {
			role, err := m.roles.ResolveRole(c.UserContext(), principal.UserID)
			if err != nil {
				// keep the issue-time role; permission checks resolve again
				m.log.Warn().Err(err).Str("user_id", principal.UserID.String()).Msg("Live role lookup failed")
			} else {
				principal.Role = role
			}
		}

		c.Locals(principalKey, principal)
		c.Locals("user_id", principal.UserID)
		c.Locals("user_email", principal.Email)
		c.Locals("user_role", principal.Role)
		c.SetUserContext(domain.ContextWithPrincipal(c.UserContext(), principal))

		return c.Next()
	}
}

// RequirePermission rejects callers that do not hold perm
func (m *AuthMiddleware) RequirePermission(perm domain.Permission) fiber.Handler {
	if !perm.Known() {
		panic("middleware: unknown permission " + string(perm))
	}
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		if !m.permissions.HasElevatedPermission(c.UserContext(), principal, perm) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient permissions",
			})
		}

		return c.Next()
	}
}

// PrincipalFrom returns the principal stored by Authenticate
func PrincipalFrom(c *fiber.Ctx) (domain.Principal, bool) {
	p, ok := c.Locals(principalKey).(domain.Principal)
	return p, ok
}
