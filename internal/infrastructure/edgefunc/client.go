// Package edgefunc calls the privileged role functions over HTTP on behalf
// of the acting principal.
package edgefunc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single function call
const DefaultTimeout = 8 * time.Second

const (
	fixRolePath      = "/functions/fix-user-role"
	isSuperadminPath = "/rpc/is-superadmin"
)

var ErrFunctionFailed = errors.New("function call failed")

type fixRoleRequest struct {
	Action string    `json:"action"`
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role"`
}

type fixRoleResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type superadminResponse struct {
	Data  bool   `json:"data"`
	Error string `json:"error"`
}

// Client implements domain.RoleFixer and domain.SuperadminChecker against
// the role functions mounted under baseURL.
type Client struct {
	baseURL string
	timeout time.Duration
	log     zerolog.Logger
}

// NewClient creates a function client. baseURL is the API prefix, e.g.
// http://localhost:8080/api/v1.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		log:     logger.Component("edgefunc"),
	}
}

// FixRole asks the role-fix function to write role for userID. The bearer
// token of the principal in ctx is forwarded.
func (c *Client) FixRole(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	var resp fixRoleResponse
	code, err := c.post(ctx, fixRolePath, fixRoleRequest{Action: "fix", UserID: userID, Role: role.String()}, &resp)
	if err != nil {
		return err
	}
	if code >= fiber.StatusBadRequest || !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		if msg == "" {
			msg = "unsuccessful response"
		}
		return fmt.Errorf("%w: role-fix returned %d: %s", ErrFunctionFailed, code, msg)
	}
	return nil
}

// IsSuperadmin asks the superadmin-check function about principal
func (c *Client) IsSuperadmin(ctx context.Context, principal domain.Principal) (bool, error) {
	ctx = domain.ContextWithPrincipal(ctx, principal)

	var resp superadminResponse
	code, err := c.post(ctx, isSuperadminPath, struct{}{}, &resp)
	if err != nil {
		return false, err
	}
	if code >= fiber.StatusBadRequest {
		return false, fmt.Errorf("%w: is-superadmin returned %d: %s", ErrFunctionFailed, code, resp.Error)
	}
	return resp.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(c.baseURL + path)
	agent.Timeout(timeout)
	agent.JSON(body)
	if p, ok := domain.PrincipalFromContext(ctx); ok && p.Token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+p.Token)
	}

	code, raw, errs := agent.Struct(out)
	if len(errs) > 0 {
		// a non-JSON body still carries a usable status code
		if code >= fiber.StatusBadRequest {
			return 0, fmt.Errorf("%w: %s returned %d: %s", ErrFunctionFailed, path, code, strings.TrimSpace(string(raw)))
		}
		c.log.Warn().Errs("errors", errs).Str("path", path).Msg("Function call failed")
		return 0, fmt.Errorf("%w: %s: %v", ErrFunctionFailed, path, errors.Join(errs...))
	}
	return code, nil
}
