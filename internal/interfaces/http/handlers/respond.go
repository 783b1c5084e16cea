package handlers

import (
	"errors"
	"strings"

	"github.com/camwatch/backend/internal/application"
	"github.com/camwatch/backend/internal/domain"
	"github.com/camwatch/backend/internal/interfaces/http/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = validator.New()

// parseBody decodes and validates the request body. Validation failures are
// returned as a single 400 message listing the offending fields.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fe.Field()+" failed "+fe.Tag())
			}
			return fiber.NewError(fiber.StatusBadRequest, "validation failed: "+strings.Join(fields, ", "))
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// parseID reads a uuid route parameter
func parseID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func principal(c *fiber.Ctx) (domain.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return domain.Principal{}, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return p, nil
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, application.ErrMissingUserID),
		errors.Is(err, application.ErrUnknownAction),
		errors.Is(err, application.ErrInvalidSettings),
		errors.Is(err, application.ErrInvalidCamera),
		errors.Is(err, application.ErrCannotDeleteSelf):
		return fiber.StatusBadRequest
	case errors.Is(err, application.ErrInvalidCredentials),
		errors.Is(err, application.ErrInvalidToken),
		errors.Is(err, application.ErrTokenExpired):
		return fiber.StatusUnauthorized
	case errors.Is(err, application.ErrPermissionDenied),
		errors.Is(err, application.ErrSelfDemotion):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrCameraNotFound),
		errors.Is(err, domain.ErrRoleRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, application.ErrRoleUpdateTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, application.ErrRoleUpdateFailed):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// fail writes the error envelope for err
func fail(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	msg := err.Error()
	if errors.As(err, &fe) {
		msg = fe.Message
	}
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": msg,
	})
}
