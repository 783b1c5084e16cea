package handlers

import (
	"github.com/camwatch/backend/internal/application"
	"github.com/gofiber/fiber/v2"
)

// SettingsHandler handles HTTP requests for settings
type SettingsHandler struct {
	service *application.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(service *application.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// Get returns current settings
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	settings, err := h.service.GetSettings(c.UserContext())
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": settings,
	})
}

// UpdateStorage replaces the storage configuration
func (h *SettingsHandler) UpdateStorage(c *fiber.Ctx) error {
	var req application.StorageSettings
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	settings, err := h.service.UpdateStorage(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": settings,
	})
}

// UpdateRecording replaces the recording configuration
func (h *SettingsHandler) UpdateRecording(c *fiber.Ctx) error {
	var req application.RecordingSettings
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	settings, err := h.service.UpdateRecording(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": settings,
	})
}
