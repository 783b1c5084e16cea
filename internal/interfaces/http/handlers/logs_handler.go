package handlers

import (
	"context"

	"github.com/camwatch/backend/internal/domain"
	"github.com/gofiber/fiber/v2"
)

const maxLogLimit = 500

// AuditReader lists recent audit entries
type AuditReader interface {
	Recent(ctx context.Context, source string, limit int) ([]domain.AuditEntry, error)
}

// LogsHandler serves the administrative audit log
type LogsHandler struct {
	reader AuditReader
}

// NewLogsHandler creates a new logs handler
func NewLogsHandler(reader AuditReader) *LogsHandler {
	return &LogsHandler{reader: reader}
}

// List returns recent entries, optionally filtered by source
func (h *LogsHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > maxLogLimit {
		limit = maxLogLimit
	}

	entries, err := h.reader.Recent(c.UserContext(), c.Query("source"), limit)
	if err != nil {
		return fail(c, err)
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}

	return c.JSON(fiber.Map{
		"data": entries,
	})
}
