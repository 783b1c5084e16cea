package domain

import "context"

// AuditLevel classifies an audit entry
type AuditLevel string

const (
	AuditLevelInfo    AuditLevel = "info"
	AuditLevelWarning AuditLevel = "warning"
	AuditLevelError   AuditLevel = "error"
)

// AuditEntry is an append-only record of an administrative action
type AuditEntry struct {
	Level   AuditLevel             `json:"level"`
	Source  string                 `json:"source"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// AuditSink receives audit entries
type AuditSink interface {
	Append(ctx context.Context, entry AuditEntry) error
}
