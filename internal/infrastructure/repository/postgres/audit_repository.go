package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camwatch/backend/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository writes audit entries to system_logs
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append stores one audit entry
func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO system_logs (level, source, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.Exec(ctx, query, string(entry.Level), entry.Source, entry.Message, details, time.Now())
	return err
}

// Recent returns the newest audit entries, newest first. An empty source
// matches every source.
func (r *AuditRepository) Recent(ctx context.Context, source string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT level, source, message, details
		FROM system_logs WHERE ($1 = '' OR source = $1)
		ORDER BY created_at DESC LIMIT $2
	`, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			entry   domain.AuditEntry
			level   string
			details []byte
		)
		if err := rows.Scan(&level, &entry.Source, &entry.Message, &details); err != nil {
			return nil, err
		}
		entry.Level = domain.AuditLevel(level)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
