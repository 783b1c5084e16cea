package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/camwatch/backend/internal/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaTables are the tables Migrate creates
var schemaTables = []string{"users", "user_roles", "cameras", "camera_access", "system_logs", "settings"}

// schemaSQL only creates what is missing and never drops data
const schemaSQL = `
	CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT false,
		mfa_required BOOLEAN NOT NULL DEFAULT false,
		mfa_enrolled BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users(lower(email));

	-- one role per user; the value is checked in the application so unknown
	-- legacy values can still be read and migrated
	CREATE TABLE IF NOT EXISTS user_roles (
		user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		role VARCHAR(50) NOT NULL DEFAULT 'user',
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		touched_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_user_roles_role ON user_roles(role);

	CREATE TABLE IF NOT EXISTS cameras (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(255) NOT NULL,
		location VARCHAR(255) NOT NULL DEFAULT '',
		stream_url TEXT NOT NULL,
		username VARCHAR(255) NOT NULL DEFAULT '',
		password VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(50) NOT NULL DEFAULT 'offline',
		recording BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_cameras_status ON cameras(status);

	CREATE TABLE IF NOT EXISTS camera_access (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		camera_id UUID NOT NULL REFERENCES cameras(id) ON DELETE CASCADE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		PRIMARY KEY (user_id, camera_id)
	);

	CREATE INDEX IF NOT EXISTS idx_camera_access_camera_id ON camera_access(camera_id);

	CREATE TABLE IF NOT EXISTS system_logs (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		level VARCHAR(20) NOT NULL,
		source VARCHAR(100) NOT NULL,
		message TEXT NOT NULL,
		details JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_system_logs_source_created_at ON system_logs(source, created_at DESC);

	CREATE TABLE IF NOT EXISTS settings (
		key VARCHAR(255) PRIMARY KEY,
		value JSONB NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE OR REPLACE FUNCTION update_updated_at_column()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ language 'plpgsql';

	DROP TRIGGER IF EXISTS update_users_updated_at ON users;
	CREATE TRIGGER update_users_updated_at BEFORE UPDATE ON users
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column();

	DROP TRIGGER IF EXISTS update_cameras_updated_at ON cameras;
	CREATE TRIGGER update_cameras_updated_at BEFORE UPDATE ON cameras
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column();

	DROP TRIGGER IF EXISTS update_settings_updated_at ON settings;
	CREATE TRIGGER update_settings_updated_at BEFORE UPDATE ON settings
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column();
`

// Migrate brings the schema up to date without touching existing rows
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log := logger.Component("migrate")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var tableCount int
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_name = ANY($1)
	`, schemaTables).Scan(&tableCount)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to check existing tables, will attempt to create schema")
		tableCount = 0
	}

	if tableCount == len(schemaTables) {
		log.Info().Msg("Database schema already exists")
		return nil
	}

	log.Info().Int("existing_tables", tableCount).Msg("Creating database schema...")
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	log.Info().Msg("Database schema created successfully")
	return nil
}
