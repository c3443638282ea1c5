package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/pastebin/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all pastebin schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL DEFAULT '',
					password_hash CHAR(128) NOT NULL,
					avatar_kind VARCHAR(16) NOT NULL DEFAULT 'none',
					avatar_url TEXT NOT NULL DEFAULT '',
					remember_me BOOLEAN NOT NULL DEFAULT FALSE,
					joined_at BIGINT NOT NULL,
					session_digest CHAR(64),
					secure_digest CHAR(64),
					secure_expires_at BIGINT
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_users_name_lower ON users(LOWER(name));
				CREATE UNIQUE INDEX IF NOT EXISTS idx_users_session_digest ON users(session_digest);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_users_secure_digest ON users(secure_digest);
				CREATE INDEX IF NOT EXISTS idx_users_secure_expires_at ON users(secure_expires_at)
					WHERE secure_digest IS NOT NULL;
			`,
		},
		{
			Version:     2,
			Description: "Create api_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_tokens (
					digest CHAR(64) PRIMARY KEY,
					ident VARCHAR(32) NOT NULL,
					owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					mask INTEGER NOT NULL CHECK (mask >= 0 AND mask <= 15),
					created_at BIGINT NOT NULL,
					UNIQUE(owner_id, ident)
				);

				CREATE INDEX IF NOT EXISTS idx_api_tokens_owner_id ON api_tokens(owner_id);
			`,
		},
		{
			Version:     3,
			Description: "Create pastes table",
			SQL: `
				CREATE TABLE IF NOT EXISTS pastes (
					id VARCHAR(64) PRIMARY KEY,
					creator_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					visibility SMALLINT NOT NULL CHECK (visibility BETWEEN 1 AND 3),
					title VARCHAR(255) NOT NULL,
					content TEXT NOT NULL,
					syntax VARCHAR(64) NOT NULL DEFAULT 'plaintext',
					tags TEXT NOT NULL DEFAULT '',
					folder TEXT NOT NULL DEFAULT '',
					created_at BIGINT NOT NULL,
					modified_at BIGINT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_pastes_creator_id ON pastes(creator_id);
				CREATE INDEX IF NOT EXISTS idx_pastes_visibility_created ON pastes(visibility, created_at DESC);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	if logger == nil {
		logger = observability.NopLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pastebin_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM pastebin_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		log := logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})
		log.Info("running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO pastebin_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		log.Info("migration completed")
	}

	return nil
}
