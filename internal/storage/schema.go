package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := createProfilesTable(ctx, db); err != nil {
		return err
	}
	return createSessionArchiveTable(ctx, db)
}

// createProfilesTable caches User Profile API responses keyed by page-scoped id.
func createProfilesTable(ctx context.Context, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			profile_pic TEXT NOT NULL DEFAULT '',
			locale TEXT NOT NULL DEFAULT '',
			timezone REAL NOT NULL DEFAULT 0,
			gender TEXT NOT NULL DEFAULT '',
			cached_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_profiles_cached_at ON profiles(cached_at);
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}
	return nil
}

func createSessionArchiveTable(ctx context.Context, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS session_archive (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			state TEXT NOT NULL,
			replaced INTEGER NOT NULL DEFAULT 0,
			snapshot TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL,
			archived_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_session_archive_user ON session_archive(user_id, ended_at DESC);
		CREATE INDEX IF NOT EXISTS idx_session_archive_ended_at ON session_archive(ended_at);
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create session_archive table: %w", err)
	}
	return nil
}
