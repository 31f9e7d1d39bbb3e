package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domerrors "github.com/garyellow/messenger-bot-go/internal/errors"
)

// SaveProfile inserts or updates a cached profile and stamps cached_at.
func (db *DB) SaveProfile(ctx context.Context, p *Profile) error {
	if p == nil || p.UserID == "" {
		return domerrors.NewValidationError("user_id", "must not be empty")
	}
	query := `
		INSERT INTO profiles (user_id, first_name, last_name, profile_pic, locale, timezone, gender, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			profile_pic = excluded.profile_pic,
			locale = excluded.locale,
			timezone = excluded.timezone,
			gender = excluded.gender,
			cached_at = excluded.cached_at
	`
	start := time.Now()
	p.CachedAt = start.Unix()
	_, err := db.conn.ExecContext(ctx, query,
		p.UserID, p.FirstName, p.LastName, p.ProfilePic, p.Locale, p.Timezone, p.Gender, p.CachedAt)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save profile",
			"user_id", p.UserID,
			"error", err)
		return fmt.Errorf("failed to save profile: %w", err)
	}

	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "SaveProfile",
			"duration_ms", duration.Milliseconds(),
			"user_id", p.UserID)
	}
	return nil
}

// GetProfile returns the cached profile for userID. Entries older than the
// cache TTL are treated as missing; both cases return ErrNotFound.
func (db *DB) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	query := `
		SELECT user_id, first_name, last_name, profile_pic, locale, timezone, gender, cached_at
		FROM profiles WHERE user_id = ? AND cached_at > ?
	`
	var p Profile
	err := db.conn.QueryRowContext(ctx, query, userID, db.getTTLTimestamp()).Scan(
		&p.UserID,
		&p.FirstName,
		&p.LastName,
		&p.ProfilePic,
		&p.Locale,
		&p.Timezone,
		&p.Gender,
		&p.CachedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, domerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &p, nil
}

// DeleteExpiredProfiles removes profiles cached before now-ttl.
func (db *DB) DeleteExpiredProfiles(ctx context.Context, ttl time.Duration) (int64, error) {
	query := `DELETE FROM profiles WHERE cached_at < ?`
	expiryTime := time.Now().Add(-ttl).Unix()

	result, err := db.conn.ExecContext(ctx, query, expiryTime)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired profiles: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for profiles: %w", err)
	}
	return rowsAffected, nil
}

// CountProfiles returns the number of unexpired cached profiles
func (db *DB) CountProfiles(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE cached_at > ?`, db.getTTLTimestamp()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}
