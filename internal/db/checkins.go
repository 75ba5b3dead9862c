package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

// RecordCheckin stores or refreshes the check-in of an actor at a store.
func (db *DB) RecordCheckin(ctx context.Context, c *models.Checkin) error {
	query := `
		INSERT INTO checkins (actor_id, store_id, checked_in_at, expires_at, source)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(actor_id, store_id) DO UPDATE SET
			checked_in_at = excluded.checked_in_at,
			expires_at = excluded.expires_at,
			source = excluded.source
	`
	_, err := db.ExecContext(ctx, query,
		c.ActorID, c.StoreID, formatTime(c.CheckedInAt), formatTime(c.ExpiresAt), c.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to record checkin: %w", err)
	}
	return nil
}

// GetCheckin returns the latest check-in of an actor at a store, or nil.
func (db *DB) GetCheckin(ctx context.Context, actorID, storeID string) (*models.Checkin, error) {
	query := `
		SELECT actor_id, store_id, checked_in_at, expires_at, source
		FROM checkins
		WHERE actor_id = ? AND store_id = ?
	`
	c := &models.Checkin{}
	err := db.QueryRowContext(ctx, query, actorID, storeID).Scan(
		&c.ActorID, &c.StoreID, timeCol{&c.CheckedInAt}, timeCol{&c.ExpiresAt}, &c.Source,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkin: %w", err)
	}
	return c, nil
}

// IsCheckedIn reports whether the actor holds a check-in at the store that is
// still valid at now.
func (db *DB) IsCheckedIn(ctx context.Context, actorID, storeID string, now time.Time) (bool, error) {
	c, err := db.GetCheckin(ctx, actorID, storeID)
	if err != nil {
		return false, err
	}
	return c != nil && c.ValidAt(now), nil
}
