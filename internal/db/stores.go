package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

const storeColumns = `id, name, latitude, longitude, geofence_radius_m, timezone, active, created_at, updated_at`

// UpsertStore inserts a store or replaces the fields of an existing one with
// the same ID. If s.ID is empty, a new UUID is generated.
func (db *DB) UpsertStore(ctx context.Context, s *models.Store) error {
	if err := db.upsertStore(ctx, db.DB, s); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) upsertStore(ctx context.Context, exec executor, s *models.Store) error {
	if err := models.Validate(s); err != nil {
		return fmt.Errorf("invalid store: %w", err)
	}
	if (s.Latitude == nil) != (s.Longitude == nil) {
		return fmt.Errorf("invalid store: %w: latitude and longitude must be set together", models.ErrInvalid)
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	now := db.clock()
	query := `
		INSERT INTO stores (` + storeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			geofence_radius_m = excluded.geofence_radius_m,
			timezone = excluded.timezone,
			active = excluded.active,
			updated_at = excluded.updated_at
		RETURNING created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query,
		s.ID, s.Name, s.Latitude, s.Longitude, s.GeofenceRadius, s.Timezone, boolToInt(s.Active),
		formatTime(now), formatTime(now),
	).Scan(timeCol{&s.CreatedAt}, timeCol{&s.UpdatedAt})
	if err != nil {
		return fmt.Errorf("failed to upsert store: %w", err)
	}
	return nil
}

// GetStore retrieves a store by its ID. It returns nil when no store matches.
func (db *DB) GetStore(ctx context.Context, id string) (*models.Store, error) {
	return db.getStore(ctx, db.DB, id)
}

func (db *DB) getStore(ctx context.Context, exec executor, id string) (*models.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE id = ?`
	s, err := scanStore(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	return s, nil
}

func (db *DB) ListStores(ctx context.Context) ([]*models.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores ORDER BY name ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	var stores []*models.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return stores, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStore(row rowScanner) (*models.Store, error) {
	s := &models.Store{}
	var active int
	err := row.Scan(
		&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.GeofenceRadius, &s.Timezone, &active,
		timeCol{&s.CreatedAt}, timeCol{&s.UpdatedAt},
	)
	if err != nil {
		return nil, err
	}
	s.Active = active == 1
	return s, nil
}
