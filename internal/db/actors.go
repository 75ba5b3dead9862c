package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

const actorColumns = `id, name, role, home_store_id, active, created_at`

// UpsertActor inserts or refreshes the local copy of an actor.
func (db *DB) UpsertActor(ctx context.Context, a *models.Actor) error {
	if err := db.upsertActor(ctx, db.DB, a); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) upsertActor(ctx context.Context, exec executor, a *models.Actor) error {
	if err := models.Validate(a); err != nil {
		return fmt.Errorf("invalid actor: %w", err)
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	query := `
		INSERT INTO actors (` + actorColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			home_store_id = excluded.home_store_id,
			active = excluded.active
		RETURNING created_at
	`
	err := exec.QueryRowContext(ctx, query,
		a.ID, a.Name, a.Role, a.HomeStoreID, boolToInt(a.Active), formatTime(db.clock()),
	).Scan(timeCol{&a.CreatedAt})
	if err != nil {
		return fmt.Errorf("failed to upsert actor: %w", err)
	}
	return nil
}

// GetActor retrieves an actor by its ID. It returns nil when no actor matches.
func (db *DB) GetActor(ctx context.Context, id string) (*models.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM actors WHERE id = ?`
	a, err := scanActor(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}
	return a, nil
}

func (db *DB) ListActors(ctx context.Context) ([]*models.Actor, error) {
	query := `SELECT ` + actorColumns + ` FROM actors ORDER BY name ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list actors: %w", err)
	}
	defer rows.Close()

	var actors []*models.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan actor: %w", err)
		}
		actors = append(actors, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return actors, nil
}

func scanActor(row rowScanner) (*models.Actor, error) {
	a := &models.Actor{}
	var active int
	if err := row.Scan(&a.ID, &a.Name, &a.Role, &a.HomeStoreID, &active, timeCol{&a.CreatedAt}); err != nil {
		return nil, err
	}
	a.Active = active == 1
	return a, nil
}
