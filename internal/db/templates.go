package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

const templateColumns = `id, title, description, store_id, recurrence_type, recurrence_pattern,
	assignment_rule, assignee_id, requires_photo, required_photos, priority, active,
	created_at, updated_at`

// CreateTemplate inserts a new template. If t.ID is empty, a new UUID is
// generated. The photo requirement is normalized before it is stored.
func (db *DB) CreateTemplate(ctx context.Context, t *models.Template) error {
	if err := db.createTemplate(ctx, db.DB, t, false); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

// UpsertTemplate inserts a template or replaces the content of an existing
// one with the same ID.
func (db *DB) UpsertTemplate(ctx context.Context, t *models.Template) error {
	if err := db.createTemplate(ctx, db.DB, t, true); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) createTemplate(ctx context.Context, exec executor, t *models.Template, upsert bool) error {
	t.NormalizePhotoRequirement()
	if err := models.Validate(t); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	now := formatTime(db.clock())
	query := `
		INSERT INTO templates (` + templateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if upsert {
		query += `
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			store_id = excluded.store_id,
			recurrence_type = excluded.recurrence_type,
			recurrence_pattern = excluded.recurrence_pattern,
			assignment_rule = excluded.assignment_rule,
			assignee_id = excluded.assignee_id,
			requires_photo = excluded.requires_photo,
			required_photos = excluded.required_photos,
			priority = excluded.priority,
			active = excluded.active,
			updated_at = excluded.updated_at
		`
	}
	query += ` RETURNING created_at, updated_at`

	err := exec.QueryRowContext(ctx, query,
		t.ID, t.Title, t.Description, t.StoreID, t.RecurrenceType, t.RecurrencePattern,
		t.AssignmentRule, t.AssigneeID, boolToInt(t.RequiresPhoto), t.RequiredPhotos, t.Priority,
		boolToInt(t.Active), now, now,
	).Scan(timeCol{&t.CreatedAt}, timeCol{&t.UpdatedAt})
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a template by its ID. It returns nil when no
// template matches.
func (db *DB) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = ?`
	t, err := scanTemplate(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

func (db *DB) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates ORDER BY priority DESC, title ASC`
	return db.queryTemplates(ctx, query)
}

// ListTemplatesForStore returns the active templates scheduled for storeID:
// those owned by the store plus the store-agnostic ones.
func (db *DB) ListTemplatesForStore(ctx context.Context, storeID string) ([]*models.Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM templates
		WHERE active = 1 AND (store_id IS NULL OR store_id = ?)
		ORDER BY priority DESC, title ASC
	`
	return db.queryTemplates(ctx, query, storeID)
}

func (db *DB) queryTemplates(ctx context.Context, query string, args ...any) ([]*models.Template, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return templates, nil
}

// UpdateTemplate replaces a template's content. Existing instances keep the
// snapshot they were created with.
func (db *DB) UpdateTemplate(ctx context.Context, t *models.Template) error {
	t.NormalizePhotoRequirement()
	if err := models.Validate(t); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	query := `
		UPDATE templates
		SET title = ?, description = ?, store_id = ?, recurrence_type = ?, recurrence_pattern = ?,
		    assignment_rule = ?, assignee_id = ?, requires_photo = ?, required_photos = ?,
		    priority = ?, active = ?, updated_at = ?
		WHERE id = ?
		RETURNING created_at, updated_at
	`
	err := db.QueryRowContext(ctx, query,
		t.Title, t.Description, t.StoreID, t.RecurrenceType, t.RecurrencePattern,
		t.AssignmentRule, t.AssigneeID, boolToInt(t.RequiresPhoto), t.RequiredPhotos,
		t.Priority, boolToInt(t.Active), formatTime(db.clock()), t.ID,
	).Scan(timeCol{&t.CreatedAt}, timeCol{&t.UpdatedAt})
	if err == sql.ErrNoRows {
		return fmt.Errorf("template not found: %s", t.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	t := &models.Template{}
	var requiresPhoto, active int
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.StoreID, &t.RecurrenceType, &t.RecurrencePattern,
		&t.AssignmentRule, &t.AssigneeID, &requiresPhoto, &t.RequiredPhotos, &t.Priority, &active,
		timeCol{&t.CreatedAt}, timeCol{&t.UpdatedAt},
	)
	if err != nil {
		return nil, err
	}
	t.RequiresPhoto = requiresPhoto == 1
	t.Active = active == 1
	return t, nil
}
