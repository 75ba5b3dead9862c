package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

const photoColumns = `id, task_id, item_ref, uploader_id, latitude, longitude, distance_m, content_ref, created_at`

// AppendPhoto records an attachment and bumps the task's uploaded count in
// one transaction. It fails with ErrStaleStatus when the task is no longer
// open.
func (db *DB) AppendPhoto(ctx context.Context, p *models.PhotoAttachment) error {
	if p.ContentRef == "" {
		return fmt.Errorf("invalid photo: %w: content_ref is required", models.ErrInvalid)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := db.clock()
	p.CreatedAt = now

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE task_instances
			SET uploaded_photos = uploaded_photos + 1, updated_at = ?
			WHERE id = ? AND status NOT IN ('completed', 'cancelled')
		`, formatTime(now), p.TaskID)
		if err != nil {
			return fmt.Errorf("failed to increment photo count: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrStaleStatus
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO photo_attachments (`+photoColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.TaskID, p.ItemRef, p.UploaderID, p.Latitude, p.Longitude, p.DistanceMeters,
			p.ContentRef, formatTime(p.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert photo attachment: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

// CountPhotos returns how many attachments exist for a task.
func (db *DB) CountPhotos(ctx context.Context, taskID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photo_attachments WHERE task_id = ?`, taskID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count photos: %w", err)
	}
	return count, nil
}

// ListPhotos returns a task's attachments in upload order.
func (db *DB) ListPhotos(ctx context.Context, taskID string) ([]*models.PhotoAttachment, error) {
	query := `SELECT ` + photoColumns + ` FROM photo_attachments WHERE task_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []*models.PhotoAttachment
	for rows.Next() {
		p := &models.PhotoAttachment{}
		err := rows.Scan(
			&p.ID, &p.TaskID, &p.ItemRef, &p.UploaderID, &p.Latitude, &p.Longitude, &p.DistanceMeters,
			&p.ContentRef, timeCol{&p.CreatedAt},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return photos, nil
}
