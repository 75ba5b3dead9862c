package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

// TransferInstance hands a held instance from rec.FromActor to rec.ToActor and
// writes the transfer record in the same transaction. Status is unchanged.
func (db *DB) TransferInstance(ctx context.Context, rec *models.TransferRecord) (*models.TaskInstance, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = db.clock()

	var inst *models.TaskInstance
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		inst, err = db.casUpdate(ctx, tx, rec.TaskID,
			casGuard{
				from:   []models.TaskStatus{models.TaskStatusClaimed, models.TaskStatusInProgress},
				holder: rec.FromActor,
			},
			goqu.Record{"claimed_by": rec.ToActor},
		)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO transfer_records (id, task_id, from_actor, to_actor, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.TaskID, rec.FromActor, rec.ToActor, rec.Reason, formatTime(rec.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert transfer record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	db.triggerChange(ctx)
	return inst, nil
}

// ListTransfers returns the transfer history of a task, oldest first.
func (db *DB) ListTransfers(ctx context.Context, taskID string) ([]*models.TransferRecord, error) {
	query := `
		SELECT id, task_id, from_actor, to_actor, reason, created_at
		FROM transfer_records
		WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var records []*models.TransferRecord
	for rows.Next() {
		r := &models.TransferRecord{}
		if err := rows.Scan(&r.ID, &r.TaskID, &r.FromActor, &r.ToActor, &r.Reason, timeCol{&r.CreatedAt}); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}
