package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

func TestTransferInstance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := newFixture(t, db)
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

	inst, _, _ := db.FindOrCreateInstance(ctx, newInstance(f, "2026-10-14", nil))
	if _, err := db.ClaimInstance(ctx, inst.ID, "emp-1", []models.TaskStatus{models.TaskStatusAvailable}, now); err != nil {
		t.Fatalf("ClaimInstance failed: %v", err)
	}

	rec := &models.TransferRecord{TaskID: inst.ID, FromActor: "emp-1", ToActor: "mgr-1", Reason: "end of shift"}
	moved, err := db.TransferInstance(ctx, rec)
	if err != nil {
		t.Fatalf("TransferInstance failed: %v", err)
	}
	if moved.ClaimedBy == nil || *moved.ClaimedBy != "mgr-1" {
		t.Errorf("Expected holder mgr-1, got %v", moved.ClaimedBy)
	}
	if moved.Status != models.TaskStatusClaimed {
		t.Errorf("Expected status to stay claimed, got %s", moved.Status)
	}

	// emp-1 no longer holds the task.
	stale := &models.TransferRecord{TaskID: inst.ID, FromActor: "emp-1", ToActor: "emp-2"}
	if _, err := db.TransferInstance(ctx, stale); !errors.Is(err, ErrStaleStatus) {
		t.Errorf("Expected ErrStaleStatus, got %v", err)
	}

	records, err := db.ListTransfers(ctx, inst.ID)
	if err != nil {
		t.Fatalf("ListTransfers failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 transfer record, got %d", len(records))
	}
	if records[0].FromActor != "emp-1" || records[0].ToActor != "mgr-1" || records[0].Reason != "end of shift" {
		t.Errorf("Unexpected transfer record: %+v", records[0])
	}
}
