package db

import (
	"context"
	"testing"
	"time"

	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

func TestCheckins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := newFixture(t, db)
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

	ok, err := db.IsCheckedIn(ctx, "emp-1", f.store.ID, now)
	if err != nil {
		t.Fatalf("IsCheckedIn failed: %v", err)
	}
	if ok {
		t.Error("Expected no check-in yet")
	}

	c := &models.Checkin{
		ActorID:     "emp-1",
		StoreID:     f.store.ID,
		CheckedInAt: now,
		ExpiresAt:   now.Add(time.Hour),
		Source:      models.CheckinGeofence,
	}
	if err := db.RecordCheckin(ctx, c); err != nil {
		t.Fatalf("RecordCheckin failed: %v", err)
	}

	if ok, _ := db.IsCheckedIn(ctx, "emp-1", f.store.ID, now.Add(30*time.Minute)); !ok {
		t.Error("Expected a valid check-in within the TTL")
	}
	if ok, _ := db.IsCheckedIn(ctx, "emp-1", f.store.ID, now.Add(2*time.Hour)); ok {
		t.Error("Expected the check-in to expire")
	}

	c.CheckedInAt = now.Add(2 * time.Hour)
	c.ExpiresAt = now.Add(3 * time.Hour)
	c.Source = models.CheckinManual
	if err := db.RecordCheckin(ctx, c); err != nil {
		t.Fatalf("RecordCheckin refresh failed: %v", err)
	}
	got, err := db.GetCheckin(ctx, "emp-1", f.store.ID)
	if err != nil {
		t.Fatalf("GetCheckin failed: %v", err)
	}
	if got.Source != models.CheckinManual || !got.ExpiresAt.Equal(now.Add(3*time.Hour)) {
		t.Errorf("Expected refreshed manual check-in, got %+v", got)
	}
}
