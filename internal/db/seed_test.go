package db

import (
	"context"
	"strings"
	"testing"

	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

const seedYAML = `
stores:
  - id: store-1
    name: Main Street
    latitude: 33.0
    longitude: -86.0
    geofence_radius_m: 50
    timezone: America/Chicago
  - id: store-2
    name: Closed Branch
    active: false
actors:
  - id: emp-1
    name: Ana
    role: employee
    home_store_id: store-1
  - id: admin-1
    name: Root
    role: admin
templates:
  - id: clean-floor
    title: Clean Floor
    recurrence_type: daily
    assignment_rule: store_wide
    requires_photo: true
    required_photos: 0
    priority: 5
  - id: count-till
    title: Count Till
    store_id: store-1
    recurrence_type: weekly
    recurrence_pattern: Mondays
    assignment_rule: manager_only
`

func TestImportSeed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	res, err := db.ImportSeed(ctx, strings.NewReader(seedYAML))
	if err != nil {
		t.Fatalf("ImportSeed failed: %v", err)
	}
	if res.Stores != 2 || res.Actors != 2 || res.Templates != 2 {
		t.Errorf("Unexpected seed result: %+v", res)
	}

	store, _ := db.GetStore(ctx, "store-1")
	if store == nil || !store.Active || store.GeofenceRadius != 50 || store.Timezone != "America/Chicago" {
		t.Errorf("Unexpected store: %+v", store)
	}
	closed, _ := db.GetStore(ctx, "store-2")
	if closed == nil || closed.Active {
		t.Errorf("Expected inactive store-2, got %+v", closed)
	}

	tmpl, _ := db.GetTemplate(ctx, "clean-floor")
	if tmpl == nil || tmpl.RequiredPhotos != 1 || !tmpl.Active {
		t.Errorf("Expected normalized active template, got %+v", tmpl)
	}

	admin, _ := db.GetActor(ctx, "admin-1")
	if admin == nil || admin.Role != models.RoleAdmin {
		t.Errorf("Expected admin actor, got %+v", admin)
	}

	// Re-importing updates in place.
	if _, err := db.ImportSeed(ctx, strings.NewReader(seedYAML)); err != nil {
		t.Fatalf("Second ImportSeed failed: %v", err)
	}
	all, _ := db.ListTemplates(ctx)
	if len(all) != 2 {
		t.Errorf("Expected 2 templates after re-import, got %d", len(all))
	}
}

func TestImportSeedRejectsUnknownKeys(t *testing.T) {
	db := newTestDB(t)

	_, err := db.ImportSeed(context.Background(), strings.NewReader("stores:\n  - id: s\n    name: S\n    colour: red\n"))
	if err == nil {
		t.Error("Expected an error for unknown key")
	}
}

func TestImportSeedIsAtomic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	doc := `
stores:
  - id: store-1
    name: Main Street
actors:
  - id: bad
    name: Nobody
    role: owner
`
	if _, err := db.ImportSeed(ctx, strings.NewReader(doc)); err == nil {
		t.Fatal("Expected invalid role to fail the import")
	}
	store, _ := db.GetStore(ctx, "store-1")
	if store != nil {
		t.Error("Expected the store insert to roll back")
	}
}
