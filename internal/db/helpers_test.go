package db

import (
	"context"
	"testing"
	"time"

	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}
	return db
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	store    *models.Store
	employee *models.Actor
	manager  *models.Actor
	template *models.Template
}

func newFixture(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()

	store := &models.Store{
		ID:             "store-1",
		Name:           "Main Street",
		Latitude:       ptr(33.0),
		Longitude:      ptr(-86.0),
		GeofenceRadius: 50,
		Timezone:       "America/Chicago",
		Active:         true,
	}
	if err := db.UpsertStore(ctx, store); err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	employee := &models.Actor{ID: "emp-1", Name: "Ana", Role: models.RoleEmployee, HomeStoreID: ptr("store-1"), Active: true}
	manager := &models.Actor{ID: "mgr-1", Name: "Ben", Role: models.RoleManager, HomeStoreID: ptr("store-1"), Active: true}
	for _, a := range []*models.Actor{employee, manager} {
		if err := db.UpsertActor(ctx, a); err != nil {
			t.Fatalf("Failed to create actor: %v", err)
		}
	}

	tmpl := &models.Template{
		Title:          "Clean Floor",
		RecurrenceType: models.RecurrenceDaily,
		AssignmentRule: models.AssignStoreWide,
		RequiresPhoto:  true,
		Priority:       5,
		Active:         true,
	}
	if err := db.CreateTemplate(ctx, tmpl); err != nil {
		t.Fatalf("Failed to create template: %v", err)
	}

	return fixture{store: store, employee: employee, manager: manager, template: tmpl}
}

func newInstance(f fixture, period string, due *time.Time) *models.TaskInstance {
	return &models.TaskInstance{
		TemplateID:     ptr(f.template.ID),
		StoreID:        f.store.ID,
		PeriodKey:      period,
		Title:          f.template.Title,
		AssignmentRule: f.template.AssignmentRule,
		Status:         models.TaskStatusAvailable,
		Priority:       f.template.Priority,
		ScheduledAt:    time.Date(2026, 10, 14, 5, 0, 0, 0, time.UTC),
		DueAt:          due,
		RequiredPhotos: f.template.RequiredPhotos,
	}
}
