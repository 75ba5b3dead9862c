package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sunny-dsa/shiftcheck/internal/db"
	"github.com/sunny-dsa/shiftcheck/internal/events"
	"github.com/sunny-dsa/shiftcheck/internal/geofence"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

// 10:00 in Chicago on a Wednesday.
var testStart = time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	t     *testing.T
	ctx   context.Context
	db    *db.DB
	clock *fakeClock
	bus   *events.Bus
	inst  *Instantiator
	mgr   *Manager

	store *models.Store
	tmpl  *models.Template

	ana *models.Actor // employee
	cam *models.Actor // employee
	ben *models.Actor // manager
	dee *models.Actor // admin

	onSite models.Coordinate
	near   models.Coordinate
	far    models.Coordinate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Init(ctx))

	clock := &fakeClock{now: testStart}
	database.SetClock(clock.Now)

	bus := events.NewBus(512)
	t.Cleanup(bus.Close)

	opts := Options{Events: bus, Clock: clock.Now, NearMultiplier: 1.5}
	e := &testEnv{
		t:     t,
		ctx:   ctx,
		db:    database,
		clock: clock,
		bus:   bus,
		inst:  NewInstantiator(database, opts),
		mgr:   NewManager(database, opts),
	}

	e.store = &models.Store{
		ID:             "store-1",
		Name:           "Main Street",
		Latitude:       ptr(33.0),
		Longitude:      ptr(-86.0),
		GeofenceRadius: 50,
		Timezone:       "America/Chicago",
		Active:         true,
	}
	require.NoError(t, database.UpsertStore(ctx, e.store))

	center := *e.store.Center()
	e.onSite = geofence.Offset(center, 40, 90)
	e.near = geofence.Offset(center, 60, 180)
	e.far = geofence.Offset(center, 500, 0)

	e.ana = e.addActor("emp-1", "Ana", models.RoleEmployee)
	e.cam = e.addActor("emp-2", "Cam", models.RoleEmployee)
	e.ben = e.addActor("mgr-1", "Ben", models.RoleManager)
	e.dee = e.addActor("adm-1", "Dee", models.RoleAdmin)

	e.tmpl = e.addTemplate(&models.Template{
		Title:          "Clean Floor",
		RecurrenceType: models.RecurrenceDaily,
		AssignmentRule: models.AssignStoreWide,
		RequiresPhoto:  true,
		Priority:       5,
	})
	return e
}

func (e *testEnv) addActor(id, name string, role models.Role) *models.Actor {
	e.t.Helper()
	a := &models.Actor{ID: id, Name: name, Role: role, HomeStoreID: ptr("store-1"), Active: true}
	require.NoError(e.t, e.db.UpsertActor(e.ctx, a))
	return a
}

func (e *testEnv) addTemplate(tmpl *models.Template) *models.Template {
	e.t.Helper()
	tmpl.Active = true
	require.NoError(e.t, e.db.CreateTemplate(e.ctx, tmpl))
	return tmpl
}

// ensure returns today's instance of tmpl at the main store.
func (e *testEnv) ensure(tmpl *models.Template) *models.TaskInstance {
	e.t.Helper()
	inst, _, err := e.inst.EnsureInstance(e.ctx, tmpl.ID, e.store.ID, time.Time{})
	require.NoError(e.t, err)
	return inst
}

// claimed returns a fresh instance of tmpl held by actor.
func (e *testEnv) claimed(tmpl *models.Template, actor *models.Actor) *models.TaskInstance {
	e.t.Helper()
	inst, err := e.mgr.Claim(e.ctx, e.ensure(tmpl).ID, actor.ID, &e.onSite)
	require.NoError(e.t, err)
	return inst
}

func (e *testEnv) upload(taskID string, actor *models.Actor, ref string) {
	e.t.Helper()
	_, err := e.mgr.UploadPhoto(e.ctx, UploadRequest{
		TaskID:     taskID,
		ActorID:    actor.ID,
		ContentRef: ref,
		Coordinate: &e.onSite,
	})
	require.NoError(e.t, err)
}

func (e *testEnv) eventTypes() []events.EventType {
	var out []events.EventType
	for _, ev := range e.bus.History(0) {
		out = append(out, ev.Type)
	}
	return out
}

func listFilter(storeID string) db.InstanceFilter {
	return db.InstanceFilter{StoreID: storeID}
}

func ptr[T any](v T) *T { return &v }
