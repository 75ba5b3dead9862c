package tasks

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunny-dsa/shiftcheck/internal/db"
	"github.com/sunny-dsa/shiftcheck/internal/events"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

func TestCleanFloorScenario(t *testing.T) {
	e := newTestEnv(t)

	i1 := e.ensure(e.tmpl)
	assert.Equal(t, models.TaskStatusAvailable, i1.Status)

	claimed, err := e.mgr.Claim(e.ctx, i1.ID, e.ana.ID, &e.onSite)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusClaimed, claimed.Status)
	assert.Equal(t, e.ana.ID, *claimed.ClaimedBy)

	_, err = e.mgr.Complete(e.ctx, i1.ID, e.ana.ID, &e.onSite, CompleteOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPhotosIncomplete))
	assert.Equal(t, "0 of 1 required photos uploaded", err.Error())

	e.upload(i1.ID, e.ana, "photos/floor.jpg")

	e.clock.Advance(20 * time.Minute)
	done, err := e.mgr.Complete(e.ctx, i1.ID, e.ana.ID, &e.onSite, CompleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, done.Status)
	assert.Equal(t, e.ana.ID, *done.CompletedBy)
	require.NotNil(t, done.DurationSeconds)
	assert.Equal(t, int64(20*60), *done.DurationSeconds)

	e.clock.Advance(24 * time.Hour)
	i2 := e.ensure(e.tmpl)
	assert.NotEqual(t, i1.ID, i2.ID)
	assert.Equal(t, models.TaskStatusAvailable, i2.Status)

	assert.Equal(t, []events.EventType{
		events.EventTaskCreated,
		events.EventTaskClaimed,
		events.EventTaskPhotoUploaded,
		events.EventTaskCompleted,
		events.EventTaskCreated,
	}, e.eventTypes())
}

func TestConcurrentClaimHasOneWinner(t *testing.T) {
	e := newTestEnv(t)
	task := e.ensure(e.tmpl)

	claimers := []*models.Actor{e.ana, e.cam, e.ben}
	for i := 0; i < 5; i++ {
		id := string(rune('a'+i)) + "-extra"
		claimers = append(claimers, e.addActor(id, "Extra "+id, models.RoleEmployee))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(claimers))
	for i, actor := range claimers {
		wg.Add(1)
		go func(i int, actor *models.Actor) {
			defer wg.Done()
			_, errs[i] = e.mgr.Claim(e.ctx, task.ID, actor.ID, &e.onSite)
		}(i, actor)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, errors.Is(err, ErrInvalidTransition), "loser got %v", err)
	}
	assert.Equal(t, 1, winners)

	got, err := e.mgr.Get(e.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusClaimed, got.Status)
	require.NotNil(t, got.ClaimedBy)
}

func TestClaimGeofence(t *testing.T) {
	e := newTestEnv(t)

	t.Run("outside", func(t *testing.T) {
		task := e.ensure(e.tmpl)
		_, err := e.mgr.Claim(e.ctx, task.ID, e.ana.ID, &e.far)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOutsideGeofence))
		assert.Contains(t, err.Error(), "within 50 m")

		got, err := e.mgr.Get(e.ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusAvailable, got.Status, "rejected claim must not change state")
	})

	t.Run("near band passes", func(t *testing.T) {
		task := e.ensure(e.tmpl)
		_, err := e.mgr.Claim(e.ctx, task.ID, e.cam.ID, &e.near)
		assert.NoError(t, err)
	})

	t.Run("invalid coordinate", func(t *testing.T) {
		once := e.addTemplate(&models.Template{
			Title:          "Fix Door",
			RecurrenceType: models.RecurrenceNone,
			AssignmentRule: models.AssignStoreWide,
		})
		task := e.ensure(once)
		_, err := e.mgr.Claim(e.ctx, task.ID, e.ana.ID, &models.Coordinate{Latitude: 91, Longitude: 0})
		assert.True(t, errors.Is(err, ErrValidation))
	})
}

func TestCheckinFallback(t *testing.T) {
	e := newTestEnv(t)
	once := e.addTemplate(&models.Template{
		Title:          "Fix Door",
		RecurrenceType: models.RecurrenceNone,
		AssignmentRule: models.AssignStoreWide,
	})

	first := e.ensure(once)
	_, err := e.mgr.Claim(e.ctx, first.ID, e.ana.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocationRequired))

	// A claim with a coordinate checks the actor in.
	_, err = e.mgr.Claim(e.ctx, first.ID, e.ana.ID, &e.onSite)
	require.NoError(t, err)

	second := e.ensure(once)
	_, err = e.mgr.Claim(e.ctx, second.ID, e.ana.ID, nil)
	require.NoError(t, err)

	e.clock.Advance(DefaultCheckinTTL + time.Minute)
	third := e.ensure(once)
	_, err = e.mgr.Claim(e.ctx, third.ID, e.ana.ID, nil)
	assert.True(t, errors.Is(err, ErrLocationRequired), "expired check-in must not count")
}

func TestGeofenceNotConfigured(t *testing.T) {
	e := newTestEnv(t)
	open := &models.Store{ID: "store-2", Name: "Kiosk", Active: true}
	require.NoError(t, e.db.UpsertStore(e.ctx, open))

	task, _, err := e.inst.EnsureInstance(e.ctx, e.tmpl.ID, open.ID, time.Time{})
	require.NoError(t, err)

	_, err = e.mgr.Claim(e.ctx, task.ID, e.ana.ID, nil)
	assert.NoError(t, err)
}

func TestAdminBypassesGeofence(t *testing.T) {
	e := newTestEnv(t)
	task := e.ensure(e.tmpl)

	_, err := e.mgr.Claim(e.ctx, task.ID, e.dee.ID, &e.far)
	require.NoError(t, err)
	_, err = e.mgr.UploadPhoto(e.ctx, UploadRequest{TaskID: task.ID, ActorID: e.dee.ID, ContentRef: "photos/remote.jpg"})
	require.NoError(t, err)
	_, err = e.mgr.Complete(e.ctx, task.ID, e.dee.ID, nil, CompleteOptions{})
	assert.NoError(t, err)
}

func TestOverdueView(t *testing.T) {
	e := newTestEnv(t)
	task := e.ensure(e.tmpl)
	held := e.claimed(e.addTemplate(&models.Template{
		Title:          "Restock",
		RecurrenceType: models.RecurrenceDaily,
		AssignmentRule: models.AssignStoreWide,
	}), e.cam)

	e.clock.Advance(15 * time.Hour) // past local midnight

	got, err := e.mgr.Get(e.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusOverdue, got.Status)
	assert.Equal(t, models.TaskStatusAvailable, got.StoredStatus)

	_, err = e.mgr.Claim(e.ctx, task.ID, e.ana.ID, &e.onSite)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	f := listFilter(e.store.ID)
	f.Status = models.TaskStatusOverdue
	overdue, err := e.mgr.List(e.ctx, f)
	require.NoError(t, err)
	assert.Len(t, overdue, 2)

	f.Status = models.TaskStatusAvailable
	available, err := e.mgr.List(e.ctx, f)
	require.NoError(t, err)
	assert.Empty(t, available, "overdue tasks are not listed as available")

	// The holder may still finish late work.
	_, err = e.mgr.Complete(e.ctx, held.ID, e.cam.ID, &e.onSite, CompleteOptions{})
	assert.NoError(t, err)
}

func TestManagerOnlyTasks(t *testing.T) {
	e := newTestEnv(t)
	tmpl := e.addTemplate(&models.Template{
		Title:          "Count Safe",
		RecurrenceType: models.RecurrenceDaily,
		AssignmentRule: models.AssignManagerOnly,
	})
	task := e.ensure(tmpl)

	_, err := e.mgr.Claim(e.ctx, task.ID, e.ana.ID, &e.onSite)
	assert.True(t, errors.Is(err, ErrForbidden))

	_, err = e.mgr.Claim(e.ctx, task.ID, e.ben.ID, &e.onSite)
	require.NoError(t, err)

	_, err = e.mgr.Transfer(e.ctx, TransferRequest{TaskID: task.ID, CallerID: e.ben.ID, ToID: e.ana.ID})
	assert.True(t, errors.Is(err, ErrForbidden))

	_, err = e.mgr.Transfer(e.ctx, TransferRequest{TaskID: task.ID, CallerID: e.ben.ID, ToID: e.dee.ID})
	assert.NoError(t, err)
}

func TestSpecificTasks(t *testing.T) {
	e := newTestEnv(t)
	tmpl := e.addTemplate(&models.Template{
		Title:          "Drawer Count",
		RecurrenceType: models.RecurrenceDaily,
		AssignmentRule: models.AssignSpecific,
		AssigneeID:     ptr(e.ana.ID),
	})
	task := e.ensure(tmpl)
	require.Equal(t, models.TaskStatusPending, task.Status)

	_, err := e.mgr.Claim(e.ctx, task.ID, e.ana.ID, &e.onSite)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "pending specific tasks need publishing first")

	_, err = e.mgr.Publish(e.ctx, task.ID, e.cam.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	published, err := e.mgr.Publish(e.ctx, task.ID, e.ana.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusAvailable, published.Status)

	_, err = e.mgr.Publish(e.ctx, task.ID, e.ben.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = e.mgr.Claim(e.ctx, task.ID, e.cam.ID, &e.onSite)
	assert.True(t, errors.Is(err, ErrNotHolder))

	_, err = e.mgr.Claim(e.ctx, task.ID, e.ana.ID, &e.onSite)
	assert.NoError(t, err)
}

func TestClaimSources(t *testing.T) {
	assert.ElementsMatch(t,
		[]models.TaskStatus{models.TaskStatusPending, models.TaskStatusAvailable},
		claimSources(models.AssignStoreWide))
	assert.Equal(t, []models.TaskStatus{models.TaskStatusAvailable}, claimSources(models.AssignSpecific))
	assert.Equal(t, []models.TaskStatus{models.TaskStatusAvailable}, claimSources(models.AssignManagerOnly))
}

func TestStartHolderOnly(t *testing.T) {
	e := newTestEnv(t)
	task := e.claimed(e.tmpl, e.ana)

	_, err := e.mgr.Start(e.ctx, task.ID, e.cam.ID)
	assert.True(t, errors.Is(err, ErrNotHolder))

	started, err := e.mgr.Start(e.ctx, task.ID, e.ana.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, started.Status)
	assert.NotNil(t, started.StartedAt)

	_, err = e.mgr.Start(e.ctx, task.ID, e.ana.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestPhotoGateIsMonotonic(t *testing.T) {
	e := newTestEnv(t)
	tmpl := e.addTemplate(&models.Template{
		Title:          "Shelf Audit",
		RecurrenceType: models.RecurrenceDaily,
		AssignmentRule: models.AssignStoreWide,
		RequiresPhoto:  true,
		RequiredPhotos: 3,
	})
	task := e.claimed(tmpl, e.ana)

	for i, ref := range []string{"photos/a.jpg", "photos/b.jpg"} {
		e.upload(task.ID, e.ana, ref)
		_, err := e.mgr.Complete(e.ctx, task.ID, e.ana.ID, &e.onSite, CompleteOptions{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPhotosIncomplete))
		if i == 1 {
			assert.Equal(t, "2 of 3 required photos uploaded", err.Error())
		}
	}

	e.upload(task.ID, e.ana, "photos/c.jpg")
	_, err := e.mgr.Complete(e.ctx, task.ID, e.ana.ID, &e.onSite, CompleteOptions{})
	require.NoError(t, err)

	photos, err := e.mgr.Photos(e.ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, photos, 3)
	for _, p := range photos {
		require.NotNil(t, p.DistanceMeters)
		assert.InDelta(t, 40, *p.DistanceMeters, 0.5)
	}

	_, err = e.mgr.UploadPhoto(e.ctx, UploadRequest{TaskID: task.ID, ActorID: e.ana.ID, ContentRef: "photos/d.jpg", Coordinate: &e.onSite})
	assert.True(t, errors.Is(err, ErrInvalidTransition), "completed tasks take no more photos")
}

func TestUploadRules(t *testing.T) {
	e := newTestEnv(t)
	task := e.ensure(e.tmpl)

	// Unclaimed tasks accept evidence from anyone on site.
	e.upload(task.ID, e.cam, "photos/before.jpg")

	_, err := e.mgr.Claim(e.ctx, task.ID, e.ana.ID, &e.onSite)
	require.NoError(t, err)

	_, err = e.mgr.UploadPhoto(e.ctx, UploadRequest{TaskID: task.ID, ActorID: e.cam.ID, ContentRef: "photos/x.jpg", Coordinate: &e.onSite})
	assert.True(t, errors.Is(err, ErrNotHolder))

	_, err = e.mgr.UploadPhoto(e.ctx, UploadRequest{TaskID: task.ID, ActorID: e.ben.ID, ContentRef: "photos/x.jpg", Coordinate: &e.onSite})
	assert.True(t, errors.Is(err, ErrNotHolder), "managers do not upload to held tasks")

	_, err = e.mgr.UploadPhoto(e.ctx, UploadRequest{TaskID: task.ID, ActorID: e.dee.ID, ContentRef: "photos/x.jpg"})
	assert.NoError(t, err, "admins may upload to any open task")

	_, err = e.mgr.UploadPhoto(e.ctx, UploadRequest{TaskID: task.ID, ActorID: e.ana.ID, Coordinate: &e.onSite})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = e.mgr.UploadPhoto(e.ctx, UploadRequest{TaskID: task.ID, ActorID: e.ana.ID, ContentRef: "photos/x.jpg", Coordinate: &e.far})
	assert.True(t, errors.Is(err, ErrOutsideGeofence))

	got, err := e.mgr.Get(e.ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UploadedPhotos)
}

func TestCompletionOverrides(t *testing.T) {
	e := newTestEnv(t)

	t.Run("override photos needs capability", func(t *testing.T) {
		task := e.claimed(e.tmpl, e.ana)
		_, err := e.mgr.Complete(e.ctx, task.ID, e.ana.ID, &e.onSite, CompleteOptions{OverridePhotoRequirement: true})
		assert.True(t, errors.Is(err, ErrForbidden))
		_, err = e.mgr.Cancel(e.ctx, task.ID, e.dee.ID, "reset")
		require.NoError(t, err)
	})

	t.Run("manager overrides photos", func(t *testing.T) {
		task := e.claimed(e.tmpl, e.ben)
		done, err := e.mgr.Complete(e.ctx, task.ID, e.ben.ID, &e.onSite, CompleteOptions{OverridePhotoRequirement: true, Notes: ptr("camera broken")})
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusCompleted, done.Status)
		assert.Equal(t, "camera broken", done.Notes)
	})

	t.Run("force complete", func(t *testing.T) {
		e.clock.Advance(24 * time.Hour)
		task := e.ensure(e.tmpl)

		_, err := e.mgr.Complete(e.ctx, task.ID, e.ben.ID, nil, CompleteOptions{ForceComplete: true})
		assert.True(t, errors.Is(err, ErrForbidden))

		_, err = e.mgr.Complete(e.ctx, task.ID, e.ana.ID, &e.onSite, CompleteOptions{})
		assert.True(t, errors.Is(err, ErrInvalidTransition), "unclaimed tasks need force")

		done, err := e.mgr.Complete(e.ctx, task.ID, e.dee.ID, nil, CompleteOptions{ForceComplete: true})
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusCompleted, done.Status)
		assert.Equal(t, e.dee.ID, *done.CompletedBy)
		assert.Nil(t, done.DurationSeconds)

		_, err = e.mgr.Complete(e.ctx, task.ID, e.dee.ID, nil, CompleteOptions{ForceComplete: true})
		assert.True(t, errors.Is(err, ErrInvalidTransition), "completion happens once")
	})
}

func TestTransfer(t *testing.T) {
	e := newTestEnv(t)
	task := e.claimed(e.tmpl, e.ana)

	_, err := e.mgr.Transfer(e.ctx, TransferRequest{TaskID: task.ID, CallerID: e.ana.ID, ToID: e.ana.ID})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = e.mgr.Transfer(e.ctx, TransferRequest{TaskID: task.ID, CallerID: e.ana.ID, ToID: "nobody"})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = e.mgr.Transfer(e.ctx, TransferRequest{TaskID: task.ID, CallerID: e.cam.ID, FromID: e.ana.ID, ToID: e.cam.ID})
	assert.True(t, errors.Is(err, ErrNotHolder), "employees cannot take tasks from others")

	moved, err := e.mgr.Transfer(e.ctx, TransferRequest{TaskID: task.ID, CallerID: e.ana.ID, ToID: e.cam.ID, Reason: "end of shift"})
	require.NoError(t, err)
	assert.Equal(t, e.cam.ID, *moved.ClaimedBy)
	assert.Equal(t, models.TaskStatusClaimed, moved.Status)

	records, err := e.mgr.Transfers(e.ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, e.ana.ID, records[0].FromActor)
	assert.Equal(t, e.cam.ID, records[0].ToActor)
	assert.Equal(t, "end of shift", records[0].Reason)

	e.upload(task.ID, e.cam, "photos/floor.jpg")
	_, err = e.mgr.Complete(e.ctx, task.ID, e.ana.ID, &e.onSite, CompleteOptions{})
	assert.True(t, errors.Is(err, ErrNotHolder))

	// Managers reassign work they do not hold.
	_, err = e.mgr.Transfer(e.ctx, TransferRequest{TaskID: task.ID, CallerID: e.ben.ID, FromID: e.cam.ID, ToID: e.ana.ID})
	require.NoError(t, err)

	_, err = e.mgr.Complete(e.ctx, task.ID, e.ana.ID, &e.onSite, CompleteOptions{})
	require.NoError(t, err)

	_, err = e.mgr.Transfer(e.ctx, TransferRequest{TaskID: task.ID, CallerID: e.ana.ID, ToID: e.cam.ID})
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestCancel(t *testing.T) {
	e := newTestEnv(t)
	task := e.claimed(e.tmpl, e.ana)

	_, err := e.mgr.Cancel(e.ctx, task.ID, e.ben.ID, "")
	assert.True(t, errors.Is(err, ErrForbidden))

	cancelled, err := e.mgr.Cancel(e.ctx, task.ID, e.dee.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, cancelled.Status)
	assert.Equal(t, e.dee.ID, *cancelled.CancelledBy)
	assert.Equal(t, "duplicate", cancelled.Notes)

	_, err = e.mgr.Cancel(e.ctx, task.ID, e.dee.ID, "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = e.mgr.Complete(e.ctx, task.ID, e.ana.ID, &e.onSite, CompleteOptions{})
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestActorGuards(t *testing.T) {
	e := newTestEnv(t)
	task := e.ensure(e.tmpl)

	gone := &models.Actor{ID: "emp-9", Name: "Gone", Role: models.RoleEmployee, Active: false}
	require.NoError(t, e.db.UpsertActor(e.ctx, gone))

	_, err := e.mgr.Claim(e.ctx, task.ID, gone.ID, &e.onSite)
	assert.True(t, errors.Is(err, ErrInactive))

	_, err = e.mgr.Claim(e.ctx, task.ID, "missing", &e.onSite)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = e.mgr.Claim(e.ctx, task.ID, "", &e.onSite)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = e.mgr.Claim(e.ctx, "missing", e.ana.ID, &e.onSite)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListFilters(t *testing.T) {
	e := newTestEnv(t)
	floor := e.claimed(e.tmpl, e.ana)
	restock := e.ensure(e.addTemplate(&models.Template{
		Title:          "Restock",
		RecurrenceType: models.RecurrenceDaily,
		AssignmentRule: models.AssignStoreWide,
		Priority:       9,
	}))

	all, err := e.mgr.List(e.ctx, listFilter(e.store.ID))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, restock.ID, all[0].ID, "higher priority first")

	mine, err := e.mgr.List(e.ctx, db.InstanceFilter{StoreID: e.store.ID, ClaimedBy: e.ana.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, floor.ID, mine[0].ID)

	byTemplate, err := e.mgr.List(e.ctx, db.InstanceFilter{TemplateID: e.tmpl.ID, PeriodKey: "2026-10-14"})
	require.NoError(t, err)
	assert.Len(t, byTemplate, 1)

	_, err = e.mgr.List(e.ctx, db.InstanceFilter{Status: "bogus"})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestRejectedOperationsPublishNothing(t *testing.T) {
	e := newTestEnv(t)
	task := e.ensure(e.tmpl)
	before := len(e.bus.History(0))

	_, err := e.mgr.Claim(e.ctx, task.ID, e.ana.ID, &e.far)
	require.Error(t, err)
	_, err = e.mgr.Start(e.ctx, task.ID, e.ana.ID)
	require.Error(t, err)

	assert.Len(t, e.bus.History(0), before)
}
