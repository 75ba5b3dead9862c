package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/sunny-dsa/shiftcheck/internal/db"
	"github.com/sunny-dsa/shiftcheck/internal/events"
	"github.com/sunny-dsa/shiftcheck/internal/geofence"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

// Manager applies lifecycle operations to task instances. It keeps no state
// of its own: every decision is re-read from the repository and every write
// is a guarded compare-and-swap.
type Manager struct {
	service
	geo        geofence.Evaluator
	checkinTTL time.Duration
}

func NewManager(repo Repository, opts Options) *Manager {
	ttl := opts.CheckinTTL
	if ttl <= 0 {
		ttl = DefaultCheckinTTL
	}
	return &Manager{
		service:    newService(repo, opts),
		geo:        geofence.Evaluator{NearMultiplier: opts.NearMultiplier},
		checkinTTL: ttl,
	}
}

// Get returns a task as readers see it, with the overdue view applied.
func (m *Manager) Get(ctx context.Context, taskID string) (*models.TaskInstance, error) {
	inst, err := m.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	inst.ApplyOverdueView(m.now())
	return inst, nil
}

// List returns tasks matching the filter with the overdue view applied.
func (m *Manager) List(ctx context.Context, f db.InstanceFilter) ([]*models.TaskInstance, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, newError(KindValidation, "unknown status %q", f.Status)
	}
	now := m.now()
	if f.Now.IsZero() {
		f.Now = now
	}
	list, err := m.repo.ListInstances(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, inst := range list {
		inst.ApplyOverdueView(f.Now)
	}
	return list, nil
}

// Photos returns the attachments uploaded for a task.
func (m *Manager) Photos(ctx context.Context, taskID string) ([]*models.PhotoAttachment, error) {
	if _, err := m.loadTask(ctx, taskID); err != nil {
		return nil, err
	}
	return m.repo.ListPhotos(ctx, taskID)
}

// Transfers returns the hand-over history of a task.
func (m *Manager) Transfers(ctx context.Context, taskID string) ([]*models.TransferRecord, error) {
	if _, err := m.loadTask(ctx, taskID); err != nil {
		return nil, err
	}
	return m.repo.ListTransfers(ctx, taskID)
}

// Publish releases a pending task so it can be claimed.
func (m *Manager) Publish(ctx context.Context, taskID, actorID string) (*models.TaskInstance, error) {
	inst, actor, err := m.load(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	if inst.Status != models.TaskStatusPending {
		return nil, m.reject("publish", inst, newError(KindInvalidTransition, "only pending tasks can be published; task is %s", inst.Status))
	}
	if !Can(actor, CapPublish) && !isAssignee(inst, actor.ID) {
		return nil, m.reject("publish", inst, newError(KindForbidden, "%s may not publish this task", actor.Name))
	}

	updated, err := m.repo.PublishInstance(ctx, inst.ID)
	if err != nil {
		return nil, m.writeFailed(ctx, "publish", inst.ID, err)
	}
	return m.committed(events.EventTaskPublished, updated, actor.ID, nil), nil
}

// Claim assigns an open task to the actor after the eligibility and
// on-premises checks pass.
func (m *Manager) Claim(ctx context.Context, taskID, actorID string, coord *models.Coordinate) (*models.TaskInstance, error) {
	inst, actor, err := m.load(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	now := m.now()

	from := claimSources(inst.AssignmentRule)

	switch {
	case inst.Status.Terminal():
		return nil, m.reject("claim", inst, newError(KindInvalidTransition, "task is already %s", inst.Status))
	case inst.Status.Held():
		return nil, m.reject("claim", inst, newError(KindInvalidTransition, "task is already claimed by %s", deref(inst.ClaimedBy)))
	case !containsStatus(from, inst.Status):
		return nil, m.reject("claim", inst, newError(KindInvalidTransition, "task is %s and must be published before it can be claimed", inst.Status))
	case inst.IsOverdue(now):
		return nil, m.reject("claim", inst, newError(KindInvalidTransition, "task is overdue and can no longer be claimed"))
	}

	switch inst.AssignmentRule {
	case models.AssignManagerOnly:
		if !Can(actor, CapClaimManagerTasks) {
			return nil, m.reject("claim", inst, newError(KindForbidden, "only managers can claim this task"))
		}
	case models.AssignSpecific:
		if !isAssignee(inst, actor.ID) && !Can(actor, CapReassign) {
			return nil, m.reject("claim", inst, newError(KindNotHolder, "task is assigned to %s", deref(inst.AssigneeID)))
		}
	}

	if _, err := m.checkPresence(ctx, actor, inst, coord, now); err != nil {
		return nil, m.reject("claim", inst, err)
	}

	updated, err := m.repo.ClaimInstance(ctx, inst.ID, actor.ID, from, now)
	if err != nil {
		return nil, m.writeFailed(ctx, "claim", inst.ID, err)
	}
	return m.committed(events.EventTaskClaimed, updated, actor.ID, nil), nil
}

// Start marks a claimed task as being worked on by its holder.
func (m *Manager) Start(ctx context.Context, taskID, actorID string) (*models.TaskInstance, error) {
	inst, actor, err := m.load(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	if inst.Status != models.TaskStatusClaimed {
		return nil, m.reject("start", inst, newError(KindInvalidTransition, "only claimed tasks can be started; task is %s", inst.Status))
	}
	if !inst.HeldBy(actor.ID) {
		return nil, m.reject("start", inst, newError(KindNotHolder, "task is held by %s", deref(inst.ClaimedBy)))
	}

	updated, err := m.repo.StartInstance(ctx, inst.ID, actor.ID, m.now())
	if err != nil {
		return nil, m.writeFailed(ctx, "start", inst.ID, err)
	}
	return m.committed(events.EventTaskStarted, updated, actor.ID, nil), nil
}

// UploadRequest carries one piece of photo evidence.
type UploadRequest struct {
	TaskID     string
	ActorID    string
	ContentRef string
	Coordinate *models.Coordinate
	ItemRef    *string
}

// UploadPhoto appends evidence to an open task. Status is unchanged.
func (m *Manager) UploadPhoto(ctx context.Context, req UploadRequest) (*models.PhotoAttachment, error) {
	if req.ContentRef == "" {
		return nil, newError(KindValidation, "content_ref is required")
	}
	inst, actor, err := m.load(ctx, req.TaskID, req.ActorID)
	if err != nil {
		return nil, err
	}
	now := m.now()

	if inst.Status.Terminal() {
		return nil, m.reject("upload", inst, newError(KindInvalidTransition, "cannot add photos to a %s task", inst.Status))
	}
	if inst.Status.Held() && !inst.HeldBy(actor.ID) && actor.Role != models.RoleAdmin {
		return nil, m.reject("upload", inst, newError(KindNotHolder, "task is held by %s", deref(inst.ClaimedBy)))
	}

	res, err := m.checkPresence(ctx, actor, inst, req.Coordinate, now)
	if err != nil {
		return nil, m.reject("upload", inst, err)
	}

	photo := &models.PhotoAttachment{
		TaskID:     inst.ID,
		ItemRef:    req.ItemRef,
		UploaderID: actor.ID,
		ContentRef: req.ContentRef,
	}
	if req.Coordinate != nil {
		lat, lng := req.Coordinate.Latitude, req.Coordinate.Longitude
		photo.Latitude, photo.Longitude = &lat, &lng
	}
	if res.Classification != geofence.Unknown {
		d := res.DistanceMeters
		photo.DistanceMeters = &d
	}

	if err := m.repo.AppendPhoto(ctx, photo); err != nil {
		return nil, m.writeFailed(ctx, "upload", inst.ID, err)
	}

	inst.UploadedPhotos++
	m.committed(events.EventTaskPhotoUploaded, inst, actor.ID, map[string]any{
		"photo_id":        photo.ID,
		"uploaded_photos": inst.UploadedPhotos,
		"required_photos": inst.RequiredPhotos,
	})
	return photo, nil
}

// CompleteOptions are the administrative overrides of Complete.
type CompleteOptions struct {
	// ForceComplete skips the holder, on-premises and photo checks.
	ForceComplete            bool
	// OverridePhotoRequirement skips only the photo check.
	OverridePhotoRequirement bool
	Notes                    *string
}

// Complete finishes a task once its holder is on premises and enough photos
// are attached.
func (m *Manager) Complete(ctx context.Context, taskID, actorID string, coord *models.Coordinate, opts CompleteOptions) (*models.TaskInstance, error) {
	inst, actor, err := m.load(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	now := m.now()

	if inst.Status.Terminal() {
		return nil, m.reject("complete", inst, newError(KindInvalidTransition, "task is already %s", inst.Status))
	}

	c := db.Completion{ActorID: actor.ID, At: now, Notes: opts.Notes}
	if opts.ForceComplete {
		if !Can(actor, CapForceComplete) {
			return nil, m.reject("complete", inst, newError(KindForbidden, "%s may not force completion", actor.Name))
		}
		c.From = sourcesOf(models.TaskStatusCompleted)
	} else {
		if !inst.Status.Held() {
			return nil, m.reject("complete", inst, newError(KindInvalidTransition, "task must be claimed before it can be completed; task is %s", inst.Status))
		}
		if !inst.HeldBy(actor.ID) {
			return nil, m.reject("complete", inst, newError(KindNotHolder, "task is held by %s", deref(inst.ClaimedBy)))
		}
		if opts.OverridePhotoRequirement && !Can(actor, CapOverridePhotos) {
			return nil, m.reject("complete", inst, newError(KindForbidden, "%s may not override the photo requirement", actor.Name))
		}
		if _, err := m.checkPresence(ctx, actor, inst, coord, now); err != nil {
			return nil, m.reject("complete", inst, err)
		}
		if !opts.OverridePhotoRequirement && !inst.PhotosSatisfied() {
			return nil, m.reject("complete", inst, newError(KindPhotosIncomplete,
				"%d of %d required photos uploaded", inst.UploadedPhotos, inst.RequiredPhotos))
		}
		c.From = sourcesOf(models.TaskStatusCompleted, models.TaskStatusClaimed, models.TaskStatusInProgress)
		c.Holder = actor.ID
	}

	if start := workStart(inst); start != nil {
		secs := int64(now.Sub(*start).Seconds())
		if secs < 0 {
			secs = 0
		}
		c.DurationSeconds = &secs
	}

	updated, err := m.repo.CompleteInstance(ctx, inst.ID, c)
	if err != nil {
		return nil, m.writeFailed(ctx, "complete", inst.ID, err)
	}
	return m.committed(events.EventTaskCompleted, updated, actor.ID, map[string]any{
		"forced":            opts.ForceComplete,
		"photos_overridden": opts.OverridePhotoRequirement,
	}), nil
}

// TransferRequest hands a held task from one actor to another.
type TransferRequest struct {
	TaskID   string
	CallerID string
	// FromID defaults to the caller.
	FromID   string
	ToID     string
	Reason   string
}

// Transfer moves a held task to a new holder and records the hand-over.
// Status is unchanged.
func (m *Manager) Transfer(ctx context.Context, req TransferRequest) (*models.TaskInstance, error) {
	inst, caller, err := m.load(ctx, req.TaskID, req.CallerID)
	if err != nil {
		return nil, err
	}
	from := req.FromID
	if from == "" {
		from = caller.ID
	}

	if !inst.Status.Held() {
		return nil, m.reject("transfer", inst, newError(KindInvalidTransition, "only claimed tasks can be transferred; task is %s", inst.Status))
	}
	if !inst.HeldBy(from) {
		return nil, m.reject("transfer", inst, newError(KindNotHolder, "task is held by %s, not %s", deref(inst.ClaimedBy), from))
	}
	if caller.ID != from && !Can(caller, CapReassign) {
		return nil, m.reject("transfer", inst, newError(KindNotHolder, "%s may not transfer a task held by someone else", caller.Name))
	}
	if req.ToID == "" || req.ToID == from {
		return nil, m.reject("transfer", inst, newError(KindValidation, "transfer target must be a different actor"))
	}

	to, err := m.repo.GetActor(ctx, req.ToID)
	if err != nil {
		return nil, err
	}
	if to == nil || !to.Active {
		return nil, m.reject("transfer", inst, newError(KindNotFound, "actor %s not found", req.ToID))
	}
	if inst.AssignmentRule == models.AssignManagerOnly && !Can(to, CapClaimManagerTasks) {
		return nil, m.reject("transfer", inst, newError(KindForbidden, "%s cannot hold a manager-only task", to.Name))
	}

	rec := &models.TransferRecord{TaskID: inst.ID, FromActor: from, ToActor: to.ID, Reason: req.Reason}
	updated, err := m.repo.TransferInstance(ctx, rec)
	if err != nil {
		return nil, m.writeFailed(ctx, "transfer", inst.ID, err)
	}
	return m.committed(events.EventTaskTransferred, updated, caller.ID, map[string]any{
		"from":        from,
		"to":          to.ID,
		"transfer_id": rec.ID,
		"reason":      req.Reason,
	}), nil
}

// Cancel withdraws any task that is not completed.
func (m *Manager) Cancel(ctx context.Context, taskID, actorID, reason string) (*models.TaskInstance, error) {
	inst, actor, err := m.load(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	if !Can(actor, CapCancel) {
		return nil, m.reject("cancel", inst, newError(KindForbidden, "%s may not cancel tasks", actor.Name))
	}
	if inst.Status.Terminal() {
		return nil, m.reject("cancel", inst, newError(KindInvalidTransition, "task is already %s", inst.Status))
	}

	var notes *string
	if reason != "" {
		notes = &reason
	}
	updated, err := m.repo.CancelInstance(ctx, inst.ID, actor.ID, m.now(), notes)
	if err != nil {
		return nil, m.writeFailed(ctx, "cancel", inst.ID, err)
	}
	return m.committed(events.EventTaskCancelled, updated, actor.ID, map[string]any{"reason": reason}), nil
}

// checkPresence runs the on-premises gate. Stores without a configured
// geofence and actors with the bypass capability always pass. Without a
// coordinate a valid check-in is required; a coordinate inside or near the
// fence passes and refreshes the check-in.
func (m *Manager) checkPresence(ctx context.Context, actor *models.Actor, inst *models.TaskInstance, coord *models.Coordinate, now time.Time) (geofence.Result, error) {
	store, err := m.loadStore(ctx, inst.StoreID)
	if err != nil {
		return geofence.Result{}, err
	}
	if !store.GeofenceConfigured() {
		return geofence.Result{Classification: geofence.Unknown}, nil
	}
	if coord != nil && !geofence.Valid(*coord) {
		return geofence.Result{}, newError(KindValidation, "coordinate %.6f,%.6f is out of range", coord.Latitude, coord.Longitude)
	}

	res := m.geo.Evaluate(store.Center(), store.GeofenceRadius, coord)
	if Can(actor, CapBypassGeofence) {
		return res, nil
	}

	if coord == nil {
		ok, err := m.repo.IsCheckedIn(ctx, actor.ID, store.ID, now)
		if err != nil {
			return res, err
		}
		if ok {
			return res, nil
		}
		return res, newError(KindLocationRequired, "location required: share your location or check in at %s", store.Name)
	}

	if !res.Classification.Allowed() {
		return res, newError(KindOutsideGeofence, "you are %.0f m from %s; actions require being within %.0f m",
			res.DistanceMeters, store.Name, store.GeofenceRadius)
	}

	checkin := &models.Checkin{
		ActorID:     actor.ID,
		StoreID:     store.ID,
		CheckedInAt: now,
		ExpiresAt:   now.Add(m.checkinTTL),
		Source:      models.CheckinGeofence,
	}
	if err := m.repo.RecordCheckin(ctx, checkin); err != nil {
		m.logger.Warn("failed to record checkin", "actor_id", actor.ID, "store_id", store.ID, "error", err)
	}
	return res, nil
}

func (m *Manager) load(ctx context.Context, taskID, actorID string) (*models.TaskInstance, *models.Actor, error) {
	inst, err := m.loadTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	actor, err := m.loadActor(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	return inst, actor, nil
}

// reject logs a guard failure and returns it unchanged.
func (m *Manager) reject(op string, inst *models.TaskInstance, err error) error {
	var e *Error
	if errors.As(err, &e) {
		m.logger.Debug("task operation rejected",
			"op", op, "task_id", inst.ID, "status", inst.Status, "kind", e.Kind, "reason", e.Message)
	}
	return err
}

// writeFailed explains a lost compare-and-swap in terms of the task's
// current status. Other errors pass through.
func (m *Manager) writeFailed(ctx context.Context, op, taskID string, err error) error {
	if !errors.Is(err, db.ErrStaleStatus) {
		return err
	}
	current, getErr := m.loadTask(ctx, taskID)
	if getErr != nil {
		return getErr
	}
	current.ApplyOverdueView(m.now())
	return m.reject(op, current, newError(KindInvalidTransition, "cannot %s task: it changed to %s", op, current.Status))
}

func (m *Manager) committed(typ events.EventType, inst *models.TaskInstance, actorID string, payload map[string]any) *models.TaskInstance {
	m.logger.Info("task updated", "event", string(typ),
		"task_id", inst.ID, "store_id", inst.StoreID, "actor_id", actorID, "status", inst.Status)
	m.emit(typ, events.SourceLifecycle, inst, actorID, payload)
	inst.ApplyOverdueView(m.now())
	return inst
}

// claimSources lists the statuses a task with the rule can be claimed from.
// Store-wide work may be picked up before it is published.
func claimSources(rule models.AssignmentRule) []models.TaskStatus {
	if rule == models.AssignStoreWide {
		return sourcesOf(models.TaskStatusClaimed, models.TaskStatusPending, models.TaskStatusAvailable)
	}
	return sourcesOf(models.TaskStatusClaimed, models.TaskStatusAvailable)
}

func workStart(inst *models.TaskInstance) *time.Time {
	if inst.StartedAt != nil {
		return inst.StartedAt
	}
	return inst.ClaimedAt
}

func isAssignee(inst *models.TaskInstance, actorID string) bool {
	return inst.AssigneeID != nil && *inst.AssigneeID == actorID
}

func deref(s *string) string {
	if s == nil {
		return "nobody"
	}
	return *s
}
