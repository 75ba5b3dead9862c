package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sunny-dsa/shiftcheck/internal/events"
	"github.com/sunny-dsa/shiftcheck/internal/recurrence"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

// Instantiator creates task instances from templates, at most one live
// instance per template, store and period.
type Instantiator struct {
	service
}

func NewInstantiator(repo Repository, opts Options) *Instantiator {
	return &Instantiator{service: newService(repo, opts)}
}

// EnsureInstance returns the instance of templateID for storeID in the period
// containing at, creating it if needed. The boolean reports creation. A zero
// at means now. Templates that do not recur get a fresh instance per call.
func (s *Instantiator) EnsureInstance(ctx context.Context, templateID, storeID string, at time.Time) (*models.TaskInstance, bool, error) {
	tmpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, false, err
	}
	if tmpl == nil {
		return nil, false, newError(KindNotFound, "template %s not found", templateID)
	}
	store, err := s.loadStore(ctx, storeID)
	if err != nil {
		return nil, false, err
	}
	return s.ensure(ctx, tmpl, store, at)
}

// EnsureAllForStore ensures the current instance of every active recurring
// template scheduled for the store. Templates without recurrence are skipped.
func (s *Instantiator) EnsureAllForStore(ctx context.Context, storeID string, at time.Time) ([]*models.TaskInstance, error) {
	store, err := s.loadStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = s.now()
	}

	templates, err := s.repo.ListTemplatesForStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	var out []*models.TaskInstance
	for _, tmpl := range templates {
		if !recurrence.IsDueAt(tmpl.RecurrenceType, at) {
			continue
		}
		inst, _, err := s.ensure(ctx, tmpl, store, at)
		if err != nil {
			return out, fmt.Errorf("template %s: %w", tmpl.ID, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

func (s *Instantiator) ensure(ctx context.Context, tmpl *models.Template, store *models.Store, at time.Time) (*models.TaskInstance, bool, error) {
	if !tmpl.Active {
		return nil, false, newError(KindInactive, "template %q is inactive", tmpl.Title)
	}
	if !store.Active {
		return nil, false, newError(KindInactive, "store %q is inactive", store.Name)
	}
	if !tmpl.AppliesTo(store.ID) {
		return nil, false, newError(KindValidation, "template %q belongs to another store", tmpl.Title)
	}

	now := s.now()
	if at.IsZero() {
		at = now
	}
	loc := store.Location(s.loc)

	key, err := recurrence.PeriodKeyFor(tmpl.RecurrenceType, at, loc)
	if errors.Is(err, recurrence.ErrUnknownRecurrence) {
		return nil, false, newError(KindValidation, "template %q has unknown recurrence %q", tmpl.Title, tmpl.RecurrenceType)
	}
	if err != nil {
		return nil, false, err
	}

	inst := snapshotTemplate(tmpl, store.ID, key)
	if start, end, ok := recurrence.Window(tmpl.RecurrenceType, at, loc); ok {
		inst.ScheduledAt = start.UTC()
		due := end.UTC()
		inst.DueAt = &due
	} else {
		inst.ScheduledAt = at.UTC()
	}

	var (
		result  *models.TaskInstance
		created bool
	)
	if key.Adhoc() {
		if err := s.repo.CreateInstance(ctx, inst); err != nil {
			return nil, false, err
		}
		result, created = inst, true
	} else {
		result, created, err = s.repo.FindOrCreateInstance(ctx, inst)
		if err != nil {
			return nil, false, err
		}
	}

	if created {
		s.logger.Info("task instance created",
			"task_id", result.ID, "template_id", tmpl.ID, "store_id", store.ID,
			"period_key", result.PeriodKey, "status", result.Status)
		s.emit(events.EventTaskCreated, events.SourceInstantiator, result, "", map[string]any{
			"template_id": tmpl.ID,
			"period_key":  result.PeriodKey,
		})
	}

	result.ApplyOverdueView(now)
	return result, created, nil
}

// snapshotTemplate copies the template content that instances keep even when
// the template is edited later.
func snapshotTemplate(tmpl *models.Template, storeID string, key recurrence.PeriodKey) *models.TaskInstance {
	templateID := tmpl.ID
	inst := &models.TaskInstance{
		TemplateID:     &templateID,
		StoreID:        storeID,
		PeriodKey:      key.String(),
		Title:          tmpl.Title,
		Description:    tmpl.Description,
		AssignmentRule: tmpl.AssignmentRule,
		Status:         initialStatus(tmpl.AssignmentRule),
		Priority:       tmpl.Priority,
		RequiredPhotos: models.NormalizeRequiredPhotos(tmpl.RequiresPhoto, tmpl.RequiredPhotos),
	}
	if tmpl.AssigneeID != nil {
		assignee := *tmpl.AssigneeID
		inst.AssigneeID = &assignee
	}
	return inst
}

// initialStatus makes work for a named person wait for publication; all
// other work is claimable at once.
func initialStatus(rule models.AssignmentRule) models.TaskStatus {
	if rule == models.AssignSpecific {
		return models.TaskStatusPending
	}
	return models.TaskStatusAvailable
}

// AdhocRequest describes a one-off task that has no template.
type AdhocRequest struct {
	StoreID        string                `json:"store_id" validate:"required"`
	CreatorID      string                `json:"-"`
	Title          string                `json:"title" validate:"required,max=200"`
	Description    string                `json:"description" validate:"max=4000"`
	AssignmentRule models.AssignmentRule `json:"assignment_rule" validate:"omitempty,oneof=store_wide manager_only specific"`
	AssigneeID     *string               `json:"assignee_id,omitempty" validate:"required_if=AssignmentRule specific"`
	RequiresPhoto  bool                  `json:"requires_photo"`
	RequiredPhotos int                   `json:"required_photos" validate:"gte=0,lte=50"`
	Priority       int                   `json:"priority" validate:"gte=0,lte=10"`
	DueAt          *time.Time            `json:"due_at,omitempty"`
}

// CreateAdhoc creates a template-less task. The creator needs the publish
// capability.
func (s *Instantiator) CreateAdhoc(ctx context.Context, req AdhocRequest) (*models.TaskInstance, error) {
	if req.AssignmentRule == "" {
		req.AssignmentRule = models.AssignStoreWide
	}
	if err := models.Validate(req); err != nil {
		return nil, newError(KindValidation, "%v", err)
	}

	creator, err := s.loadActor(ctx, req.CreatorID)
	if err != nil {
		return nil, err
	}
	if !Can(creator, CapPublish) {
		return nil, newError(KindForbidden, "%s may not create ad hoc tasks", creator.Name)
	}

	store, err := s.loadStore(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	if !store.Active {
		return nil, newError(KindInactive, "store %q is inactive", store.Name)
	}

	now := s.now()
	if req.DueAt != nil && !req.DueAt.After(now) {
		return nil, newError(KindValidation, "due time must be in the future")
	}

	inst := &models.TaskInstance{
		StoreID:        store.ID,
		PeriodKey:      models.PeriodAdhoc,
		Title:          req.Title,
		Description:    req.Description,
		AssignmentRule: req.AssignmentRule,
		AssigneeID:     req.AssigneeID,
		Status:         initialStatus(req.AssignmentRule),
		Priority:       req.Priority,
		ScheduledAt:    now,
		DueAt:          req.DueAt,
		RequiredPhotos: models.NormalizeRequiredPhotos(req.RequiresPhoto, req.RequiredPhotos),
	}
	if err := s.repo.CreateInstance(ctx, inst); err != nil {
		return nil, err
	}

	s.logger.Info("ad hoc task created", "task_id", inst.ID, "store_id", store.ID, "actor_id", creator.ID)
	s.emit(events.EventTaskCreated, events.SourceInstantiator, inst, creator.ID, map[string]any{
		"period_key": inst.PeriodKey,
	})
	return inst, nil
}
