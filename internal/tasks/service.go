// Package tasks turns templates into dated task instances and moves those
// instances through their lifecycle, enforcing the on-premises and photo
// evidence gates on the way.
package tasks

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/sunny-dsa/shiftcheck/internal/db"
	"github.com/sunny-dsa/shiftcheck/internal/events"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

// Repository is the durable state the services read and guard-write. It is
// satisfied by *db.DB.
type Repository interface {
	GetStore(ctx context.Context, id string) (*models.Store, error)
	GetActor(ctx context.Context, id string) (*models.Actor, error)
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	ListTemplatesForStore(ctx context.Context, storeID string) ([]*models.Template, error)

	FindOrCreateInstance(ctx context.Context, inst *models.TaskInstance) (*models.TaskInstance, bool, error)
	CreateInstance(ctx context.Context, inst *models.TaskInstance) error
	GetInstance(ctx context.Context, id string) (*models.TaskInstance, error)
	ListInstances(ctx context.Context, f db.InstanceFilter) ([]*models.TaskInstance, error)

	PublishInstance(ctx context.Context, id string) (*models.TaskInstance, error)
	ClaimInstance(ctx context.Context, id, actorID string, from []models.TaskStatus, at time.Time) (*models.TaskInstance, error)
	StartInstance(ctx context.Context, id, actorID string, at time.Time) (*models.TaskInstance, error)
	CompleteInstance(ctx context.Context, id string, c db.Completion) (*models.TaskInstance, error)
	CancelInstance(ctx context.Context, id, actorID string, at time.Time, notes *string) (*models.TaskInstance, error)
	TransferInstance(ctx context.Context, rec *models.TransferRecord) (*models.TaskInstance, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)

	AppendPhoto(ctx context.Context, p *models.PhotoAttachment) error
	ListPhotos(ctx context.Context, taskID string) ([]*models.PhotoAttachment, error)
	ListTransfers(ctx context.Context, taskID string) ([]*models.TransferRecord, error)

	IsCheckedIn(ctx context.Context, actorID, storeID string, now time.Time) (bool, error)
	RecordCheckin(ctx context.Context, c *models.Checkin) error
}

// Publisher receives an event after each committed change.
type Publisher interface {
	Publish(events.Event)
}

// DefaultCheckinTTL is how long a geofence pass lets an actor act without
// sending a coordinate.
const DefaultCheckinTTL = 8 * time.Hour

type Options struct {
	Events Publisher
	Logger *slog.Logger
	Clock  func() time.Time
	// DefaultLocation is used for stores without a timezone.
	DefaultLocation *time.Location
	NearMultiplier  float64
	CheckinTTL      time.Duration
}

type service struct {
	repo   Repository
	events Publisher
	logger *slog.Logger
	clock  func() time.Time
	loc    *time.Location
}

func newService(repo Repository, opts Options) service {
	s := service{
		repo:   repo,
		events: opts.Events,
		logger: opts.Logger,
		clock:  opts.Clock,
		loc:    opts.DefaultLocation,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

func (s *service) now() time.Time {
	return s.clock().UTC()
}

func (s *service) emit(typ events.EventType, source events.EventSource, inst *models.TaskInstance, actorID string, payload map[string]any) {
	if s.events == nil {
		return
	}
	e := events.NewEvent(typ, source, payload)
	e.TaskID = inst.ID
	e.StoreID = inst.StoreID
	e.ActorID = actorID
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	e.Payload["status"] = string(inst.Status)
	s.events.Publish(e)
}

func (s *service) loadStore(ctx context.Context, id string) (*models.Store, error) {
	store, err := s.repo.GetStore(ctx, id)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, newError(KindNotFound, "store %s not found", id)
	}
	return store, nil
}

func (s *service) loadActor(ctx context.Context, id string) (*models.Actor, error) {
	if id == "" {
		return nil, newError(KindValidation, "actor is required")
	}
	actor, err := s.repo.GetActor(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, newError(KindNotFound, "actor %s not found", id)
	}
	if !actor.Active {
		return nil, newError(KindInactive, "actor %s is inactive", id)
	}
	return actor, nil
}

func (s *service) loadTask(ctx context.Context, id string) (*models.TaskInstance, error) {
	inst, err := s.repo.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, newError(KindNotFound, "task %s not found", id)
	}
	return inst, nil
}
