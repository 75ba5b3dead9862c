package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sunny-dsa/shiftcheck/internal/events"
)

// DefaultSweepSchedule runs the overdue sweep every five minutes.
const DefaultSweepSchedule = "*/5 * * * *"

// Sweeper periodically stamps past-due open tasks for audit. It never changes
// status; overdue stays a derived view.
type Sweeper struct {
	repo   Repository
	events Publisher
	logger *slog.Logger
	clock  func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func NewSweeper(repo Repository, opts Options) *Sweeper {
	svc := newService(repo, opts)
	return &Sweeper{
		repo:   svc.repo,
		events: svc.events,
		logger: svc.logger,
		clock:  svc.clock,
	}
}

// Start schedules the sweep with a standard five-field cron expression. An
// empty schedule uses DefaultSweepSchedule.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.Run(context.Background()); err != nil {
			s.logger.Error("overdue sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("overdue sweep scheduled", "schedule", schedule)
	return nil
}

// Stop cancels future runs and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// Run performs one sweep and returns the number of tasks newly stamped.
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	now := s.clock().UTC()
	n, err := s.repo.MarkOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	s.logger.Info("marked overdue tasks", "count", n)
	if s.events != nil {
		s.events.Publish(events.NewEvent(events.EventTaskOverdue, events.SourceSweep, map[string]any{
			"count":    n,
			"swept_at": now,
		}))
	}
	return n, nil
}
