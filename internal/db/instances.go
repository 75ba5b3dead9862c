package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

var instanceColumnNames = []any{
	"id", "template_id", "store_id", "period_key", "title", "description", "assignment_rule",
	"assignee_id", "status", "priority", "scheduled_at", "due_at", "claimed_by", "claimed_at",
	"started_at", "completed_by", "completed_at", "duration_seconds", "required_photos",
	"uploaded_photos", "notes", "cancelled_by", "cancelled_at", "overdue_marked_at",
	"created_at", "updated_at",
}

const instanceColumns = `id, template_id, store_id, period_key, title, description, assignment_rule,
	assignee_id, status, priority, scheduled_at, due_at, claimed_by, claimed_at,
	started_at, completed_by, completed_at, duration_seconds, required_photos,
	uploaded_photos, notes, cancelled_by, cancelled_at, overdue_marked_at,
	created_at, updated_at`

// FindOrCreateInstance inserts inst unless a live instance already exists for
// its (template, store, period) key, in which case the existing row is
// returned. The boolean reports whether inst was inserted.
func (db *DB) FindOrCreateInstance(ctx context.Context, inst *models.TaskInstance) (*models.TaskInstance, bool, error) {
	var (
		result  *models.TaskInstance
		created bool
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := db.insertInstance(ctx, tx, inst, true)
		if err == nil {
			result, created = inst, true
			return nil
		}
		if !errors.Is(err, ErrDuplicateInstance) {
			return err
		}

		existing, err := db.getInstanceByPeriod(ctx, tx, *inst.TemplateID, inst.StoreID, inst.PeriodKey)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("failed to resolve duplicate instance for template %s", *inst.TemplateID)
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		db.triggerChange(ctx)
	}
	return result, created, nil
}

// CreateInstance inserts an instance that is not keyed by period, such as an
// ad hoc task.
func (db *DB) CreateInstance(ctx context.Context, inst *models.TaskInstance) error {
	if err := db.insertInstance(ctx, db.DB, inst, false); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

// insertInstance returns ErrDuplicateInstance when ignoreConflict is set and
// the period key is already taken.
func (db *DB) insertInstance(ctx context.Context, exec executor, inst *models.TaskInstance, ignoreConflict bool) error {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	if inst.PeriodKey == "" {
		inst.PeriodKey = models.PeriodAdhoc
	}
	now := db.clock()
	if inst.ScheduledAt.IsZero() {
		inst.ScheduledAt = now
	}
	inst.CreatedAt, inst.UpdatedAt = now, now

	query := `
		INSERT INTO task_instances (` + instanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if ignoreConflict {
		query += ` ON CONFLICT DO NOTHING`
	}

	res, err := exec.ExecContext(ctx, query,
		inst.ID, inst.TemplateID, inst.StoreID, inst.PeriodKey, inst.Title, inst.Description,
		inst.AssignmentRule, inst.AssigneeID, inst.Status, inst.Priority,
		formatTime(inst.ScheduledAt), timeArg(inst.DueAt), inst.ClaimedBy, timeArg(inst.ClaimedAt),
		timeArg(inst.StartedAt), inst.CompletedBy, timeArg(inst.CompletedAt), inst.DurationSeconds,
		inst.RequiredPhotos, inst.UploadedPhotos, inst.Notes, inst.CancelledBy,
		timeArg(inst.CancelledAt), timeArg(inst.OverdueMarkedAt),
		formatTime(inst.CreatedAt), formatTime(inst.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create task instance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDuplicateInstance
	}
	return nil
}

// GetInstance retrieves a task instance by its ID. It returns nil when no
// instance matches.
func (db *DB) GetInstance(ctx context.Context, id string) (*models.TaskInstance, error) {
	return db.getInstance(ctx, db.DB, id)
}

func (db *DB) getInstance(ctx context.Context, exec executor, id string) (*models.TaskInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM task_instances WHERE id = ?`
	inst, err := scanInstance(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task instance: %w", err)
	}
	return inst, nil
}

// GetInstanceByPeriod returns the live instance for a template, store and
// period key, or nil when none exists.
func (db *DB) GetInstanceByPeriod(ctx context.Context, templateID, storeID, periodKey string) (*models.TaskInstance, error) {
	return db.getInstanceByPeriod(ctx, db.DB, templateID, storeID, periodKey)
}

func (db *DB) getInstanceByPeriod(ctx context.Context, exec executor, templateID, storeID, periodKey string) (*models.TaskInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM task_instances
		WHERE template_id = ? AND store_id = ? AND period_key = ? AND status != 'cancelled'
	`
	inst, err := scanInstance(exec.QueryRowContext(ctx, query, templateID, storeID, periodKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task instance by period: %w", err)
	}
	return inst, nil
}

// InstanceFilter narrows ListInstances. Zero values do not filter.
type InstanceFilter struct {
	StoreID    string
	Status     models.TaskStatus
	TemplateID string
	PeriodKey  string
	ClaimedBy  string
	// ScheduledFrom and ScheduledTo bound scheduled_at as [from, to).
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
	// Now decides which open instances count as overdue. Zero means the
	// database clock.
	Now   time.Time
	Limit int
}

// ListInstances returns instances matching f, highest priority first.
// Filtering by a status matches the status readers see: an expired open
// instance only matches TaskStatusOverdue.
func (db *DB) ListInstances(ctx context.Context, f InstanceFilter) ([]*models.TaskInstance, error) {
	now := f.Now
	if now.IsZero() {
		now = db.clock()
	}
	nowArg := formatTime(now)

	var where []exp.Expression
	if f.StoreID != "" {
		where = append(where, goqu.C("store_id").Eq(f.StoreID))
	}
	if f.TemplateID != "" {
		where = append(where, goqu.C("template_id").Eq(f.TemplateID))
	}
	if f.PeriodKey != "" {
		where = append(where, goqu.C("period_key").Eq(f.PeriodKey))
	}
	if f.ClaimedBy != "" {
		where = append(where, goqu.C("claimed_by").Eq(f.ClaimedBy))
	}
	if f.ScheduledFrom != nil {
		where = append(where, goqu.C("scheduled_at").Gte(formatTime(*f.ScheduledFrom)))
	}
	if f.ScheduledTo != nil {
		where = append(where, goqu.C("scheduled_at").Lt(formatTime(*f.ScheduledTo)))
	}

	switch {
	case f.Status == "":
	case f.Status == models.TaskStatusOverdue:
		where = append(where,
			goqu.C("status").NotIn(terminalStatuses()),
			goqu.C("due_at").IsNotNull(),
			goqu.C("due_at").Lt(nowArg),
		)
	case f.Status.Terminal():
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	default:
		where = append(where,
			goqu.C("status").Eq(string(f.Status)),
			goqu.Or(goqu.C("due_at").IsNull(), goqu.C("due_at").Gte(nowArg)),
		)
	}

	ds := dialect.From("task_instances").
		Select(instanceColumnNames...).
		Where(where...).
		Order(goqu.C("priority").Desc(), goqu.C("scheduled_at").Asc(), goqu.C("created_at").Asc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list task instances: %w", err)
	}
	defer rows.Close()

	var instances []*models.TaskInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task instance: %w", err)
		}
		instances = append(instances, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return instances, nil
}

// casGuard describes the state a row must be in for a guarded update to apply.
type casGuard struct {
	from   []models.TaskStatus
	holder string
	// openAt rejects rows whose due time is before it.
	openAt *time.Time
}

// casUpdate applies set to the instance only while it still satisfies guard,
// and returns the updated row. A guard miss yields ErrStaleStatus.
func (db *DB) casUpdate(ctx context.Context, exec executor, id string, guard casGuard, set goqu.Record) (*models.TaskInstance, error) {
	set["updated_at"] = formatTime(db.clock())

	where := []exp.Expression{
		goqu.C("id").Eq(id),
		goqu.C("status").In(statusStrings(guard.from)),
	}
	if guard.holder != "" {
		where = append(where, goqu.C("claimed_by").Eq(guard.holder))
	}
	if guard.openAt != nil {
		where = append(where, goqu.Or(goqu.C("due_at").IsNull(), goqu.C("due_at").Gte(formatTime(*guard.openAt))))
	}

	query, args, err := dialect.Update("task_instances").Set(set).Where(where...).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task instance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrStaleStatus
	}

	return db.getInstance(ctx, exec, id)
}

// guardedUpdate runs casUpdate in its own transaction and fires the change hook.
func (db *DB) guardedUpdate(ctx context.Context, id string, guard casGuard, set goqu.Record) (*models.TaskInstance, error) {
	var inst *models.TaskInstance
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		inst, err = db.casUpdate(ctx, tx, id, guard, set)
		return err
	})
	if err != nil {
		return nil, err
	}

	db.triggerChange(ctx)
	return inst, nil
}

// PublishInstance moves a pending instance to available.
func (db *DB) PublishInstance(ctx context.Context, id string) (*models.TaskInstance, error) {
	return db.guardedUpdate(ctx, id,
		casGuard{from: []models.TaskStatus{models.TaskStatusPending}},
		goqu.Record{"status": string(models.TaskStatusAvailable)},
	)
}

// ClaimInstance atomically assigns the instance to actorID. It only applies
// while the status is one of from and the instance is not past due at at.
func (db *DB) ClaimInstance(ctx context.Context, id, actorID string, from []models.TaskStatus, at time.Time) (*models.TaskInstance, error) {
	return db.guardedUpdate(ctx, id,
		casGuard{from: from, openAt: &at},
		goqu.Record{
			"status":     string(models.TaskStatusClaimed),
			"claimed_by": actorID,
			"claimed_at": formatTime(at),
		},
	)
}

// StartInstance moves a claimed instance held by actorID to in_progress.
func (db *DB) StartInstance(ctx context.Context, id, actorID string, at time.Time) (*models.TaskInstance, error) {
	return db.guardedUpdate(ctx, id,
		casGuard{from: []models.TaskStatus{models.TaskStatusClaimed}, holder: actorID},
		goqu.Record{
			"status":     string(models.TaskStatusInProgress),
			"started_at": formatTime(at),
		},
	)
}

// Completion carries the fields written when an instance completes.
type Completion struct {
	ActorID string
	At      time.Time
	// From lists the statuses completion may start from.
	From []models.TaskStatus
	// Holder, when set, requires the instance to be held by that actor.
	Holder          string
	DurationSeconds *int64
	Notes           *string
}

// CompleteInstance marks the instance completed exactly once.
func (db *DB) CompleteInstance(ctx context.Context, id string, c Completion) (*models.TaskInstance, error) {
	set := goqu.Record{
		"status":           string(models.TaskStatusCompleted),
		"completed_by":     c.ActorID,
		"completed_at":     formatTime(c.At),
		"duration_seconds": nil,
	}
	if c.DurationSeconds != nil {
		set["duration_seconds"] = *c.DurationSeconds
	}
	if c.Notes != nil {
		set["notes"] = *c.Notes
	}
	return db.guardedUpdate(ctx, id, casGuard{from: c.From, holder: c.Holder}, set)
}

// CancelInstance moves any non-completed instance to cancelled.
func (db *DB) CancelInstance(ctx context.Context, id, actorID string, at time.Time, notes *string) (*models.TaskInstance, error) {
	set := goqu.Record{
		"status":       string(models.TaskStatusCancelled),
		"cancelled_by": actorID,
		"cancelled_at": formatTime(at),
	}
	if notes != nil {
		set["notes"] = *notes
	}
	return db.guardedUpdate(ctx, id, casGuard{from: openStatuses()}, set)
}

// MarkOverdue stamps overdue_marked_at on open instances that were due
// before now and have not been stamped yet. Status is left alone.
func (db *DB) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE task_instances
		SET overdue_marked_at = ?
		WHERE status NOT IN ('completed', 'cancelled')
		  AND due_at IS NOT NULL
		  AND due_at < ?
		  AND overdue_marked_at IS NULL
	`
	nowArg := formatTime(now)
	res, err := db.ExecContext(ctx, query, nowArg, nowArg)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue instances: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		db.triggerChange(ctx)
	}
	return rows, nil
}

func openStatuses() []models.TaskStatus {
	return []models.TaskStatus{
		models.TaskStatusPending, models.TaskStatusAvailable,
		models.TaskStatusClaimed, models.TaskStatusInProgress,
	}
}

func terminalStatuses() []string {
	return []string{string(models.TaskStatusCompleted), string(models.TaskStatusCancelled)}
}

func statusStrings(statuses []models.TaskStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanInstance(row rowScanner) (*models.TaskInstance, error) {
	t := &models.TaskInstance{}
	err := row.Scan(
		&t.ID, &t.TemplateID, &t.StoreID, &t.PeriodKey, &t.Title, &t.Description, &t.AssignmentRule,
		&t.AssigneeID, &t.Status, &t.Priority, timeCol{&t.ScheduledAt}, nullTimeCol{&t.DueAt},
		&t.ClaimedBy, nullTimeCol{&t.ClaimedAt}, nullTimeCol{&t.StartedAt}, &t.CompletedBy,
		nullTimeCol{&t.CompletedAt}, &t.DurationSeconds, &t.RequiredPhotos, &t.UploadedPhotos,
		&t.Notes, &t.CancelledBy, nullTimeCol{&t.CancelledAt}, nullTimeCol{&t.OverdueMarkedAt},
		timeCol{&t.CreatedAt}, timeCol{&t.UpdatedAt},
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}
