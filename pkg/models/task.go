package models

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusAvailable  TaskStatus = "available"
	TaskStatusClaimed    TaskStatus = "claimed"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"

	// TaskStatusOverdue is never stored. Readers see it in place of any
	// non-terminal status once the due time has passed.
	TaskStatusOverdue TaskStatus = "overdue"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// Held reports whether a claimant is currently working the task.
func (s TaskStatus) Held() bool {
	return s == TaskStatusClaimed || s == TaskStatusInProgress
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAvailable, TaskStatusClaimed, TaskStatusInProgress,
		TaskStatusCompleted, TaskStatusCancelled, TaskStatusOverdue:
		return true
	}
	return false
}

// PeriodAdhoc is the period key of instances that do not repeat.
const PeriodAdhoc = "adhoc"

// TaskInstance is one occurrence of a template (or an ad hoc task) at one store.
type TaskInstance struct {
	ID              string         `json:"id"`
	TemplateID      *string        `json:"template_id,omitempty"`
	StoreID         string         `json:"store_id"`
	PeriodKey       string         `json:"period_key"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	AssignmentRule  AssignmentRule `json:"assignment_rule"`
	AssigneeID      *string        `json:"assignee_id,omitempty"`
	Status          TaskStatus     `json:"status"`
	Priority        int            `json:"priority"`
	ScheduledAt     time.Time      `json:"scheduled_at"`
	DueAt           *time.Time     `json:"due_at,omitempty"`
	ClaimedBy       *string        `json:"claimed_by,omitempty"`
	ClaimedAt       *time.Time     `json:"claimed_at,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedBy     *string        `json:"completed_by,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	DurationSeconds *int64         `json:"actual_duration_seconds,omitempty"`
	RequiredPhotos  int            `json:"required_photos"`
	UploadedPhotos  int            `json:"uploaded_photos"`
	Notes           string         `json:"notes"`
	CancelledBy     *string        `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty"`
	OverdueMarkedAt *time.Time     `json:"overdue_marked_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	// StoredStatus keeps the persisted status when Status has been replaced
	// by the overdue view.
	StoredStatus TaskStatus `json:"stored_status,omitempty"`
}

// IsOverdue reports whether the task is past due and still open at now.
func (t *TaskInstance) IsOverdue(now time.Time) bool {
	status := t.Status
	if t.StoredStatus != "" {
		status = t.StoredStatus
	}
	return !status.Terminal() && t.DueAt != nil && now.After(*t.DueAt)
}

// ApplyOverdueView rewrites Status to overdue when the task has expired,
// keeping the persisted value in StoredStatus.
func (t *TaskInstance) ApplyOverdueView(now time.Time) {
	if t.StoredStatus == "" {
		t.StoredStatus = t.Status
	}
	if t.IsOverdue(now) {
		t.Status = TaskStatusOverdue
	} else {
		t.Status = t.StoredStatus
	}
}

// HeldBy reports whether actorID currently holds the task.
func (t *TaskInstance) HeldBy(actorID string) bool {
	return t.persistedStatus().Held() && t.ClaimedBy != nil && *t.ClaimedBy == actorID
}

func (t *TaskInstance) persistedStatus() TaskStatus {
	if t.StoredStatus != "" {
		return t.StoredStatus
	}
	return t.Status
}

// PhotosSatisfied reports whether the photo gate is met.
func (t *TaskInstance) PhotosSatisfied() bool {
	return t.RequiredPhotos <= 0 || t.UploadedPhotos >= t.RequiredPhotos
}
