package models

import "time"

type RecurrenceType string

const (
	RecurrenceNone    RecurrenceType = "none"
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

type AssignmentRule string

const (
	AssignStoreWide   AssignmentRule = "store_wide"
	AssignManagerOnly AssignmentRule = "manager_only"
	AssignSpecific    AssignmentRule = "specific"
)

// Template is a reusable checklist item. Instances reference it by ID and
// snapshot its content at creation time.
type Template struct {
	ID                string         `json:"id" yaml:"id"`
	Title             string         `json:"title" yaml:"title" validate:"required,max=200"`
	Description       string         `json:"description" yaml:"description" validate:"max=4000"`
	StoreID           *string        `json:"store_id,omitempty" yaml:"store_id"`
	RecurrenceType    RecurrenceType `json:"recurrence_type" yaml:"recurrence_type" validate:"required,oneof=none daily weekly monthly"`
	RecurrencePattern string         `json:"recurrence_pattern,omitempty" yaml:"recurrence_pattern" validate:"max=200"`
	AssignmentRule    AssignmentRule `json:"assignment_rule" yaml:"assignment_rule" validate:"required,oneof=store_wide manager_only specific"`
	AssigneeID        *string        `json:"assignee_id,omitempty" yaml:"assignee_id" validate:"required_if=AssignmentRule specific"`
	RequiresPhoto     bool           `json:"requires_photo" yaml:"requires_photo"`
	RequiredPhotos    int            `json:"required_photos" yaml:"required_photos" validate:"gte=0,lte=50"`
	Priority          int            `json:"priority" yaml:"priority" validate:"gte=0,lte=10"`
	Active            bool           `json:"active" yaml:"-"`
	CreatedAt         time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time      `json:"updated_at" yaml:"-"`
}

// NormalizePhotoRequirement makes the photo flag and count agree: a required
// photo with no count means one photo, and no requirement means zero.
func (t *Template) NormalizePhotoRequirement() {
	t.RequiredPhotos = NormalizeRequiredPhotos(t.RequiresPhoto, t.RequiredPhotos)
	t.RequiresPhoto = t.RequiredPhotos > 0
}

// AppliesTo reports whether the template is scheduled for the given store.
func (t *Template) AppliesTo(storeID string) bool {
	return t.StoreID == nil || *t.StoreID == storeID
}

func NormalizeRequiredPhotos(requires bool, count int) int {
	if !requires {
		return 0
	}
	if count < 1 {
		return 1
	}
	return count
}
