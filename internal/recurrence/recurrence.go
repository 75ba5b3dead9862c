// Package recurrence maps a recurrence type and an instant to the period the
// instant falls in. Instances are deduplicated on the period key.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

var ErrUnknownRecurrence = errors.New("unknown recurrence type")

// PeriodKey identifies one recurrence cycle, e.g. "2026-10-14", "2026-W42",
// "2026-10" or the ad hoc sentinel.
type PeriodKey string

func (k PeriodKey) String() string { return string(k) }

// Adhoc reports whether the key is the non-repeating sentinel.
func (k PeriodKey) Adhoc() bool { return string(k) == models.PeriodAdhoc }

// PeriodKeyFor returns the key of the period containing at, evaluated in loc.
// A nil loc means UTC.
func PeriodKeyFor(rt models.RecurrenceType, at time.Time, loc *time.Location) (PeriodKey, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)

	switch rt {
	case models.RecurrenceNone:
		return PeriodKey(models.PeriodAdhoc), nil
	case models.RecurrenceDaily:
		return PeriodKey(local.Format("2006-01-02")), nil
	case models.RecurrenceWeekly:
		year, week := local.ISOWeek()
		return PeriodKey(fmt.Sprintf("%04d-W%02d", year, week)), nil
	case models.RecurrenceMonthly:
		return PeriodKey(local.Format("2006-01")), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRecurrence, rt)
	}
}

// IsDueAt reports whether an instance should be manufactured on demand for
// the period containing at. Recurring types are always due for the current
// period; non-repeating templates are only instantiated on explicit request.
func IsDueAt(rt models.RecurrenceType, at time.Time) bool {
	switch rt {
	case models.RecurrenceDaily, models.RecurrenceWeekly, models.RecurrenceMonthly:
		return true
	default:
		return false
	}
}

// Window returns the start and exclusive end of the period containing at.
// ok is false for non-repeating and unknown types.
func Window(rt models.RecurrenceType, at time.Time, loc *time.Location) (start, end time.Time, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	y, m, d := local.Date()

	switch rt {
	case models.RecurrenceDaily:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		end = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	case models.RecurrenceWeekly:
		// ISO weeks start on Monday.
		offset := (int(local.Weekday()) + 6) % 7
		start = time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
		end = time.Date(y, m, d-offset+7, 0, 0, 0, 0, loc)
	case models.RecurrenceMonthly:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		end = time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	default:
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// Valid reports whether rt is one of the supported recurrence types.
func Valid(rt models.RecurrenceType) bool {
	switch rt {
	case models.RecurrenceNone, models.RecurrenceDaily, models.RecurrenceWeekly, models.RecurrenceMonthly:
		return true
	}
	return false
}
