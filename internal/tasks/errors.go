package tasks

import "fmt"

// Kind classifies a guard failure so callers can render an actionable
// message or map it to a transport status.
type Kind string

const (
	KindInvalidTransition Kind = "invalid_transition"
	KindLocationRequired  Kind = "location_required"
	KindOutsideGeofence   Kind = "outside_geofence"
	KindPhotosIncomplete  Kind = "photos_incomplete"
	KindNotHolder         Kind = "not_holder"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindInactive          Kind = "inactive"
	KindValidation        Kind = "validation"
)

// Error is returned for every caller-facing failure of the lifecycle and
// instantiation services. Storage faults are returned as plain wrapped errors.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotHolder)
// works regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrLocationRequired  = &Error{Kind: KindLocationRequired}
	ErrOutsideGeofence   = &Error{Kind: KindOutsideGeofence}
	ErrPhotosIncomplete  = &Error{Kind: KindPhotosIncomplete}
	ErrNotHolder         = &Error{Kind: KindNotHolder}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInactive          = &Error{Kind: KindInactive}
	ErrValidation        = &Error{Kind: KindValidation}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
