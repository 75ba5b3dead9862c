package tasks

import "github.com/sunny-dsa/shiftcheck/pkg/models"

// transitions lists every legal status change. Overdue is derived on read and
// never appears here.
var transitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusPending:    {models.TaskStatusAvailable, models.TaskStatusClaimed, models.TaskStatusCompleted, models.TaskStatusCancelled},
	models.TaskStatusAvailable:  {models.TaskStatusClaimed, models.TaskStatusCompleted, models.TaskStatusCancelled},
	models.TaskStatusClaimed:    {models.TaskStatusInProgress, models.TaskStatusCompleted, models.TaskStatusCancelled},
	models.TaskStatusInProgress: {models.TaskStatusCompleted, models.TaskStatusCancelled},
}

// CanTransition reports whether a stored status may move to another. Moves
// out of pending or available straight to completed exist only for forced
// completion.
func CanTransition(from, to models.TaskStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// sourcesOf returns the statuses from which to is reachable, limited to
// those in allowed when allowed is non-empty.
func sourcesOf(to models.TaskStatus, allowed ...models.TaskStatus) []models.TaskStatus {
	var out []models.TaskStatus
	for _, from := range []models.TaskStatus{
		models.TaskStatusPending, models.TaskStatusAvailable,
		models.TaskStatusClaimed, models.TaskStatusInProgress,
	} {
		if !CanTransition(from, to) {
			continue
		}
		if len(allowed) > 0 && !containsStatus(allowed, from) {
			continue
		}
		out = append(out, from)
	}
	return out
}

func containsStatus(list []models.TaskStatus, s models.TaskStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
