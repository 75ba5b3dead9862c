package models

import "time"

type CheckinSource string

const (
	CheckinGeofence CheckinSource = "geofence"
	CheckinManual   CheckinSource = "manual"
)

// Checkin records that an actor was verified on premises at a store.
type Checkin struct {
	ActorID     string        `json:"actor_id"`
	StoreID     string        `json:"store_id"`
	CheckedInAt time.Time     `json:"checked_in_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Source      CheckinSource `json:"source"`
}

func (c *Checkin) ValidAt(now time.Time) bool {
	return now.Before(c.ExpiresAt)
}
