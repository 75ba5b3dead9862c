package models

import (
	"time"
	_ "time/tzdata"
)

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

type Store struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name" validate:"required,max=120"`
	Latitude       *float64  `json:"latitude,omitempty" yaml:"latitude"`
	Longitude      *float64  `json:"longitude,omitempty" yaml:"longitude"`
	GeofenceRadius float64   `json:"geofence_radius_m" yaml:"geofence_radius_m" validate:"gte=0,lte=100000"`
	Timezone       string    `json:"timezone" yaml:"timezone"`
	Active         bool      `json:"active" yaml:"-"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"-"`
}

// Center returns the store's reference coordinate, or nil when none is configured.
func (s *Store) Center() *Coordinate {
	if s.Latitude == nil || s.Longitude == nil {
		return nil
	}
	return &Coordinate{Latitude: *s.Latitude, Longitude: *s.Longitude}
}

// GeofenceConfigured reports whether on-premises checks apply to this store.
func (s *Store) GeofenceConfigured() bool {
	return s.Center() != nil && s.GeofenceRadius > 0
}

// Location resolves the store timezone, falling back to fallback (or UTC)
// when the store has none or it cannot be loaded.
func (s *Store) Location(fallback *time.Location) *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	if fallback != nil {
		return fallback
	}
	return time.UTC
}
