// Package geofence classifies reported positions against a store's circular
// geofence.
package geofence

import (
	"math"

	"github.com/sunny-dsa/shiftcheck/pkg/models"
)

// EarthRadiusMeters is the IUGG mean earth radius.
const EarthRadiusMeters = 6371008.8

// DefaultNearMultiplier sizes the grace band around the radius.
const DefaultNearMultiplier = 1.5

type Classification string

const (
	Inside  Classification = "inside"
	Near    Classification = "near"
	Outside Classification = "outside"
	Unknown Classification = "unknown"
)

// Allowed reports whether the classification admits an on-premises action.
func (c Classification) Allowed() bool {
	return c == Inside || c == Near
}

type Result struct {
	DistanceMeters float64        `json:"distance_m"`
	RadiusMeters   float64        `json:"radius_m"`
	Classification Classification `json:"classification"`
}

// Evaluator holds the tunable grace band. The zero value uses
// DefaultNearMultiplier.
type Evaluator struct {
	NearMultiplier float64
}

// Evaluate classifies reported against the circle of radiusMeters around
// center. A missing center, a non-positive radius, or a missing or invalid
// reported coordinate yields Unknown.
func (e Evaluator) Evaluate(center *models.Coordinate, radiusMeters float64, reported *models.Coordinate) Result {
	res := Result{RadiusMeters: radiusMeters, Classification: Unknown}
	if center == nil || reported == nil || radiusMeters <= 0 {
		return res
	}
	if !Valid(*center) || !Valid(*reported) {
		return res
	}

	mult := e.NearMultiplier
	if mult < 1 {
		mult = DefaultNearMultiplier
	}

	d := Distance(*center, *reported)
	res.DistanceMeters = d
	switch {
	case d <= radiusMeters:
		res.Classification = Inside
	case d <= radiusMeters*mult:
		res.Classification = Near
	default:
		res.Classification = Outside
	}
	return res
}

// Evaluate uses the default grace band.
func Evaluate(center *models.Coordinate, radiusMeters float64, reported *models.Coordinate) Result {
	return Evaluator{}.Evaluate(center, radiusMeters, reported)
}

// Distance returns the haversine great-circle distance in meters.
func Distance(a, b models.Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLng := toRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Valid reports whether c is a finite coordinate within WGS84 bounds.
func Valid(c models.Coordinate) bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Offset returns the point distanceMeters from origin along bearingDegrees
// (clockwise from north).
func Offset(origin models.Coordinate, distanceMeters, bearingDegrees float64) models.Coordinate {
	lat1 := toRadians(origin.Latitude)
	lng1 := toRadians(origin.Longitude)
	brng := toRadians(bearingDegrees)
	ang := distanceMeters / EarthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) + math.Cos(lat1)*math.Sin(ang)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(math.Sin(brng)*math.Sin(ang)*math.Cos(lat1), math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2))

	return models.Coordinate{Latitude: toDegrees(lat2), Longitude: normalizeLng(toDegrees(lng2))}
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
