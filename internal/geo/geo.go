// Package geo provides great-circle distance and travel-time estimates used
// by the matching allocator and delivery tracking.
package geo

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// DefaultSpeedKmh is the assumed courier speed when none is configured.
const DefaultSpeedKmh = 25.0

// DistanceKm returns the haversine distance between two coordinates in
// kilometers.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// ETA estimates travel time over the given distance at speedKmh. Non-positive
// speeds fall back to DefaultSpeedKmh.
func ETA(distanceKm, speedKmh float64) time.Duration {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	hours := distanceKm / speedKmh
	return time.Duration(hours * float64(time.Hour))
}

// ETAMinutes is ETA rounded up to whole minutes, with a floor of one minute
// for any non-zero distance. Useful for user-facing estimates.
func ETAMinutes(distanceKm, speedKmh float64) int {
	if distanceKm <= 0 {
		return 0
	}
	d := ETA(distanceKm, speedKmh)
	mins := int(math.Ceil(d.Minutes()))
	if mins < 1 {
		mins = 1
	}
	return mins
}
