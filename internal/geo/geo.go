// Package geo implements the great-circle distance check used as the
// geofence admission gate.
package geo

import "math"

// earthRadiusKM is the mean Earth radius used by the Haversine formula.
const earthRadiusKM = 6371

// DistanceMeters returns the great-circle distance between two
// latitude/longitude pairs in meters.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := deg2rad(lat2 - lat1)
	dLon := deg2rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c * 1000
}

// WithinFence reports whether the point (lat, lon) lies inside the circle
// centered at (centerLat, centerLon) with the given radius in meters.
// No rounding happens before the comparison; rounding is presentation-only.
func WithinFence(centerLat, centerLon, radiusMeters, lat, lon float64) bool {
	return DistanceMeters(centerLat, centerLon, lat, lon) <= radiusMeters
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}
