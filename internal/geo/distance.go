package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the spherical Earth radius used for distance calculations.
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometers between two
// points given in degrees, using the spherical law of cosines. The same
// expression runs inside the proximity SQL query; keep the two in sync.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := radians(lat1)
	lat2Rad := radians(lat2)
	deltaLng := radians(lng1 - lng2)

	a := math.Sin(lat1Rad)*math.Sin(lat2Rad) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLng)

	// Identical or antipodal points can push a just outside [-1, 1]
	// through floating-point error; acos would return NaN.
	a = clamp(a, -1, 1)

	return EarthRadiusKm * math.Acos(a)
}

// FormatKm renders a distance for display, rounded to one decimal place.
// Rounding happens only here, at the presentation boundary.
func FormatKm(km float64) string {
	return fmt.Sprintf("%.1f", km)
}

// RoundKm rounds a distance to one decimal place for response payloads.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
