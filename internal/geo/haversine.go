// Package geo computes great-circle distances between coordinate pairs.
package geo

import "math"

// Unit selects the output unit for Distance.
type Unit int

const (
	Kilometers Unit = iota
	Miles
)

// Twice the mean Earth radius, per unit. The mile constant uses the
// statute-mile mean-radius approximation.
const (
	twoRKm = 12742.0
	twoRMi = 7918.0
)

const degToRad = math.Pi / 180.0

// Distance returns the haversine distance between two lat/lon points in
// degrees. It performs no range validation; out-of-range coordinates
// produce a numeric result the caller is free to discard. The function is
// symmetric in its arguments and returns exactly 0 for identical points.
func Distance(lat1, lon1, lat2, lon2 float64, unit Unit) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	sinLat := math.Sin((lat2 - lat1) * degToRad / 2)
	sinLon := math.Sin((lon2 - lon1) * degToRad / 2)
	a := sinLat*sinLat + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*sinLon*sinLon

	twoR := twoRKm
	if unit == Miles {
		twoR = twoRMi
	}
	return twoR * math.Asin(math.Sqrt(a))
}
