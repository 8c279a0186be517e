package geo

import (
	"math"
	"math/rand"
)

// EarthRadiusKm is the sphere radius used for all great-circle math.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two points in
// kilometers.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Pow(math.Sin(deltaLat/2), 2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Pow(math.Sin(deltaLng/2), 2)
	return EarthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

// Bearing returns the initial bearing from the first point to the second in
// degrees, normalized to [0, 360).
func Bearing(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	x := math.Sin(deltaLng) * math.Cos(lat2Rad)
	y := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLng)

	bearing := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// MoveTowards advances a point towards a target by at most stepKm. When the
// step covers the remaining distance the target itself is returned. Otherwise
// the coordinates are interpolated linearly, an accepted approximation at
// patrol scale.
func MoveTowards(lat, lng, targetLat, targetLng, stepKm float64) (newLat, newLng, remainingKm float64) {
	distance := Haversine(lat, lng, targetLat, targetLng)
	if stepKm >= distance {
		return targetLat, targetLng, 0
	}

	fraction := stepKm / distance
	newLat = lat + (targetLat-lat)*fraction
	newLng = lng + (targetLng-lng)*fraction
	return newLat, newLng, distance - stepKm
}

// Bounds is a geographic rectangle used for random waypoint generation.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Valid reports whether the rectangle has positive extent on both axes.
func (b Bounds) Valid() bool {
	return b.MinLat < b.MaxLat && b.MinLng < b.MaxLng
}

// RandomPoint returns a uniformly distributed point inside the rectangle.
func (b Bounds) RandomPoint(rnd *rand.Rand) (lat, lng float64) {
	lat = b.MinLat + rnd.Float64()*(b.MaxLat-b.MinLat)
	lng = b.MinLng + rnd.Float64()*(b.MaxLng-b.MinLng)
	return lat, lng
}
