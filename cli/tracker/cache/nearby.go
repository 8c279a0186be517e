package cache

import (
	"context"
	"math"
	"sort"

	"github.com/dispatchd/fleettrack/cli/tracker/geo"
	"github.com/dispatchd/fleettrack/cli/tracker/track"
)

// NearbyPosition is a live position annotated with its distance from the
// query point, rounded to two decimal places.
type NearbyPosition struct {
	track.Position
	DistanceKm float64 `json:"distance_km"`
}

// FindNearby returns the vehicles within radiusKm of the reference point,
// sorted ascending by distance. The query recomputes distances over the full
// snapshot; there is no persistent index. A non-positive radius matches only
// vehicles exactly at the reference point, if any.
func FindNearby(ctx context.Context, c Cache, lat, lng, radiusKm float64) ([]NearbyPosition, error) {
	snapshot, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	nearby := make([]NearbyPosition, 0)
	for _, p := range snapshot {
		distance := geo.Haversine(lat, lng, p.Lat, p.Lng)
		if distance > radiusKm {
			continue
		}
		nearby = append(nearby, NearbyPosition{
			Position:   p,
			DistanceKm: math.Round(distance*100) / 100,
		})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby, nil
}
