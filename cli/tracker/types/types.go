package types

// Vehicle is the slice of the durable vehicle document the tracking engine
// reads: identity, dispatch status and last known location. Lat and Lng are
// nil for a vehicle that has never reported a location.
type Vehicle struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
}

// StatusIdle marks vehicles excluded from simulator bootstrap.
const StatusIdle = "idle"

// LocationUpdate is a partial update of a vehicle's location fields. A nil
// field is left untouched; the upsert statement only carries the set ones.
type LocationUpdate struct {
	Lat     *float64
	Lng     *float64
	Address *string
}

// Empty reports whether no field is set.
func (u LocationUpdate) Empty() bool {
	return u.Lat == nil && u.Lng == nil && u.Address == nil
}
