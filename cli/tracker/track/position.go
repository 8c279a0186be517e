package track

import (
	"encoding/json"
	"time"
)

// Position is a vehicle's most recent known location. A record is always
// replaced as a whole, never field-by-field.
type Position struct {
	VehicleID string    `json:"vehicle_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Speed     *float64  `json:"speed,omitempty"`   // mph
	Heading   *float64  `json:"heading,omitempty"` // degrees, [0, 360)
	Timestamp time.Time `json:"timestamp"`
}

// ToBytes serializes the record into the wire form used for cache values and
// channel payloads.
func (p Position) ToBytes() ([]byte, error) {
	return json.Marshal(p)
}

// FromBytes decodes a record previously produced by ToBytes.
func FromBytes(data []byte) (Position, error) {
	var p Position
	err := json.Unmarshal(data, &p)
	return p, err
}

// SpeedMph returns the speed or 0 when the record carries none.
func (p Position) SpeedMph() float64 {
	if p.Speed == nil {
		return 0
	}
	return *p.Speed
}

// HeadingDeg returns the heading or 0 when the record carries none.
func (p Position) HeadingDeg() float64 {
	if p.Heading == nil {
		return 0
	}
	return *p.Heading
}
