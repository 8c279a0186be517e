package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dispatchd/fleettrack/cli/tracker/geo"
	"github.com/dispatchd/fleettrack/cli/tracker/track"
	"github.com/dispatchd/fleettrack/cli/tracker/types"
)

// DefaultInterval is the period between position ticks.
const DefaultInterval = time.Second

const (
	mphToKmh = 1.60934

	// Patrol speed range in mph.
	minSpeedMph = 20.0
	maxSpeedMph = 60.0

	// Remaining distance under which a vehicle is considered arrived
	// (<10 m).
	arrivalThresholdKm = 0.01
)

// DefaultBounds is the Atlanta patrol rectangle used when no bounding box is
// configured.
var DefaultBounds = geo.Bounds{
	MinLat: 33.6490,
	MaxLat: 33.8490,
	MinLng: -84.5880,
	MaxLng: -84.2880,
}

// PositionWriter receives the position produced by each tick.
type PositionWriter interface {
	Update(ctx context.Context, p track.Position) error
}

// vehicleState is the simulator-private state of one patrolling vehicle.
// Distinct from the cached position record it produces every tick.
type vehicleState struct {
	lat       float64
	lng       float64
	targetLat float64
	targetLng float64
	speedMph  float64
	speedKmh  float64
}

// Simulator moves vehicles toward random waypoints at patrol speed and writes
// each new position to the cache.
type Simulator struct {
	writer   PositionWriter
	interval time.Duration
	bounds   geo.Bounds

	mu       sync.Mutex
	vehicles map[string]*vehicleState
	rnd      *rand.Rand
	running  bool
	stop     chan struct{}
}

// NewSimulator builds a stopped simulator with no vehicles.
func NewSimulator(writer PositionWriter, interval time.Duration, bounds geo.Bounds) *Simulator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if !bounds.Valid() {
		bounds = DefaultBounds
	}
	return &Simulator{
		writer:   writer,
		interval: interval,
		bounds:   bounds,
		vehicles: make(map[string]*vehicleState),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AddVehicle starts simulating a vehicle. When no start coordinates are
// given a random point inside the bounding box is chosen. The vehicle gets a
// fresh random waypoint and speed.
func (s *Simulator) AddVehicle(id string, startLat, startLng *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lat, lng := s.bounds.RandomPoint(s.rnd)
	if startLat != nil && startLng != nil {
		lat, lng = *startLat, *startLng
	}
	targetLat, targetLng := s.bounds.RandomPoint(s.rnd)
	speedMph := minSpeedMph + s.rnd.Float64()*(maxSpeedMph-minSpeedMph)

	s.vehicles[id] = &vehicleState{
		lat:       lat,
		lng:       lng,
		targetLat: targetLat,
		targetLng: targetLng,
		speedMph:  speedMph,
		speedKmh:  speedMph * mphToKmh,
	}

	log.Infof("Added %s to simulator at (%.4f, %.4f), heading to (%.4f, %.4f) at %.1f mph",
		id, lat, lng, targetLat, targetLng, speedMph)
}

// RemoveVehicle drops the simulator state for a vehicle. The cache entry is
// left to expire via TTL unless the caller deletes it explicitly.
func (s *Simulator) RemoveVehicle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vehicles[id]; ok {
		delete(s.vehicles, id)
		log.Infof("Removed %s from simulator", id)
	}
}

// ActiveVehicles is the number of vehicles currently being simulated.
func (s *Simulator) ActiveVehicles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vehicles)
}

// VehicleLister is the slice of the durable store the bootstrap reads.
type VehicleLister interface {
	ListActive() ([]types.Vehicle, error)
}

// PopulateFromStore adds every non-idle vehicle from the durable store at its
// last known location. Vehicles that have never reported a location are
// skipped. One-time bootstrap, not a continuous sync.
func (s *Simulator) PopulateFromStore(store VehicleLister) error {
	vehicles, err := store.ListActive()
	if err != nil {
		return err
	}

	added := 0
	for _, v := range vehicles {
		if v.Lat == nil || v.Lng == nil {
			log.Debugf("Skipping %s: no known location", v.ID)
			continue
		}
		s.AddVehicle(v.ID, v.Lat, v.Lng)
		added++
	}
	log.Infof("Added %d vehicles from the durable store to the simulator", added)
	return nil
}

// Start launches the tick loop. Calling Start on a running simulator is a
// no-op.
func (s *Simulator) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	log.Infof("Vehicle simulator started (update interval: %s)", s.interval)
	go s.run(stop)
}

func (s *Simulator) run(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(context.Background())
		case <-stop:
			return
		}
	}
}

// Stop halts the tick loop. Idempotent; the current tick is allowed to
// finish.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	log.Info("Vehicle simulator stopped")
}

// tick advances every vehicle once and writes the new positions. A cache
// write failure for one vehicle never stops the others.
func (s *Simulator) tick(ctx context.Context) {
	now := time.Now().UTC()

	s.mu.Lock()
	positions := make([]track.Position, 0, len(s.vehicles))
	for id, v := range s.vehicles {
		positions = append(positions, s.advance(id, v, now))
	}
	s.mu.Unlock()

	for _, p := range positions {
		if err := s.writer.Update(ctx, p); err != nil {
			log.WithField("err", err).Errorf("Failed to write position for %s", p.VehicleID)
		}
	}
}

// advance moves one vehicle toward its waypoint by one interval's worth of
// travel and regenerates the waypoint on arrival. Caller holds s.mu.
func (s *Simulator) advance(id string, v *vehicleState, now time.Time) track.Position {
	stepKm := v.speedKmh / 3600 * s.interval.Seconds()
	newLat, newLng, remaining := geo.MoveTowards(v.lat, v.lng, v.targetLat, v.targetLng, stepKm)
	heading := geo.Bearing(v.lat, v.lng, newLat, newLng)

	v.lat = newLat
	v.lng = newLng

	if remaining < arrivalThresholdKm {
		v.targetLat, v.targetLng = s.bounds.RandomPoint(s.rnd)
		v.speedMph = minSpeedMph + s.rnd.Float64()*(maxSpeedMph-minSpeedMph)
		v.speedKmh = v.speedMph * mphToKmh

		log.Debugf("%s reached waypoint, new target (%.4f, %.4f) at %.1f mph",
			id, v.targetLat, v.targetLng, v.speedMph)
	}

	speed := v.speedMph
	return track.Position{
		VehicleID: id,
		Lat:       newLat,
		Lng:       newLng,
		Speed:     &speed,
		Heading:   &heading,
		Timestamp: now,
	}
}
