package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dispatchd/fleettrack/cli/tracker/cache"
	"github.com/dispatchd/fleettrack/cli/tracker/types"
)

// DefaultInterval is the period between reconciliation passes.
const DefaultInterval = 10 * time.Second

// maxConcurrentUpserts bounds per-vehicle store writes within one pass.
const maxConcurrentUpserts = 4

// LocationUpdater is the slice of the durable store the service writes to.
type LocationUpdater interface {
	UpdateLocation(id string, upd types.LocationUpdate) error
}

// Stats are process-wide reconciliation counters, reset only on restart.
// A pass over an empty cache is not counted as a sync: TotalSyncs moves only
// when at least one record was examined.
type Stats struct {
	TotalSyncs        int64      `json:"total_syncs"`
	SuccessfulUpdates int64      `json:"successful_updates"`
	FailedUpdates     int64      `json:"failed_updates"`
	LastSync          *time.Time `json:"last_sync,omitempty"`
}

// Service periodically folds the position cache into the durable vehicle
// store.
type Service struct {
	cache    cache.Cache
	store    LocationUpdater
	interval time.Duration

	mu      sync.Mutex
	stats   Stats
	running bool
	stop    chan struct{}
}

// NewService builds a stopped reconciliation service.
func NewService(c cache.Cache, store LocationUpdater, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{cache: c, store: store, interval: interval}
}

// Start launches the reconciliation loop. Calling Start on a running service
// is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	log.Infof("Location sync service started (interval: %s)", s.interval)
	go s.run(stop)
}

func (s *Service) run(stop chan struct{}) {
	for {
		s.syncLocations(context.Background())

		select {
		case <-time.After(s.interval):
		case <-stop:
			return
		}
	}
}

// Stop terminates the loop before its next sleep completes. Idempotent and
// safe to call from any goroutine; in-flight upserts are left to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	log.Info("Location sync service stopped")
}

// syncLocations performs one reconciliation pass. Per-vehicle failures are
// counted and skipped; they never abort the pass.
func (s *Service) syncLocations(ctx context.Context) {
	snapshot, err := s.cache.GetAll(ctx)
	if err != nil {
		log.WithField("err", err).Error("Failed to snapshot position cache, skipping pass")
		return
	}
	if len(snapshot) == 0 {
		log.Debug("No vehicle locations to sync")
		return
	}

	log.Debugf("Syncing %d vehicle locations to the durable store", len(snapshot))

	var succeeded, failed int64
	var counters sync.Mutex

	g := &errgroup.Group{}
	g.SetLimit(maxConcurrentUpserts)
	for _, p := range snapshot {
		p := p
		g.Go(func() error {
			address := fmt.Sprintf("Moving at %.1f mph", p.SpeedMph())
			upd := types.LocationUpdate{Lat: &p.Lat, Lng: &p.Lng, Address: &address}

			err := s.store.UpdateLocation(p.VehicleID, upd)

			counters.Lock()
			defer counters.Unlock()
			if err != nil {
				log.WithField("err", err).Errorf("Failed to sync vehicle %s", p.VehicleID)
				failed++
			} else {
				succeeded++
			}
			return nil
		})
	}
	_ = g.Wait()

	finished := time.Now()
	s.mu.Lock()
	s.stats.TotalSyncs++
	s.stats.SuccessfulUpdates += succeeded
	s.stats.FailedUpdates += failed
	s.stats.LastSync = &finished
	s.mu.Unlock()

	log.Debugf("Sync complete: %d updated, %d failed", succeeded, failed)
}

// GetStats returns a copy of the counters.
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
