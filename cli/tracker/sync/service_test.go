package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fleettrack/cli/tracker/cache"
	"github.com/dispatchd/fleettrack/cli/tracker/track"
	"github.com/dispatchd/fleettrack/cli/tracker/types"
)

// mockStore records location upserts and optionally fails for chosen ids.
type mockStore struct {
	mu      stdsync.Mutex
	updates map[string]types.LocationUpdate
	failFor map[string]bool
}

func newMockStore() *mockStore {
	return &mockStore{updates: map[string]types.LocationUpdate{}, failFor: map[string]bool{}}
}

func (m *mockStore) UpdateLocation(id string, upd types.LocationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFor[id] {
		return errors.New("store down")
	}
	m.updates[id] = upd
	return nil
}

func seed(t *testing.T, m *cache.Memory, id string, lat, lng, speed float64) {
	t.Helper()
	require.NoError(t, m.Update(context.Background(), track.Position{
		VehicleID: id,
		Lat:       lat,
		Lng:       lng,
		Speed:     &speed,
		Timestamp: time.Now().UTC(),
	}))
}

func TestSyncLocations_UpsertsEveryVehicle(t *testing.T) {
	m := cache.NewMemory(cache.DefaultTTL)
	st := newMockStore()
	svc := NewService(m, st, DefaultInterval)

	seed(t, m, "PC-001", 33.7490, -84.3880, 42.0)
	seed(t, m, "PC-002", 33.7600, -84.3900, 28.5)

	svc.syncLocations(context.Background())

	require.Len(t, st.updates, 2)
	upd := st.updates["PC-001"]
	require.NotNil(t, upd.Lat)
	require.NotNil(t, upd.Lng)
	require.NotNil(t, upd.Address)
	assert.Equal(t, 33.7490, *upd.Lat)
	assert.Equal(t, -84.3880, *upd.Lng)
	assert.Equal(t, "Moving at 42.0 mph", *upd.Address)

	stats := svc.GetStats()
	assert.Equal(t, int64(1), stats.TotalSyncs)
	assert.Equal(t, int64(2), stats.SuccessfulUpdates)
	assert.Equal(t, int64(0), stats.FailedUpdates)
	require.NotNil(t, stats.LastSync)
}

func TestSyncLocations_EmptyCacheCountsNothing(t *testing.T) {
	svc := NewService(cache.NewMemory(cache.DefaultTTL), newMockStore(), DefaultInterval)

	svc.syncLocations(context.Background())

	stats := svc.GetStats()
	assert.Equal(t, int64(0), stats.TotalSyncs, "an empty snapshot is not a sync")
	assert.Equal(t, int64(0), stats.SuccessfulUpdates)
	assert.Equal(t, int64(0), stats.FailedUpdates)
	assert.Nil(t, stats.LastSync)
}

func TestSyncLocations_SingleFailureDoesNotAbortPass(t *testing.T) {
	m := cache.NewMemory(cache.DefaultTTL)
	st := newMockStore()
	st.failFor["PC-002"] = true
	svc := NewService(m, st, DefaultInterval)

	seed(t, m, "PC-001", 33.7490, -84.3880, 42.0)
	seed(t, m, "PC-002", 33.7600, -84.3900, 28.5)
	seed(t, m, "PC-003", 33.7700, -84.3700, 55.0)

	svc.syncLocations(context.Background())

	stats := svc.GetStats()
	assert.Equal(t, int64(1), stats.TotalSyncs)
	assert.Equal(t, int64(2), stats.SuccessfulUpdates)
	assert.Equal(t, int64(1), stats.FailedUpdates)
	assert.Len(t, st.updates, 2)
}

func TestSyncLocations_CountersAccumulateAcrossPasses(t *testing.T) {
	m := cache.NewMemory(cache.DefaultTTL)
	st := newMockStore()
	svc := NewService(m, st, DefaultInterval)

	seed(t, m, "PC-001", 33.7490, -84.3880, 42.0)

	svc.syncLocations(context.Background())
	svc.syncLocations(context.Background())

	stats := svc.GetStats()
	assert.Equal(t, int64(2), stats.TotalSyncs)
	assert.Equal(t, int64(2), stats.SuccessfulUpdates)
}

func TestService_StartStop(t *testing.T) {
	m := cache.NewMemory(cache.DefaultTTL)
	st := newMockStore()
	seed(t, m, "PC-001", 33.7490, -84.3880, 42.0)

	svc := NewService(m, st, time.Hour)
	svc.Start()
	svc.Start() // second start is a no-op

	// The loop runs one pass immediately on start.
	require.Eventually(t, func() bool {
		return svc.GetStats().TotalSyncs == 1
	}, time.Second, 10*time.Millisecond)

	svc.Stop()
	svc.Stop() // idempotent

	assert.Equal(t, int64(1), svc.GetStats().TotalSyncs)
}
