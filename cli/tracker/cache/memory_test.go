package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fleettrack/cli/tracker/track"
)

func position(id string, lat, lng float64) track.Position {
	speed := 42.0
	heading := 90.0
	return track.Position{
		VehicleID: id,
		Lat:       lat,
		Lng:       lng,
		Speed:     &speed,
		Heading:   &heading,
		Timestamp: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemory_UpdateThenGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultTTL)

	want := position("V1", 33.7490, -84.3880)
	require.NoError(t, m.Update(ctx, want))

	got, ok, err := m.Get(ctx, "V1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestMemory_GetUnknownIsAbsent(t *testing.T) {
	m := NewMemory(DefaultTTL)

	_, ok, err := m.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_EntryExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultTTL)

	current := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	require.NoError(t, m.Update(ctx, position("V1", 33.7490, -84.3880)))

	current = current.Add(299 * time.Second)
	_, ok, err := m.Get(ctx, "V1")
	require.NoError(t, err)
	assert.True(t, ok, "entry must still be live just before the TTL")

	current = current.Add(2 * time.Second)
	_, ok, err = m.Get(ctx, "V1")
	require.NoError(t, err)
	assert.False(t, ok, "entry must be absent after the TTL")
}

func TestMemory_WriteRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultTTL)

	current := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	require.NoError(t, m.Update(ctx, position("V1", 33.7490, -84.3880)))
	current = current.Add(250 * time.Second)
	require.NoError(t, m.Update(ctx, position("V1", 33.7500, -84.3890)))

	// 290 s after the first write but only 40 s after the refresh.
	current = current.Add(40 * time.Second)
	_, ok, err := m.Get(ctx, "V1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_GetAllExcludesExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultTTL)

	current := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	require.NoError(t, m.Update(ctx, position("V1", 33.7490, -84.3880)))
	current = current.Add(200 * time.Second)
	require.NoError(t, m.Update(ctx, position("V2", 33.7500, -84.3890)))
	current = current.Add(150 * time.Second)

	snapshot, err := m.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "V2", snapshot[0].VehicleID)
}

func TestMemory_DeleteRemovesEntry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultTTL)

	require.NoError(t, m.Update(ctx, position("V1", 33.7490, -84.3880)))
	require.NoError(t, m.Delete(ctx, "V1"))

	_, ok, err := m.Get(ctx, "V1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_SubscriberReceivesSubsequentWrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultTTL)

	sub, err := m.Subscribe(ctx, "V1")
	require.NoError(t, err)
	defer sub.Close()

	want := position("V1", 33.7490, -84.3880)
	require.NoError(t, m.Update(ctx, want))

	select {
	case got := <-sub.C():
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the published record")
	}
}

func TestMemory_SubscriberOnlySeesItsVehicle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultTTL)

	sub, err := m.Subscribe(ctx, "V1")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, m.Update(ctx, position("V2", 33.7, -84.4)))

	select {
	case p := <-sub.C():
		t.Fatalf("unexpected record for %s", p.VehicleID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemory_SlowSubscriberDropsOldest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultTTL)

	sub, err := m.Subscribe(ctx, "V1")
	require.NoError(t, err)
	defer sub.Close()

	// Nobody is draining: overflow the buffer and make sure the publisher
	// never blocks and the newest record survives.
	for i := 0; i < subscriberBuffer+10; i++ {
		require.NoError(t, m.Update(ctx, position("V1", 33.0+float64(i)*0.001, -84.0)))
	}

	var last track.Position
	for drained := false; !drained; {
		select {
		case p := <-sub.C():
			last = p
		default:
			drained = true
		}
	}
	assert.InDelta(t, 33.0+float64(subscriberBuffer+9)*0.001, last.Lat, 1e-9,
		"the newest record must never be the one dropped")
}

func TestMemory_ClosedSubscriptionStopsReceiving(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(DefaultTTL)

	sub, err := m.Subscribe(ctx, "V1")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "close must be idempotent")

	require.NoError(t, m.Update(ctx, position("V1", 33.7490, -84.3880)))

	_, open := <-sub.C()
	assert.False(t, open, "channel must be closed after Close")
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(map[string]string{"backend": "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestNew_MemoryBackendWithTTL(t *testing.T) {
	c, err := New(map[string]string{"backend": "memory", "ttl": "60"})
	require.NoError(t, err)

	m, ok := c.(*Memory)
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, m.ttl)
}

func TestTTLFromConfig_Defaults(t *testing.T) {
	assert.Equal(t, DefaultTTL, ttlFromConfig(map[string]string{}))
	assert.Equal(t, DefaultTTL, ttlFromConfig(map[string]string{"ttl": "garbage"}))
	assert.Equal(t, DefaultTTL, ttlFromConfig(map[string]string{"ttl": "-5"}))
	assert.Equal(t, 30*time.Second, ttlFromConfig(map[string]string{"ttl": "30"}))
}
