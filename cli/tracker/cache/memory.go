package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dispatchd/fleettrack/cli/tracker/track"
)

// Memory is an in-process cache backend with the same contract as the redis
// one: TTL on every entry, per-vehicle publish on every write. Expiry is
// lazy, checked on read. Used for development and tests.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	subs    map[string][]*memorySubscription
	now     func() time.Time
}

type memoryEntry struct {
	position  track.Position
	expiresAt time.Time
}

// NewMemory builds an empty in-process cache with the given TTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		subs:    make(map[string][]*memorySubscription),
		now:     time.Now,
	}
}

func (m *Memory) Update(ctx context.Context, p track.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[p.VehicleID] = memoryEntry{position: p, expiresAt: m.now().Add(m.ttl)}
	for _, sub := range m.subs[p.VehicleID] {
		offer(sub.ch, p)
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, vehicleID string) (track.Position, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[vehicleID]
	if !ok {
		return track.Position{}, false, nil
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, vehicleID)
		return track.Position{}, false, nil
	}
	return entry.position, true, nil
}

func (m *Memory) GetAll(ctx context.Context) ([]track.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var positions []track.Position
	for id, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, id)
			continue
		}
		positions = append(positions, entry.position)
	}
	return positions, nil
}

func (m *Memory) Delete(ctx context.Context, vehicleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, vehicleID)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, vehicleID string) (Subscription, error) {
	sub := &memorySubscription{
		cache:     m,
		vehicleID: vehicleID,
		ch:        make(chan track.Position, subscriberBuffer),
	}

	m.mu.Lock()
	m.subs[vehicleID] = append(m.subs[vehicleID], sub)
	m.mu.Unlock()
	return sub, nil
}

// Subscribers reports how many subscriptions are registered for a vehicle.
func (m *Memory) Subscribers(vehicleID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[vehicleID])
}

func (m *Memory) Close() error {
	m.mu.Lock()
	var all []*memorySubscription
	for id, subs := range m.subs {
		all = append(all, subs...)
		delete(m.subs, id)
	}
	m.mu.Unlock()

	for _, sub := range all {
		sub.closeOnce.Do(func() { close(sub.ch) })
	}
	return nil
}

// removeSub unregisters a subscription so no further publish can reach it.
func (m *Memory) removeSub(s *memorySubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[s.vehicleID]
	for i, sub := range subs {
		if sub == s {
			m.subs[s.vehicleID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

type memorySubscription struct {
	cache     *Memory
	vehicleID string
	ch        chan track.Position
	closeOnce sync.Once
}

func (s *memorySubscription) C() <-chan track.Position {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.cache.removeSub(s)
	s.closeOnce.Do(func() { close(s.ch) })
	return nil
}
