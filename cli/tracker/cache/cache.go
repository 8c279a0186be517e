package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dispatchd/fleettrack/cli/tracker/track"
)

// DefaultTTL is how long a position entry survives without a refreshing
// write.
const DefaultTTL = 300 * time.Second

var ErrUnknownBackend = errors.New("cache backend isn't supported")

// subscriberBuffer bounds each subscription's pending records. On overflow
// the oldest pending record is dropped.
const subscriberBuffer = 16

// Cache holds the latest position per vehicle. Entries expire after the
// configured TTL unless refreshed by another write. Every successful write is
// also published to the vehicle's channel; delivery to subscribers is
// best-effort and never fails the writer.
type Cache interface {
	// Update replaces the vehicle's record wholesale, refreshes its TTL and
	// publishes the record to the vehicle's channel.
	Update(ctx context.Context, p track.Position) error

	// Get returns the live record for a vehicle, or ok=false when the entry
	// never existed or has expired.
	Get(ctx context.Context, vehicleID string) (p track.Position, ok bool, err error)

	// GetAll returns the full snapshot of live records, in no particular
	// order.
	GetAll(ctx context.Context) ([]track.Position, error)

	// Delete removes the entry regardless of TTL. Used by administrative
	// vehicle removal only.
	Delete(ctx context.Context, vehicleID string) error

	// Subscribe starts listening on the vehicle's channel. The subscription
	// yields every subsequently published record until closed. Slow
	// consumers lose the oldest pending records rather than stalling the
	// publisher.
	Subscribe(ctx context.Context, vehicleID string) (Subscription, error)

	Close() error
}

// Subscription is a live feed of published position records for one vehicle.
type Subscription interface {
	// C yields published records. The channel is closed when the
	// subscription is closed.
	C() <-chan track.Position

	Close() error
}

// New builds a cache from its config section. The backend key selects the
// implementation: "redis" (default) or "memory".
func New(cfg map[string]string) (Cache, error) {
	if cfg == nil {
		cfg = map[string]string{}
	}

	switch cfg["backend"] {
	case "", "redis":
		return newRedisCache(cfg)
	case "memory":
		return NewMemory(ttlFromConfig(cfg)), nil
	default:
		return nil, ErrUnknownBackend
	}
}

func ttlFromConfig(cfg map[string]string) time.Duration {
	if raw, ok := cfg["ttl"]; ok {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return DefaultTTL
}

// offer places p on ch without ever blocking. When the buffer is full the
// oldest pending record is dropped; the freshest position is the one worth
// keeping. Must only be called from the single goroutine that owns the send
// side of ch.
func offer(ch chan track.Position, p track.Position) {
	select {
	case ch <- p:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}
