package feed

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/dispatchd/fleettrack/cli/tracker/cache"
	"github.com/dispatchd/fleettrack/cli/tracker/feed/sink/natsfeed"
	"github.com/dispatchd/fleettrack/cli/tracker/feed/sink/rabbitmq"
	"github.com/dispatchd/fleettrack/cli/tracker/feed/sink/tarantoolqueue"
	"github.com/dispatchd/fleettrack/cli/tracker/track"
)

var ErrUnknownFeed = errors.New("feed sink isn't supported")

// Sink receives a copy of every position update. Delivery is best-effort;
// sinks are never the source of truth.
type Sink interface {
	// Init opens the connection using the sink's config section.
	Init(map[string]string) error

	// Publish forwards one position record.
	Publish(track.Position) error

	// Close shuts the connection down.
	Close() error
}

// Repository fans position updates out to the configured sinks.
type Repository struct {
	sinks []Sink
}

// AddSink registers a sink for fan-out.
func (r *Repository) AddSink(s Sink) {
	r.sinks = append(r.sinks, s)
}

// Publish forwards the record to every sink. Sink failures are logged and
// swallowed; the cache write that preceded this call is authoritative.
func (r *Repository) Publish(p track.Position) {
	for _, sink := range r.sinks {
		if err := sink.Publish(p); err != nil {
			log.WithField("err", err).Warnf("Failed to forward position for %s", p.VehicleID)
		}
	}
}

// LoadSinks instantiates sinks from config sections keyed by sink name.
func (r *Repository) LoadSinks(sinks map[string]map[string]string) error {
	for name, params := range sinks {
		var s Sink
		switch name {
		case "nats":
			s = &natsfeed.Connector{}
		case "rabbitmq":
			s = &rabbitmq.Connector{}
		case "tarantool_queue":
			s = &tarantoolqueue.Connector{}
		default:
			return ErrUnknownFeed
		}

		if err := s.Init(params); err != nil {
			return err
		}
		r.AddSink(s)
	}
	return nil
}

// Close shuts all sinks down.
func (r *Repository) Close() {
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			log.WithField("err", err).Warn("Failed to close feed sink")
		}
	}
}

// Writer is the single write path for position updates: the authoritative
// cache write first, then best-effort fan-out to the feed sinks.
type Writer struct {
	Cache cache.Cache
	Feeds *Repository
}

func (w *Writer) Update(ctx context.Context, p track.Position) error {
	if err := w.Cache.Update(ctx, p); err != nil {
		return err
	}
	if w.Feeds != nil {
		w.Feeds.Publish(p)
	}
	return nil
}
