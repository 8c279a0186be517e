package cache

/*
Settings understood by the redis backend:

backend = "redis"
host = "localhost"
port = "6379"
password = ""
db = "0"
ttl = "300"
*/

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/dispatchd/fleettrack/cli/tracker/track"
)

const (
	keyPrefix     = "vehicle:location:"
	channelPrefix = "vehicle:location:stream:"
)

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisCache(cfg map[string]string) (*redisCache, error) {
	host := cfg["host"]
	if host == "" {
		host = "localhost"
	}
	port := cfg["port"]
	if port == "" {
		port = "6379"
	}
	db := 0
	if raw, ok := cfg["db"]; ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q: %v", raw, err)
		}
		db = parsed
	}

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: cfg["password"],
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis unavailable: %v", err)
	}

	return &redisCache{client: client, ttl: ttlFromConfig(cfg)}, nil
}

func (c *redisCache) Update(ctx context.Context, p track.Position) error {
	payload, err := p.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize position: %v", err)
	}

	if err := c.client.Set(ctx, keyPrefix+p.VehicleID, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store position for %s: %v", p.VehicleID, err)
	}

	// The stored write is authoritative; publish is best-effort.
	if err := c.client.Publish(ctx, channelPrefix+p.VehicleID, payload).Err(); err != nil {
		log.WithField("err", err).Warnf("Failed to publish position for %s", p.VehicleID)
	}
	return nil
}

func (c *redisCache) Get(ctx context.Context, vehicleID string) (track.Position, bool, error) {
	payload, err := c.client.Get(ctx, keyPrefix+vehicleID).Bytes()
	if err == redis.Nil {
		return track.Position{}, false, nil
	}
	if err != nil {
		return track.Position{}, false, fmt.Errorf("failed to read position for %s: %v", vehicleID, err)
	}

	p, err := track.FromBytes(payload)
	if err != nil {
		return track.Position{}, false, fmt.Errorf("corrupt position record for %s: %v", vehicleID, err)
	}
	return p, true, nil
}

func (c *redisCache) GetAll(ctx context.Context) ([]track.Position, error) {
	var positions []track.Position

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		payload, err := c.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			// Expired between scan and read.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", iter.Val(), err)
		}

		p, err := track.FromBytes(payload)
		if err != nil {
			log.WithField("err", err).Warnf("Skipping corrupt record at %s", iter.Val())
			continue
		}
		positions = append(positions, p)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan positions: %v", err)
	}
	return positions, nil
}

func (c *redisCache) Delete(ctx context.Context, vehicleID string) error {
	if err := c.client.Del(ctx, keyPrefix+vehicleID).Err(); err != nil {
		return fmt.Errorf("failed to delete position for %s: %v", vehicleID, err)
	}
	return nil
}

func (c *redisCache) Subscribe(ctx context.Context, vehicleID string) (Subscription, error) {
	pubsub := c.client.Subscribe(ctx, channelPrefix+vehicleID)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %v", vehicleID, err)
	}

	sub := &redisSubscription{pubsub: pubsub, ch: make(chan track.Position, subscriberBuffer)}
	go sub.pump()
	return sub, nil
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan track.Position
}

func (s *redisSubscription) pump() {
	defer close(s.ch)
	for msg := range s.pubsub.Channel() {
		p, err := track.FromBytes([]byte(msg.Payload))
		if err != nil {
			log.WithField("err", err).Warn("Skipping corrupt published record")
			continue
		}
		offer(s.ch, p)
	}
}

func (s *redisSubscription) C() <-chan track.Position {
	return s.ch
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
