package config

/*
Description of the configuration file:

api_port: 8080
log_level: "INFO"
log_file_path: "/var/log/tracker/tracker.log"
log_max_age_days: 30

cache:
  backend: "redis"
  host: "localhost"
  port: "6379"
  ttl: "300"

storage:
  postgresql:
    host: "localhost"
    port: "5432"
    user: "postgres"
    password: "postgres"
    database: "dispatch"
    table: "vehicle"
    sslmode: "disable"

feeds:
  nats:
    host: "localhost"
    port: "4222"
    subject: "fleet.positions"

sync_interval_seconds: 10
update_interval_seconds: 1
auto_populate: true

bounds:
  min_lat: 33.6490
  max_lat: 33.8490
  min_lng: -84.5880
  max_lng: -84.2880
*/

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/dispatchd/fleettrack/cli/tracker/geo"
	"github.com/dispatchd/fleettrack/cli/tracker/sim"
)

type Bounds struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLng float64 `yaml:"max_lng"`
}

type Settings struct {
	ApiPort               int32                        `yaml:"api_port"`
	LogLevel              string                       `yaml:"log_level"`
	LogFilePath           string                       `yaml:"log_file_path"`
	LogMaxAgeDays         int                          `yaml:"log_max_age_days"`
	Cache                 map[string]string            `yaml:"cache"`
	Store                 map[string]map[string]string `yaml:"storage"`
	Feeds                 map[string]map[string]string `yaml:"feeds"`
	SyncIntervalSeconds   int                          `yaml:"sync_interval_seconds"`
	UpdateIntervalSeconds float64                      `yaml:"update_interval_seconds"`
	AutoPopulate          bool                         `yaml:"auto_populate"`
	Bounds                Bounds                       `yaml:"bounds"`
}

func New(confPath string) (Settings, error) {
	c := Settings{}
	data, err := os.ReadFile(confPath)
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return c, err
	}

	if c.ApiPort == 0 {
		c.ApiPort = 8080
	}
	if c.SyncIntervalSeconds == 0 {
		c.SyncIntervalSeconds = 10
	}
	if c.UpdateIntervalSeconds == 0 {
		c.UpdateIntervalSeconds = 1
	}

	bounds := c.GetBounds()
	if (c.Bounds != Bounds{}) && !bounds.Valid() {
		log.Errorf("Invalid bounds [%f..%f, %f..%f]; min must be below max on both axes. Defaulting to the Atlanta patrol area.",
			c.Bounds.MinLat, c.Bounds.MaxLat, c.Bounds.MinLng, c.Bounds.MaxLng)
		c.Bounds = Bounds{}
	}

	return c, err
}

func (s *Settings) GetLogLevel() log.Level {
	var lvl log.Level

	switch s.LogLevel {
	case "DEBUG":
		lvl = log.DebugLevel
	case "INFO":
		lvl = log.InfoLevel
	case "WARN":
		lvl = log.WarnLevel
	case "ERROR":
		lvl = log.ErrorLevel
	default:
		lvl = log.InfoLevel
	}
	return lvl
}

func (s *Settings) GetSyncInterval() time.Duration {
	return time.Duration(s.SyncIntervalSeconds) * time.Second
}

func (s *Settings) GetUpdateInterval() time.Duration {
	return time.Duration(s.UpdateIntervalSeconds * float64(time.Second))
}

// GetBounds returns the waypoint bounding box, falling back to the default
// patrol area when no box is configured.
func (s *Settings) GetBounds() geo.Bounds {
	if (s.Bounds == Bounds{}) {
		return sim.DefaultBounds
	}
	return geo.Bounds{
		MinLat: s.Bounds.MinLat,
		MaxLat: s.Bounds.MaxLat,
		MinLng: s.Bounds.MinLng,
		MaxLng: s.Bounds.MaxLng,
	}
}
