package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fleettrack/cli/tracker/sim"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_FullConfig(t *testing.T) {
	path := writeConfig(t, `
api_port: 9090
log_level: "DEBUG"
cache:
  backend: "memory"
  ttl: "120"
storage:
  postgresql:
    host: "db"
    port: "5432"
feeds:
  nats:
    host: "broker"
    port: "4222"
sync_interval_seconds: 15
update_interval_seconds: 0.5
auto_populate: true
bounds:
  min_lat: 40.0
  max_lat: 41.0
  min_lng: -75.0
  max_lng: -74.0
`)

	c, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, int32(9090), c.ApiPort)
	assert.Equal(t, log.DebugLevel, c.GetLogLevel())
	assert.Equal(t, "memory", c.Cache["backend"])
	assert.Equal(t, "db", c.Store["postgresql"]["host"])
	assert.Equal(t, "broker", c.Feeds["nats"]["host"])
	assert.Equal(t, 15*time.Second, c.GetSyncInterval())
	assert.Equal(t, 500*time.Millisecond, c.GetUpdateInterval())
	assert.True(t, c.AutoPopulate)

	bounds := c.GetBounds()
	assert.Equal(t, 40.0, bounds.MinLat)
	assert.Equal(t, -74.0, bounds.MaxLng)
}

func TestNew_Defaults(t *testing.T) {
	path := writeConfig(t, `
cache:
  backend: "memory"
`)

	c, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, int32(8080), c.ApiPort)
	assert.Equal(t, log.InfoLevel, c.GetLogLevel())
	assert.Equal(t, 10*time.Second, c.GetSyncInterval())
	assert.Equal(t, time.Second, c.GetUpdateInterval())
	assert.Equal(t, sim.DefaultBounds, c.GetBounds())
}

func TestNew_InvalidBoundsFallBack(t *testing.T) {
	path := writeConfig(t, `
bounds:
  min_lat: 42.0
  max_lat: 41.0
  min_lng: -74.0
  max_lng: -75.0
`)

	c, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, sim.DefaultBounds, c.GetBounds())
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGetLogLevel_UnknownDefaultsToInfo(t *testing.T) {
	c := Settings{LogLevel: "VERBOSE"}
	assert.Equal(t, log.InfoLevel, c.GetLogLevel())
}
