package tarantoolqueue

/*
Settings understood by the Tarantool queue sink:

host = "localhost"
port = "3301"
user = "user"
password = "pass"
max_recons = "5"
timeout = "1"
reconnect = "1"
queue = "positions"
*/

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tarantool/go-tarantool"
	"github.com/tarantool/go-tarantool/queue"
	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/dispatchd/fleettrack/cli/tracker/track"
)

type Connector struct {
	connection *tarantool.Connection
	queue      queue.Queue
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("invalid config section reference")
	}
	c.config = cfg

	maxRecons, err := strconv.Atoi(c.config["max_recons"])
	if err != nil {
		return fmt.Errorf("failed to read max_recons: %v", err)
	}
	timeout, err := strconv.Atoi(c.config["timeout"])
	if err != nil {
		return fmt.Errorf("failed to read timeout: %v", err)
	}
	reconnect, err := strconv.Atoi(c.config["reconnect"])
	if err != nil {
		return fmt.Errorf("failed to read reconnect: %v", err)
	}

	opts := tarantool.Opts{
		Timeout:       time.Duration(timeout) * time.Second,
		Reconnect:     time.Duration(reconnect) * time.Second,
		MaxReconnects: uint(maxRecons),
		User:          c.config["user"],
		Pass:          c.config["password"],
	}

	addr := fmt.Sprintf("%s:%s", c.config["host"], c.config["port"])
	c.connection, err = tarantool.Connect(addr, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to Tarantool: %v", err)
	}
	c.queue = queue.New(c.connection, c.config["queue"])

	return nil
}

func (c *Connector) Publish(p track.Position) error {
	payload, err := msgpack.Marshal(map[string]interface{}{
		"vehicle_id": p.VehicleID,
		"lat":        p.Lat,
		"lng":        p.Lng,
		"speed":      p.SpeedMph(),
		"heading":    p.HeadingDeg(),
		"timestamp":  p.Timestamp.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode position: %v", err)
	}

	if _, err = c.queue.Put(payload); err != nil {
		return fmt.Errorf("failed to enqueue position: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.connection.Close()
}
