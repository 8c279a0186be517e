package natsfeed

/*
Settings understood by the NATS sink:

host = "localhost"
port = "4222"
user = ""
password = ""
subject = "fleet.positions"
*/

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/dispatchd/fleettrack/cli/tracker/track"
)

type Connector struct {
	connection *nats.Conn
	subject    string
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("invalid config section reference")
	}
	c.config = cfg

	c.subject = c.config["subject"]
	if c.subject == "" {
		c.subject = "fleet.positions"
	}

	url := fmt.Sprintf("nats://%s:%s", c.config["host"], c.config["port"])
	var opts []nats.Option
	if c.config["user"] != "" {
		opts = append(opts, nats.UserInfo(c.config["user"], c.config["password"]))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %v", err)
	}
	c.connection = conn
	return nil
}

func (c *Connector) Publish(p track.Position) error {
	payload, err := p.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize position: %v", err)
	}

	if err := c.connection.Publish(c.subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %v", c.subject, err)
	}
	return nil
}

func (c *Connector) Close() error {
	c.connection.Close()
	return nil
}
