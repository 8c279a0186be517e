package rabbitmq

/*
Settings understood by the RabbitMQ sink:

host = "localhost"
port = "5672"
user = "guest"
password = "guest"
queue = "fleet.positions"
*/

import (
	"fmt"

	"github.com/streadway/amqp"

	"github.com/dispatchd/fleettrack/cli/tracker/track"
)

type Connector struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	queue      string
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("invalid config section reference")
	}
	c.config = cfg

	c.queue = c.config["queue"]
	if c.queue == "" {
		c.queue = "fleet.positions"
	}

	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.config["user"], c.config["password"], c.config["host"], c.config["port"])

	var err error
	if c.connection, err = amqp.Dial(url); err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}
	if c.channel, err = c.connection.Channel(); err != nil {
		return fmt.Errorf("failed to open channel: %v", err)
	}
	if _, err = c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %v", c.queue, err)
	}
	return nil
}

func (c *Connector) Publish(p track.Position) error {
	payload, err := p.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize position: %v", err)
	}

	err = c.channel.Publish("", c.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %v", c.queue, err)
	}
	return nil
}

func (c *Connector) Close() error {
	if err := c.channel.Close(); err != nil {
		return err
	}
	return c.connection.Close()
}
