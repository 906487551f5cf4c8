package broker

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
)

// Handler processes one message received on topic.
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes and dispatches messages to a handler until ctx ends.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// QoSFor returns 1 for topics whose loss matters (aggregated snapshots and
// harvest events), 0 for the raw buoy stream.
func QoSFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "sensor/aggregated") || strings.HasPrefix(t, "event/harvest") {
		return 1
	}
	return 0
}

// Consumer subscribes to one or more topics on a shared client.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	handler Handler
}

func NewConsumer(client mqtt.Client, handler Handler, topics ...string) *Consumer {
	return &Consumer{client: client, topics: topics, handler: handler}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// ConsumeMessage blocks until ctx is cancelled, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	subscribed := make([]string, 0, len(c.topics))
	for _, topic := range c.topics {
		topic := topic
		token := c.client.Subscribe(topic, QoSFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			if c.handler == nil {
				log.Warnw("no handler set", "topic", topic)
				return
			}
			if err := c.handler(topic, msg); err != nil {
				log.Errorw("error handling message", "topic", msg.Topic(), "error", err)
			}
		})
		if token.Wait() && token.Error() != nil {
			log.Errorw("error subscribing", "topic", topic, "error", token.Error())
			continue
		}
		subscribed = append(subscribed, topic)
		log.Infow("subscribed", "topic", topic)
	}

	<-ctx.Done()

	if len(subscribed) > 0 && c.client.IsConnected() {
		c.client.Unsubscribe(subscribed...).Wait()
	}
}
