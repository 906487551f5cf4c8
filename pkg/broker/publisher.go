package broker

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
)

// IPublisher publishes messages on a topic.
type IPublisher interface {
	PublishMessage(message interface{}) error
	Close()
}

// Publisher publishes on a fixed topic.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, qos: QoSFor(topic)}
}

// PublishMessage accepts a string, a []byte or any JSON-encodable value.
func (p *Publisher) PublishMessage(message interface{}) error {
	payload, err := encode(message)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, p.qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message on %s: %w", p.topic, token.Error())
	}
	log.Debugw("message published", "topic", p.topic, "bytes", len(payload))
	return nil
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	Close(p.client)
}

// PublisherFactory builds a publisher for a topic computed at call time.
type PublisherFactory func(topic string) IPublisher

// ExpandTopic fills {key} placeholders of a topic template.
// Values are sanitized so they cannot introduce extra topic levels or wildcards.
func ExpandTopic(tmpl string, values map[string]string) string {
	out := tmpl
	for k, v := range values {
		v = strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(strings.TrimSpace(v))
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

func encode(message interface{}) ([]byte, error) {
	switch m := message.(type) {
	case string:
		return []byte(m), nil
	case []byte:
		return m, nil
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("invalid message format: %w", err)
		}
		return b, nil
	}
}
