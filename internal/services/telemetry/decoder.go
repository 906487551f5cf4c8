package telemetry

import (
	"encoding/json"
	"errors"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/metrics"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/messages"
	"github.com/LeonardoBeccarini/kelpcoins/pkg/dedup"
)

const (
	rawPrefix        = "sensor/data"
	aggregatedPrefix = "sensor/aggregated"
	eventPrefix      = "event/harvest/"
)

// Ingestor turns broker messages into feed updates and archive points.
type Ingestor struct {
	feed    *Feed
	archive *Archive
	dedup   *dedup.Deduper
	metrics *metrics.Metrics
}

func NewIngestor(feed *Feed, archive *Archive, d *dedup.Deduper, m *metrics.Metrics) *Ingestor {
	return &Ingestor{feed: feed, archive: archive, dedup: d, metrics: m}
}

// Handle is a broker.Handler. Malformed payloads are logged and dropped so
// one bad message never stalls the stream.
func (in *Ingestor) Handle(subscription string, m mqtt.Message) error {
	topic := m.Topic()
	if topic == "" {
		topic = subscription
	}
	payload := m.Payload()

	// QoS1 può riconsegnare: scarta i duplicati
	if in.dedup != nil && !in.dedup.ShouldProcessPayload(payload) {
		log.Debugw("duplicate message dropped", "topic", topic)
		return nil
	}

	var err error
	switch {
	case strings.HasPrefix(topic, aggregatedPrefix), strings.HasPrefix(topic, rawPrefix):
		err = in.handleReading(topic, payload)
	case strings.HasPrefix(topic, eventPrefix):
		err = in.handleEvent(topic, payload)
	default:
		return nil
	}
	if err != nil {
		log.Warnw("message dropped", "topic", topic, "err", err)
	}
	return nil
}

func (in *Ingestor) handleReading(topic string, payload []byte) error {
	msg, err := DecodeReading(topic, payload)
	if err != nil {
		return err
	}
	in.feed.Update(msg)
	in.archive.WriteReading(msg)
	in.metrics.ObserveReading(msg.Aggregated)
	return nil
}

func (in *Ingestor) handleEvent(topic string, payload []byte) error {
	ev, err := DecodeEvent(topic, payload)
	if err != nil {
		return err
	}
	in.archive.WriteEvent(ev)
	return nil
}

// DecodeReading parses a buoy message. The buoy id falls back to the last
// topic level; the aggregated flag follows the topic.
func DecodeReading(topic string, payload []byte) (messages.SensorReadingMessage, error) {
	var msg messages.SensorReadingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if strings.TrimSpace(msg.BuoyID) == "" {
		if i := strings.LastIndex(topic, "/"); i >= 0 && i < len(topic)-1 {
			if id := topic[i+1:]; id != "data" && id != "aggregated" {
				msg.BuoyID = id
			}
		}
	}
	if msg.BuoyID == "" {
		return msg, errors.New("reading: missing buoy id")
	}
	if strings.HasPrefix(topic, aggregatedPrefix) {
		msg.Aggregated = true
	}
	return msg, nil
}

// DecodeEvent parses a harvest event, taking type and harvest id from
// event/harvest/{type}/{harvest} when the payload omits them.
func DecodeEvent(topic string, payload []byte) (messages.HarvestEvent, error) {
	var ev messages.HarvestEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, err
	}
	parts := strings.Split(strings.TrimPrefix(topic, eventPrefix), "/")
	if ev.Type == "" && len(parts) >= 1 {
		ev.Type = parts[0]
	}
	if ev.HarvestID == "" && len(parts) >= 2 {
		ev.HarvestID = parts[1]
	}
	if ev.Type == "" || ev.HarvestID == "" {
		return ev, errors.New("event: missing type/harvest")
	}
	return ev, nil
}
