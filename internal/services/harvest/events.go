package harvest

import (
	"context"
	"sync"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/messages"
	"github.com/LeonardoBeccarini/kelpcoins/pkg/broker"
)

// EventSink receives pipeline events. Publishing is best effort and never
// fails the step that produced the event.
type EventSink interface {
	Publish(ctx context.Context, ev messages.HarvestEvent)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Publish(context.Context, messages.HarvestEvent) {}

// BrokerSink publishes events on event/harvest/{type}/{harvest}.
type BrokerSink struct {
	factory  broker.PublisherFactory
	template string

	mu   sync.Mutex
	pubs map[string]broker.IPublisher
}

func NewBrokerSink(factory broker.PublisherFactory, template string) *BrokerSink {
	return &BrokerSink{factory: factory, template: template, pubs: make(map[string]broker.IPublisher)}
}

func (s *BrokerSink) Publish(_ context.Context, ev messages.HarvestEvent) {
	topic := broker.ExpandTopic(s.template, map[string]string{
		"type":    ev.Type,
		"harvest": ev.HarvestID,
	})

	s.mu.Lock()
	pub, ok := s.pubs[topic]
	if !ok {
		pub = s.factory(topic)
		s.pubs[topic] = pub
	}
	s.mu.Unlock()

	if err := pub.PublishMessage(ev); err != nil {
		log.Warnw("harvest event not published", "topic", topic, "err", err)
	}
}
