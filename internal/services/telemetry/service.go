package telemetry

import (
	"context"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/pkg/broker"
)

// Service consumes buoy readings and harvest events from the broker,
// keeps the live feed and archives everything to Influx.
type Service struct {
	consumer broker.IConsumer
	ingestor *Ingestor
	feed     *Feed
	archive  *Archive
}

func NewService(consumer broker.IConsumer, ingestor *Ingestor, feed *Feed, archive *Archive) *Service {
	return &Service{consumer: consumer, ingestor: ingestor, feed: feed, archive: archive}
}

func (s *Service) Feed() *Feed { return s.feed }

func (s *Service) Archive() *Archive { return s.archive }

// Start blocks until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(s.ingestor.Handle)
	log.Infow("telemetry consuming", "archive", s.archive.Enabled())
	s.consumer.ConsumeMessage(ctx)
	log.Infow("telemetry consumer stopped")
}
