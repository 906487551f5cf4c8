package sensor_simulator

import (
	"context"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
	"github.com/LeonardoBeccarini/kelpcoins/pkg/broker"
)

// BuoySimulator publishes a raw reading for one buoy every interval.
type BuoySimulator struct {
	buoy      *entities.Buoy
	generator *DataGenerator
	publisher broker.IPublisher
}

func NewBuoySimulator(publisher broker.IPublisher, gen *DataGenerator, buoy *entities.Buoy) *BuoySimulator {
	return &BuoySimulator{
		buoy:      buoy,
		generator: gen,
		publisher: publisher,
	}
}

// Start publishes until ctx is cancelled.
func (s *BuoySimulator) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishOnce()
		}
	}
}

func (s *BuoySimulator) publishOnce() {
	msg := s.generator.Next(s.buoy)
	log.Debugw("buoy: pub raw", "buoy", msg.BuoyID, "temp", msg.Reading.WaterTemperature, "par", msg.Reading.LightPAR)
	if err := s.publisher.PublishMessage(msg); err != nil {
		log.Errorw("publish error", "buoy", s.buoy.ID, "error", err)
	}
}
