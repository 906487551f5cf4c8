package aggregator

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/messages"
	"github.com/LeonardoBeccarini/kelpcoins/internal/services/telemetry"
	"github.com/LeonardoBeccarini/kelpcoins/pkg/broker"
)

// DefaultMaxWindow bounds the readings kept per buoy while the broker
// refuses aggregated publishes.
const DefaultMaxWindow = 1024

// DataAggregatorService buffers raw buoy readings and, every interval,
// publishes one averaged snapshot per buoy on {outTopic}/{buoyId}.
type DataAggregatorService struct {
	consumer            broker.IConsumer
	publishers          broker.PublisherFactory
	outTopic            string
	buffer              map[string][]messages.SensorReadingMessage // key is BuoyID
	mutex               sync.Mutex
	aggregationInterval time.Duration
	maxWindow           int
	now                 func() time.Time
}

func NewDataAggregatorService(consumer broker.IConsumer, publishers broker.PublisherFactory, outTopic string, aggregationInterval time.Duration) *DataAggregatorService {
	return &DataAggregatorService{
		consumer:            consumer,
		publishers:          publishers,
		outTopic:            outTopic,
		aggregationInterval: aggregationInterval,
		buffer:              make(map[string][]messages.SensorReadingMessage),
		maxWindow:           DefaultMaxWindow,
		now:                 time.Now,
	}
}

func (d *DataAggregatorService) messageHandler(_ string, message mqtt.Message) error {
	reading, err := telemetry.DecodeReading(message.Topic(), message.Payload())
	if err != nil {
		log.Warnw("error decoding buoy reading", "topic", message.Topic(), "error", err)
		return err
	}
	if reading.Aggregated {
		return nil
	}

	d.mutex.Lock()
	buf := append(d.buffer[reading.BuoyID], reading)
	if over := len(buf) - d.maxWindow; d.maxWindow > 0 && over > 0 {
		// finestra piena: si scartano le letture piu' vecchie
		n := copy(buf, buf[over:])
		buf = buf[:n]
	}
	d.buffer[reading.BuoyID] = buf
	d.mutex.Unlock()

	log.Debugw("buffered buoy reading", "buoy", reading.BuoyID)
	return nil
}

func (d *DataAggregatorService) Start(ctx context.Context) {
	d.consumer.SetHandler(d.messageHandler)

	// il consumer blocca: va in goroutine, altrimenti il ticker non parte
	go d.consumer.ConsumeMessage(ctx)

	ticker := time.NewTicker(d.aggregationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.aggregateAndPublish()
		}
	}
}

func (d *DataAggregatorService) aggregateAndPublish() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for buoyID, readings := range d.buffer {
		if len(readings) == 0 {
			continue
		}
		out := Average(readings)
		out.Timestamp = d.now().UTC()

		topic := broker.ExpandTopic(d.outTopic+"/{buoy}", map[string]string{"buoy": buoyID})
		if err := d.publishers(topic).PublishMessage(out); err != nil {
			// il buffer resta: si riprova al prossimo ciclo
			log.Errorw("publish aggregated reading", "buoy", buoyID, "error", err)
			continue
		}
		log.Infow("published aggregated reading", "buoy", buoyID, "samples", out.Samples)

		d.buffer[buoyID] = readings[:0]
	}
}

// Average folds readings of one buoy into a single aggregated message.
// Site and position come from the most recent reading.
func Average(readings []messages.SensorReadingMessage) messages.SensorReadingMessage {
	var sum entities.SensorReading
	last := readings[0]
	for _, r := range readings {
		sum.WaterTemperature += r.Reading.WaterTemperature
		sum.LightPAR += r.Reading.LightPAR
		sum.InorganicNitrogen += r.Reading.InorganicNitrogen
		sum.TotalPhosphorus += r.Reading.TotalPhosphorus
		sum.SecchiDepth += r.Reading.SecchiDepth
		if !r.Timestamp.Before(last.Timestamp) {
			last = r
		}
	}
	n := float64(len(readings))
	return messages.SensorReadingMessage{
		BuoyID: last.BuoyID,
		SiteID: last.SiteID,
		Reading: entities.SensorReading{
			WaterTemperature:  sum.WaterTemperature / n,
			LightPAR:          sum.LightPAR / n,
			InorganicNitrogen: sum.InorganicNitrogen / n,
			TotalPhosphorus:   sum.TotalPhosphorus / n,
			SecchiDepth:       sum.SecchiDepth / n,
		},
		Latitude:   last.Latitude,
		Longitude:  last.Longitude,
		Samples:    len(readings),
		Aggregated: true,
		Timestamp:  last.Timestamp,
	}
}
