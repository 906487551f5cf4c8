package telemetry

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/LeonardoBeccarini/kelpcoins/internal/config"
	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/messages"
)

// Archive writes readings and harvest events to InfluxDB and remembers the
// last asynchronous write error for /healthz and /readyz.
// A nil *Archive is a disabled archive.
type Archive struct {
	client influxdb2.Client
	write  api.WriteAPI
	org    string
	bucket string

	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

// NewArchive connects to Influx. It returns nil when cfg is incomplete.
func NewArchive(cfg config.InfluxConfig, batchSize uint, flush time.Duration) *Archive {
	if !cfg.Enabled() {
		return nil
	}
	opts := influxdb2.DefaultOptions()
	if batchSize > 0 {
		opts.SetBatchSize(batchSize)
	}
	if flush > 0 {
		opts.SetFlushInterval(uint(flush.Milliseconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	return newArchive(client, cfg.Org, cfg.Bucket)
}

func newArchive(client influxdb2.Client, org, bucket string) *Archive {
	a := &Archive{
		client:  client,
		write:   client.WriteAPI(org, bucket),
		org:     org,
		bucket:  bucket,
		lastErr: time.Now().Add(-24 * time.Hour), // nessun errore recente
		counts:  make(map[string]int64),
	}
	go func() {
		for err := range a.write.Errors() {
			if err == nil {
				continue
			}
			a.mu.Lock()
			a.lastErr = time.Now()
			a.mu.Unlock()
			log.Errorw("influx write error", "err", err)
		}
	}()
	return a
}

// WriteReading queues a buoy reading.
func (a *Archive) WriteReading(m messages.SensorReadingMessage) {
	if a == nil {
		return
	}
	a.write.WritePoint(ReadingToPoint(m))
	a.mark(MeasurementReading)
}

// WriteEvent queues a harvest event.
func (a *Archive) WriteEvent(ev messages.HarvestEvent) {
	if a == nil {
		return
	}
	a.write.WritePoint(HarvestEventToPoint(ev))
	a.mark(MeasurementHarvest)
}

// LastErrorAge is how long ago the last write failed.
func (a *Archive) LastErrorAge() time.Duration {
	if a == nil {
		return 99999 * time.Hour
	}
	a.mu.RLock()
	t := a.lastErr
	a.mu.RUnlock()
	return time.Since(t)
}

// Count returns how many points of a measurement were queued.
func (a *Archive) Count(measurement string) int64 {
	if a == nil {
		return 0
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.counts[measurement]
}

func (a *Archive) Enabled() bool { return a != nil }

// Close flushes pending points and releases the client.
func (a *Archive) Close() {
	if a == nil {
		return
	}
	a.write.Flush()
	a.client.Close()
}

func (a *Archive) mark(measurement string) {
	a.mu.Lock()
	a.counts[measurement]++
	a.mu.Unlock()
}
