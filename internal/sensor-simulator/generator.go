package sensor_simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/messages"
)

// bound keeps one parameter inside a physically plausible band.
type bound struct{ min, max, step float64 }

// Bande tipiche per le acque costiere del Golfo del Maine.
var bounds = [entities.FeatureCount]bound{
	{min: 2, max: 24, step: 0.15},       // water_temperature °C
	{min: 0, max: 1200, step: 25},       // light_PAR
	{min: 0.05, max: 3, step: 0.04},     // inorganic_nitrogen mg/L
	{min: 0.005, max: 0.4, step: 0.005}, // total_phosphorus mg/L
	{min: 0.5, max: 12, step: 0.1},      // secchi_depth m
}

// DataGenerator walks a buoy's water-quality parameters around a seed
// reading. It may seed itself once at startup from the telemetry service.
type DataGenerator struct {
	mu         sync.Mutex
	seeded     bool
	values     [entities.FeatureCount]float64
	rnd        *rand.Rand
	httpClient *http.Client
}

func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rnd:        rand.New(rand.NewSource(seed)),
		httpClient: &http.Client{Timeout: 8 * time.Second},
	}
}

// SeedFromTelemetry fetches the buoy's last known reading from
// {baseURL}/data/latest so a restarted buoy resumes where it left off.
// On failure the reference reading is used.
func (g *DataGenerator) SeedFromTelemetry(ctx context.Context, baseURL, buoyID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seeded {
		return
	}

	seed := entities.ReferenceReading()
	if baseURL != "" {
		if r, err := g.fetchLast(ctx, baseURL, buoyID); err == nil {
			seed = r
		} else {
			log.Warnw("seed from telemetry failed, using reference reading", "buoy", buoyID, "error", err)
		}
	}
	g.values = seed.Features()
	g.seeded = true
}

// Next advances the walk and returns the buoy message to publish.
func (g *DataGenerator) Next(buoy *entities.Buoy) messages.SensorReadingMessage {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.seeded {
		g.values = entities.ReferenceReading().Features()
		g.seeded = true
	}
	for i, b := range bounds {
		g.values[i] = clamp(g.values[i]+g.rnd.NormFloat64()*b.step, b.min, b.max)
	}

	return messages.SensorReadingMessage{
		BuoyID: buoy.ID,
		SiteID: buoy.SiteID,
		Reading: entities.SensorReading{
			WaterTemperature:  round(g.values[0], 2),
			LightPAR:          round(g.values[1], 1),
			InorganicNitrogen: round(g.values[2], 3),
			TotalPhosphorus:   round(g.values[3], 4),
			SecchiDepth:       round(g.values[4], 2),
		},
		Latitude:  buoy.Latitude,
		Longitude: buoy.Longitude,
		Timestamp: time.Now().UTC(),
	}
}

// errPermanent marks replies that retrying cannot fix.
var errPermanent = errors.New("permanent")

func (g *DataGenerator) fetchLast(ctx context.Context, baseURL, buoyID string) (entities.SensorReading, error) {
	url := fmt.Sprintf("%s/data/latest?source=cache", baseURL)

	var out entities.SensorReading
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "kelpcoins-buoy-simulator/1.0")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("telemetry HTTP %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("%w: telemetry HTTP %d", errPermanent, resp.StatusCode))
		}

		var list []messages.SensorReadingMessage
		if err := json.Unmarshal(body, &list); err != nil {
			return backoff.Permanent(err)
		}
		for _, m := range list {
			if m.BuoyID == buoyID {
				out = m.Reading
				return nil
			}
		}
		return backoff.Permanent(fmt.Errorf("buoy %s not found in telemetry", buoyID))
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 600 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 1), ctx))
	return out, err
}

func clamp(x, min, max float64) float64 {
	return math.Max(min, math.Min(max, x))
}

func round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}
