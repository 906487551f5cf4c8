package telemetry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/messages"
)

// ErrNoData is returned while no buoy has reported yet.
var ErrNoData = errors.New("no sensor data received yet")

// Feed keeps the latest snapshot per buoy. An aggregated snapshot wins over
// raw readings until a newer aggregate arrives.
type Feed struct {
	mu     sync.RWMutex
	latest map[string]messages.SensorReadingMessage
	maxAge time.Duration
	now    func() time.Time
}

// NewFeed creates a feed. Snapshots older than maxAge are ignored by
// Latest; zero keeps them forever.
func NewFeed(maxAge time.Duration) *Feed {
	return &Feed{
		latest: make(map[string]messages.SensorReadingMessage),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Update records m unless an equally recent aggregate is already held.
func (f *Feed) Update(m messages.SensorReadingMessage) {
	if m.BuoyID == "" {
		return
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = f.now().UTC()
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, ok := f.latest[m.BuoyID]
	switch {
	case !ok:
	case m.Timestamp.Before(cur.Timestamp):
		return
	case cur.Aggregated && !m.Aggregated && m.Timestamp.Equal(cur.Timestamp):
		return
	}
	f.latest[m.BuoyID] = m
}

// Snapshot returns every buoy's latest message sorted by buoy id.
func (f *Feed) Snapshot() []messages.SensorReadingMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]messages.SensorReadingMessage, 0, len(f.latest))
	for _, m := range f.latest {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BuoyID < out[j].BuoyID })
	return out
}

func (f *Feed) newest() (messages.SensorReadingMessage, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var (
		best  messages.SensorReadingMessage
		found bool
	)
	for _, m := range f.latest {
		if f.maxAge > 0 && f.now().Sub(m.Timestamp) > f.maxAge {
			continue
		}
		if !found || m.Timestamp.After(best.Timestamp) ||
			(m.Timestamp.Equal(best.Timestamp) && m.BuoyID < best.BuoyID) {
			best, found = m, true
		}
	}
	return best, found
}

// Latest returns the most recent reading across buoys.
func (f *Feed) Latest(ctx context.Context) (entities.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return entities.SensorReading{}, err
	}
	m, ok := f.newest()
	if !ok {
		return entities.SensorReading{}, ErrNoData
	}
	return m.Reading, nil
}
