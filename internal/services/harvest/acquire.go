package harvest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// Locator resolves where the farmer is. A position that is not the
// farmer's own (a site default, a nearby buoy) must carry Fallback.
type Locator interface {
	Locate(ctx context.Context) (entities.Location, error)
}

// SensorSource returns the latest water reading.
type SensorSource interface {
	Latest(ctx context.Context) (entities.SensorReading, error)
}

// Acquired is the outcome of the concurrent lookups. Each half falls back
// on its own: a failed location never discards a good reading.
type Acquired struct {
	Location            entities.Location
	Reading             entities.SensorReading
	DefaultLocationUsed bool
	DefaultSensorsUsed  bool
}

// Acquire starts both lookups before waiting on either and returns once
// both have settled. Errors are absorbed into the fixed fallbacks.
func Acquire(ctx context.Context, loc Locator, sensors SensorSource) Acquired {
	g, gctx := errgroup.WithContext(ctx)

	var out Acquired
	out.Location = entities.FallbackLocation()
	out.DefaultLocationUsed = true
	out.Reading = entities.ReferenceReading()
	out.DefaultSensorsUsed = true

	g.Go(func() error {
		if loc == nil {
			return nil
		}
		l, err := loc.Locate(gctx)
		if err != nil {
			log.Warnw("location lookup failed, using fallback", "err", err)
			return nil
		}
		out.Location = l
		out.DefaultLocationUsed = l.Fallback
		return nil
	})
	g.Go(func() error {
		if sensors == nil {
			return nil
		}
		r, err := sensors.Latest(gctx)
		if err != nil {
			log.Warnw("sensor lookup failed, using reference reading", "err", err)
			return nil
		}
		out.Reading = r
		out.DefaultSensorsUsed = false
		return nil
	})
	_ = g.Wait()
	return out
}
