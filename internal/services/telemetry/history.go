package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/log"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// HistoryPoint is one archived reading.
type HistoryPoint struct {
	BuoyID  string                 `json:"buoy_id"`
	Kind    string                 `json:"kind"`
	Reading entities.SensorReading `json:"reading"`
	Time    string                 `json:"time"` // RFC3339
}

type historyParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseHistory(r *http.Request, defMin, defLim, defTOms int) historyParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return historyParams{
		Minutes:   get("minutes", defMin, 1, 7*24*60),
		Limit:     get("limit", defLim, 1, 500),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
}

func buildFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q)
  |> pivot(rowKey: ["_time", "buoy_id", "kind"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)
`, bucket, minutes, MeasurementReading, limit)
}

// History returns the newest archived readings, newest first.
func (a *Archive) History(ctx context.Context, minutes, limit int) ([]HistoryPoint, error) {
	if a == nil {
		return []HistoryPoint{}, nil
	}
	res, err := a.client.QueryAPI(a.org).Query(ctx, buildFlux(a.bucket, minutes, limit))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer func() { _ = res.Close() }()

	out := make([]HistoryPoint, 0, limit)
	for res.Next() {
		rec := res.Record()
		out = append(out, HistoryPoint{
			BuoyID: stringValue(rec.ValueByKey("buoy_id")),
			Kind:   stringValue(rec.ValueByKey("kind")),
			Reading: entities.SensorReading{
				WaterTemperature:  floatValue(rec.ValueByKey("water_temperature")),
				LightPAR:          floatValue(rec.ValueByKey("light_PAR")),
				InorganicNitrogen: floatValue(rec.ValueByKey("inorganic_nitrogen")),
				TotalPhosphorus:   floatValue(rec.ValueByKey("total_phosphorus")),
				SecchiDepth:       floatValue(rec.ValueByKey("secchi_depth")),
			},
			Time: rec.Time().UTC().Format(time.RFC3339),
		})
	}
	if res.Err() != nil {
		return out, fmt.Errorf("influx iterate: %w", res.Err())
	}
	return out, nil
}

// NewHistoryHandler serves GET ?minutes=1440&limit=50 from the archive.
// Query failures degrade to an empty list with an X-Error header.
func NewHistoryHandler(a *Archive) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseHistory(r, 1440, 50, 2000)

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		out, err := a.History(ctx, p.Minutes, p.Limit)
		if err != nil {
			log.Warnw("sensor history query failed", "err", err)
			w.Header().Set("X-Error", "influx-query-error")
			if out == nil {
				out = []HistoryPoint{}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}

func floatValue(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return 0
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
