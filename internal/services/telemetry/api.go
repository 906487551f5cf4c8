package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/LeonardoBeccarini/kelpcoins/internal/metrics"
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/messages"
)

// NewRouter exposes the feed and the archive.
//
//	GET /data/latest?source=auto|influx|cache&minutes=1440
//	GET /sensors/history?minutes=&limit=
//	GET /healthz, /readyz, /metrics
func NewRouter(svc *Service, b Connectivity, m *metrics.Metrics) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/healthz", NewHealthHandler(b, svc.Archive())).Methods(http.MethodGet)
	r.Handle("/readyz", NewReadyHandler(b, svc.Archive(), 2*time.Second)).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.Handle("/sensors/history", NewHistoryHandler(svc.Archive())).Methods(http.MethodGet)
	r.HandleFunc("/data/latest", latestHandler(svc)).Methods(http.MethodGet)
	return r
}

func latestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		source := strings.ToLower(q.Get("source"))
		if source == "" {
			source = "auto"
		}
		minutes := 60 * 24
		if s := q.Get("minutes"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				minutes = n
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		// prima Influx, poi la cache
		var (
			list []messages.SensorReadingMessage
			used string
		)
		if (source == "influx" || source == "auto") && svc.Archive().Enabled() {
			if hist, err := svc.Archive().History(ctx, minutes, 500); err == nil && len(hist) > 0 {
				list = newestPerBuoy(hist)
				used = "influx"
			}
		}
		if used == "" {
			list = svc.Feed().Snapshot()
			used = "cache"
		}
		sort.Slice(list, func(i, j int) bool { return list[i].BuoyID < list[j].BuoyID })

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Data-Source", used)
		_ = json.NewEncoder(w).Encode(list)
	}
}

// newestPerBuoy keeps the first (newest) point of each buoy.
func newestPerBuoy(hist []HistoryPoint) []messages.SensorReadingMessage {
	seen := make(map[string]bool, len(hist))
	out := make([]messages.SensorReadingMessage, 0)
	for _, h := range hist {
		if seen[h.BuoyID] {
			continue
		}
		seen[h.BuoyID] = true
		ts, _ := time.Parse(time.RFC3339, h.Time)
		out = append(out, messages.SensorReadingMessage{
			BuoyID:     h.BuoyID,
			Reading:    h.Reading,
			Aggregated: h.Kind == "aggregated",
			Timestamp:  ts,
		})
	}
	return out
}
