package telemetry

import (
	"encoding/json"
	"net/http"
	"time"
)

// Connectivity reports whether a dependency link is up.
type Connectivity interface {
	IsConnectionOpen() bool
}

type healthHandler struct {
	broker  Connectivity
	archive *Archive
}

func NewHealthHandler(b Connectivity, a *Archive) http.Handler {
	return &healthHandler{broker: b, archive: a}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		MQTTConnected   bool    `json:"mqtt_connected"`
		InfluxOK        bool    `json:"influx_ok"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec"`
	}
	st := status{
		MQTTConnected:   h.broker != nil && h.broker.IsConnectionOpen(),
		InfluxOK:        h.archive.Enabled(),
		LastWriteErrorS: h.archive.LastErrorAge().Seconds(),
	}

	switch {
	case st.MQTTConnected && st.InfluxOK && h.archive.LastErrorAge() > 30*time.Second:
		st.Status = "ok"
	case st.MQTTConnected || st.InfluxOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// readyHandler answers 200 only once the broker is connected and the
// archive has not failed recently. A disabled archive does not block.
type readyHandler struct {
	broker   Connectivity
	archive  *Archive
	minError time.Duration
}

func NewReadyHandler(b Connectivity, a *Archive, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{broker: b, archive: a, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.broker != nil && h.broker.IsConnectionOpen() && h.archive.LastErrorAge() > h.minError
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(struct {
		Ready bool `json:"ready"`
	}{Ready: ready})
}
