package app

import (
	"net/http"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/kelpcoins/internal/metrics"
)

// PredictionService is the gRPC health name that follows the prediction breaker.
const PredictionService = "kelpcoins.prediction"

// NewHealthServer returns the standard gRPC health service with the gateway
// and the prediction upstream marked as serving.
func NewHealthServer() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(PredictionService, healthpb.HealthCheckResponse_SERVING)
	return hs
}

// BreakerHook reflects upstream breaker transitions on the gRPC health
// service and the breaker gauge. Only the prediction upstream drives the
// health status.
func BreakerHook(hs *health.Server, m *metrics.Metrics, predictionName string) func(name string, open bool) {
	return func(name string, open bool) {
		m.SetBreakerOpen(name, open)
		if hs == nil || name != predictionName {
			return
		}
		st := healthpb.HealthCheckResponse_SERVING
		if open {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus(PredictionService, st)
	}
}

func (g *Gateway) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady answers 503 while any probe fails.
func (g *Gateway) HandleReady(w http.ResponseWriter, _ *http.Request) {
	ready := true
	checks := make(map[string]bool, len(g.probes))
	for name, probe := range g.probes {
		ok := probe()
		checks[name] = ok
		ready = ready && ok
	}
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, struct {
		Ready  bool            `json:"ready"`
		Checks map[string]bool `json:"checks"`
	}{Ready: ready, Checks: checks})
}
