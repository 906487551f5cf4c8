// Package metrics holds the Prometheus collectors shared by the services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing,
// so components can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	Validations    *prometheus.CounterVec
	PredictionTime prometheus.Histogram
	Verifications  *prometheus.CounterVec
	Submissions    prometheus.Counter
	CoinsMinted    prometheus.Counter
	Readings       *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	BreakerState   *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kelpcoins",
			Name:      "harvest_validations_total",
			Help:      "Feasibility checks by source and outcome.",
		}, []string{"source", "outcome"}),
		PredictionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kelpcoins",
			Name:      "prediction_duration_seconds",
			Help:      "Latency of the external prediction service.",
			Buckets:   prometheus.DefBuckets,
		}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kelpcoins",
			Name:      "photo_verifications_total",
			Help:      "Photo proof-of-harvest checks by outcome.",
		}, []string{"outcome"}),
		Submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kelpcoins",
			Name:      "harvests_submitted_total",
			Help:      "Harvest records persisted.",
		}),
		CoinsMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kelpcoins",
			Name:      "coins_minted_total",
			Help:      "PhycoCoins credited to farmers.",
		}),
		Readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kelpcoins",
			Name:      "sensor_readings_total",
			Help:      "Buoy readings ingested by topic kind.",
		}, []string{"kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kelpcoins",
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kelpcoins",
			Name:      "circuit_breaker_open",
			Help:      "1 while the named upstream breaker is open.",
		}, []string{"upstream"}),
	}
	reg.MustRegister(
		m.Validations, m.PredictionTime, m.Verifications, m.Submissions,
		m.CoinsMinted, m.Readings, m.HTTPRequests, m.BreakerState,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveValidation(source string, feasible bool, err error) {
	if m == nil {
		return
	}
	outcome := "infeasible"
	switch {
	case err != nil:
		outcome = "error"
	case feasible:
		outcome = "feasible"
	}
	m.Validations.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObservePrediction(seconds float64) {
	if m == nil {
		return
	}
	m.PredictionTime.Observe(seconds)
}

func (m *Metrics) ObserveVerification(verified bool, err error) {
	if m == nil {
		return
	}
	outcome := "rejected"
	switch {
	case err != nil:
		outcome = "error"
	case verified:
		outcome = "verified"
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSubmission() {
	if m == nil {
		return
	}
	m.Submissions.Inc()
}

func (m *Metrics) ObserveMint(coins float64) {
	if m == nil {
		return
	}
	m.CoinsMinted.Add(coins)
}

func (m *Metrics) ObserveReading(aggregated bool) {
	if m == nil {
		return
	}
	kind := "raw"
	if aggregated {
		kind = "aggregated"
	}
	m.Readings.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveRequest(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}

func (m *Metrics) SetBreakerOpen(upstream string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerState.WithLabelValues(upstream).Set(v)
}
