package harvest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

const feasibleReply = `{
  "feasible": true,
  "q95_chlorophyll": 12.3,
  "q95_dry_biomass_lb": 40,
  "reported_input_biomass_lb": 250,
  "input_type": "wet",
  "reported_dry_biomass_lb": 25,
  "ratio": 0.625,
  "carbon_lb": 8.25,
  "nitrogen_lb": 0.625,
  "phosphorus_lb": 0.075,
  "value_c_usd": 1.0725,
  "value_n_usd": 3.175,
  "value_p_usd": 0.83625,
  "total_usd": 5.08375
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *PredictionClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	up := NewUpstream("prediction", srv.URL, time.Second, BreakerSettings{Failures: 3, OpenFor: time.Minute})
	pc, err := NewPredictionClient(up, nil)
	require.NoError(t, err)
	return pc
}

func TestPredictionWirePayload(t *testing.T) {
	bodies := make(chan string, 1)
	pc := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
		_, _ = w.Write([]byte(feasibleReply))
	})

	reading := entities.SensorReading{
		WaterTemperature:  15.5,
		LightPAR:          300,
		InorganicNitrogen: 0.8,
		TotalPhosphorus:   0.1,
		SecchiDepth:       4,
	}
	_, err := pc.Validate(context.Background(), reading, 250, false)
	require.NoError(t, err)

	assert.Equal(t, `{"features":[15.5,300,0.8,0.1,4],"reported_biomass_lb":250,"is_dry_input":false}`, <-bodies)
}

func TestPredictionKeepsUpstreamFields(t *testing.T) {
	pc := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feasibleReply))
	})

	res, err := pc.Validate(context.Background(), goodReading(), 250, false)
	require.NoError(t, err)

	assert.True(t, res.Feasible)
	assert.Equal(t, 0.625, res.Ratio)
	assert.Equal(t, 5.08375, res.TotalUSD)
	assert.Equal(t, 1.0725, res.ValueCUSD)
	assert.Equal(t, "wet", res.InputType)
	assert.Equal(t, entities.SourceModel, res.Source)
	assert.InDelta(t, 0.625*entities.LbToKg, res.NutrientRemovals.NKg, 1e-12)
	assert.InDelta(t, 8.25*entities.LbToKg, res.NutrientRemovals.CKg, 1e-12)
	assert.Equal(t, "Plausible harvest! Your reported biomass is 62.5% of the maximum expected biomass.", res.Message)
}

func TestPredictionInfeasibleMessage(t *testing.T) {
	pc := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"feasible": false, "ratio": 1.5, "carbon_lb": 1, "nitrogen_lb": 1, "phosphorus_lb": 1, "total_usd": 9}`))
	})

	res, err := pc.Validate(context.Background(), goodReading(), 250, true)
	require.NoError(t, err)
	assert.False(t, res.Feasible)
	assert.Equal(t, 9.0, res.TotalUSD)
	assert.Equal(t, "Suspicious harvest! Your reported biomass exceeds the maximum expected biomass by 50.0%.", res.Message)
}

func TestPredictionFeasibleIsAuthoritative(t *testing.T) {
	// ratio above 1 but the model says feasible: we do not second-guess it
	pc := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"feasible": true, "ratio": 1.02, "carbon_lb": 1, "nitrogen_lb": 1, "phosphorus_lb": 1, "total_usd": 2}`))
	})
	res, err := pc.Validate(context.Background(), goodReading(), 250, true)
	require.NoError(t, err)
	assert.True(t, res.Feasible)
}

func TestPredictionFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"bad request", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad features", http.StatusBadRequest)
		}},
		{"not json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}},
		{"missing verdict", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"ratio": 0.5, "carbon_lb": 1, "nitrogen_lb": 1, "phosphorus_lb": 1, "total_usd": 2}`))
		}},
		{"zero ratio", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"feasible": true, "ratio": 0, "carbon_lb": 1, "nitrogen_lb": 1, "phosphorus_lb": 1, "total_usd": 2}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := newTestClient(t, tt.handler)
			_, err := pc.Validate(context.Background(), goodReading(), 250, false)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}
}

func TestPredictionNoRetry(t *testing.T) {
	var calls atomic.Int32
	pc := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := pc.Validate(context.Background(), goodReading(), 250, false)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.EqualValues(t, 1, calls.Load())
}

func TestUpstreamBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var opened bool
	up := NewUpstream("prediction", srv.URL, time.Second, BreakerSettings{
		Failures: 2,
		OpenFor:  time.Minute,
		OnStateChange: func(_ string, open bool) {
			opened = open
		},
	})
	for i := 0; i < 3; i++ {
		_, err := up.PostJSON(context.Background(), map[string]int{"n": i})
		assert.ErrorIs(t, err, ErrNetworkFailure)
	}
	assert.EqualValues(t, 2, calls.Load())
	assert.True(t, up.Open())
	assert.True(t, opened)
}

func TestUpstreamClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	up := NewUpstream("prediction", srv.URL, time.Second, BreakerSettings{Failures: 1, OpenFor: time.Minute})
	for i := 0; i < 3; i++ {
		_, err := up.PostJSON(context.Background(), nil)
		require.Error(t, err)
	}
	assert.False(t, up.Open())
}

func TestPoundToKilogramFactor(t *testing.T) {
	assert.Equal(t, 0.453592, entities.LbToKg)
	assert.InDelta(t, 45.3592, entities.PoundsToKilograms(100), 1e-12)
}
