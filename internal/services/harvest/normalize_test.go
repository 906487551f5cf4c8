package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

var fixedNow = time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

func fullForm() RawHarvestForm {
	return RawHarvestForm{
		HarvestID:   "h-1",
		Biomass:     "250.5",
		IsDryInput:  "false",
		HarvestDate: "2024-06-10",
		Latitude:    "43.65",
		Longitude:   "-70.25",
		Sensors: RawSensorForm{
			WaterTemperature:  "15",
			Light:             "300",
			InorganicNitrogen: "0.8",
			TotalPhosphorus:   "0.1",
			SecchiDepth:       "4",
		},
	}
}

func TestNormalizeFullForm(t *testing.T) {
	n, err := Normalize(fullForm(), fixedNow)
	require.NoError(t, err)

	rec := n.Record
	assert.True(t, n.SensorsProvided)
	assert.Equal(t, "h-1", rec.HarvestID)
	assert.Equal(t, 250.5, rec.Biomass)
	assert.False(t, rec.IsDryInput)
	assert.Equal(t, "2024-06-10", rec.HarvestDate.String())
	assert.Equal(t, 43.65, rec.Latitude)
	assert.Equal(t, -70.25, rec.Longitude)
	assert.False(t, rec.DefaultLocationUsed)
	assert.Equal(t, entities.SensorReading{
		WaterTemperature: 15, LightPAR: 300, InorganicNitrogen: 0.8, TotalPhosphorus: 0.1, SecchiDepth: 4,
	}, rec.Sensors)
	assert.Equal(t, entities.HarvestPending, rec.Status)
}

func TestNormalizeDefaults(t *testing.T) {
	form := RawHarvestForm{Biomass: "10", IsDryInput: "on"}
	n, err := Normalize(form, fixedNow)
	require.NoError(t, err)

	assert.NotEmpty(t, n.Record.HarvestID)
	assert.True(t, n.Record.IsDryInput)
	assert.Equal(t, "2024-06-15", n.Record.HarvestDate.String())
	assert.True(t, n.Record.DefaultLocationUsed)
	assert.Equal(t, 42.3601, n.Record.Latitude)
	assert.Equal(t, -71.0589, n.Record.Longitude)
	assert.False(t, n.SensorsProvided)
}

func TestNormalizeLocationFallback(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon string
	}{
		{"missing", "", ""},
		{"half", "43.1", ""},
		{"garbage", "north", "-70"},
		{"out of range", "91", "-70"},
		{"nan", "NaN", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := ParseLocation(tt.lat, tt.lon)
			assert.Equal(t, entities.FallbackLocation(), loc)
		})
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawHarvestForm)
	}{
		{"empty biomass", func(f *RawHarvestForm) { f.Biomass = "" }},
		{"zero biomass", func(f *RawHarvestForm) { f.Biomass = "0" }},
		{"negative biomass", func(f *RawHarvestForm) { f.Biomass = "-3" }},
		{"text biomass", func(f *RawHarvestForm) { f.Biomass = "lots" }},
		{"infinite biomass", func(f *RawHarvestForm) { f.Biomass = "Inf" }},
		{"bad flag", func(f *RawHarvestForm) { f.IsDryInput = "maybe" }},
		{"bad date", func(f *RawHarvestForm) { f.HarvestDate = "15/06/2024" }},
		{"partial sensors", func(f *RawHarvestForm) { f.Sensors.SecchiDepth = "" }},
		{"bad sensor", func(f *RawHarvestForm) { f.Sensors.Light = "bright" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := fullForm()
			tt.mutate(&form)
			_, err := Normalize(form, fixedNow)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
