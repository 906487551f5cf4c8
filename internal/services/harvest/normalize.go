package harvest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// RawSensorForm holds the sensor inputs as typed by the farmer.
type RawSensorForm struct {
	WaterTemperature  string `json:"water_temperature"`
	Light             string `json:"light"`
	InorganicNitrogen string `json:"inorganic_nitrogen"`
	TotalPhosphorus   string `json:"total_phosphorus"`
	SecchiDepth       string `json:"secchi_depth"`
}

func (f RawSensorForm) empty() bool {
	return strings.TrimSpace(f.WaterTemperature+f.Light+f.InorganicNitrogen+f.TotalPhosphorus+f.SecchiDepth) == ""
}

// RawHarvestForm holds the harvest form fields exactly as submitted by the UI.
type RawHarvestForm struct {
	HarvestID     string        `json:"harvestId"`
	WalletAddress string        `json:"walletAddress"`
	Biomass       string        `json:"wetBiomassOrDryBiomass"`
	IsDryInput    string        `json:"isDryInput"`
	HarvestDate   string        `json:"harvestDate"`
	Latitude      string        `json:"latitude"`
	Longitude     string        `json:"longitude"`
	Sensors       RawSensorForm `json:"sensorData"`
}

// Normalized is a typed draft plus what normalization had to fill in.
type Normalized struct {
	Record entities.HarvestRecord
	// SensorsProvided is false when the form carried no sensor values and
	// the reading must be acquired from the feed.
	SensorsProvided bool
}

// Normalize turns raw form fields into a HarvestRecord draft.
// A missing or unusable coordinate pair is replaced by the fallback location
// and flagged on the record; malformed numbers are rejected with ErrInvalidInput.
func Normalize(form RawHarvestForm, now time.Time) (Normalized, error) {
	biomass, err := parsePositive(form.Biomass)
	if err != nil {
		return Normalized{}, fmt.Errorf("%w: biomass: %v", ErrInvalidInput, err)
	}

	isDry, err := parseFlag(form.IsDryInput)
	if err != nil {
		return Normalized{}, fmt.Errorf("%w: isDryInput: %v", ErrInvalidInput, err)
	}

	date := entities.NewDate(now.UTC())
	if s := strings.TrimSpace(form.HarvestDate); s != "" {
		if date, err = entities.ParseDate(s); err != nil {
			return Normalized{}, fmt.Errorf("%w: harvestDate %q", ErrInvalidInput, s)
		}
	}

	id := strings.TrimSpace(form.HarvestID)
	if id == "" {
		id = uuid.NewString()
	}

	loc := ParseLocation(form.Latitude, form.Longitude)

	out := Normalized{
		Record: entities.HarvestRecord{
			HarvestID:           id,
			WalletAddress:       strings.TrimSpace(form.WalletAddress),
			Biomass:             biomass,
			IsDryInput:          isDry,
			HarvestDate:         date,
			Latitude:            loc.Latitude,
			Longitude:           loc.Longitude,
			DefaultLocationUsed: loc.Fallback,
			Status:              entities.HarvestPending,
		},
	}

	if !form.Sensors.empty() {
		reading, err := ParseSensors(form.Sensors)
		if err != nil {
			return Normalized{}, err
		}
		out.Record.Sensors = reading
		out.SensorsProvided = true
	}
	return out, nil
}

// ParseLocation parses decimal degrees, falling back to the default
// coordinate when either value is missing, malformed or out of range.
func ParseLocation(lat, lon string) entities.Location {
	la, errLa := parseFinite(lat)
	lo, errLo := parseFinite(lon)
	if errLa != nil || errLo != nil || la < -90 || la > 90 || lo < -180 || lo > 180 {
		return entities.FallbackLocation()
	}
	return entities.Location{Latitude: la, Longitude: lo}
}

type sensorField struct {
	name string
	raw  string
	dst  *float64
}

// ParseSensors requires every sensor field to be a finite number.
func ParseSensors(f RawSensorForm) (entities.SensorReading, error) {
	var r entities.SensorReading
	fields := []sensorField{
		{"water_temperature", f.WaterTemperature, &r.WaterTemperature},
		{"light", f.Light, &r.LightPAR},
		{"inorganic_nitrogen", f.InorganicNitrogen, &r.InorganicNitrogen},
		{"total_phosphorus", f.TotalPhosphorus, &r.TotalPhosphorus},
		{"secchi_depth", f.SecchiDepth, &r.SecchiDepth},
	}
	for _, fl := range fields {
		v, err := parseFinite(fl.raw)
		if err != nil {
			return entities.SensorReading{}, fmt.Errorf("%w: %s: %v", ErrInvalidInput, fl.name, err)
		}
		*fl.dst = v
	}
	return r, nil
}

func parseFinite(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing value")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not finite: %q", s)
	}
	return f, nil
}

func parsePositive(s string) (float64, error) {
	f, err := parseFinite(s)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, fmt.Errorf("must be positive, got %v", f)
	}
	return f, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "0", "off", "no":
		return false, nil
	case "true", "1", "on", "yes":
		return true, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
