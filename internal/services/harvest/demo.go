package harvest

import (
	"context"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// Demo mode constants.
const (
	freshToDry = 0.1

	removalN = 0.02
	removalP = 0.002
	removalC = 0.1

	// USD per lb of removed nutrient
	priceC = 0.13
	priceN = 5.08
	priceP = 11.15
)

// SensorBounds are the acceptable water conditions in demo mode.
// Every bound is inclusive.
type SensorBounds struct {
	MinTemp, MaxTemp float64
	MinPAR           float64
	MinNitrogen      float64
	MinPhosphorus    float64
	MinSecchi        float64
}

func DefaultBounds() SensorBounds {
	return SensorBounds{
		MinTemp:       10,
		MaxTemp:       25,
		MinPAR:        200,
		MinNitrogen:   0.5,
		MinPhosphorus: 0.05,
		MinSecchi:     3,
	}
}

// Within reports whether every reading sits inside the bounds.
func (b SensorBounds) Within(r entities.SensorReading) bool {
	return r.WaterTemperature >= b.MinTemp &&
		r.WaterTemperature <= b.MaxTemp &&
		r.LightPAR >= b.MinPAR &&
		r.InorganicNitrogen >= b.MinNitrogen &&
		r.TotalPhosphorus >= b.MinPhosphorus &&
		r.SecchiDepth >= b.MinSecchi
}

// Removals are fixed fractions of the wet weight in kilograms.
func Removals(wKg float64) entities.NutrientRemovals {
	return entities.NutrientRemovals{
		NKg: wKg * removalN,
		PKg: wKg * removalP,
		CKg: wKg * removalC,
	}
}

// DemoResponse is the reply shape of the demo validation endpoint.
type DemoResponse struct {
	IsValid          bool                       `json:"isValid"`
	Message          string                     `json:"message"`
	NutrientRemovals *entities.NutrientRemovals `json:"nutrientRemovals,omitempty"`
}

// DemoValidator judges plausibility by sensor ranges alone. It never
// calls out and is selected with VALIDATION_MODE=demo.
type DemoValidator struct {
	Bounds SensorBounds
}

func NewDemoValidator() *DemoValidator {
	return &DemoValidator{Bounds: DefaultBounds()}
}

// Check is the raw demo verdict for a wet weight in kilograms.
func (d *DemoValidator) Check(reading entities.SensorReading, wKg float64) DemoResponse {
	if !d.Bounds.Within(reading) {
		return DemoResponse{IsValid: false, Message: "Harvest data shows unusual values"}
	}
	rm := Removals(wKg)
	return DemoResponse{
		IsValid:          true,
		Message:          "Harvest data is within expected ranges",
		NutrientRemovals: &rm,
	}
}

// Validate maps the demo verdict onto a ValidationResult. There is no model
// estimate in demo mode, so Ratio and the q95 fields stay zero.
func (d *DemoValidator) Validate(ctx context.Context, reading entities.SensorReading, biomassLb float64, isDry bool) (entities.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return entities.ValidationResult{}, err
	}
	if biomassLb <= 0 {
		return entities.ValidationResult{}, ErrInvalidInput
	}

	res := entities.ValidationResult{
		ReportedInputBiomassLb: biomassLb,
		InputType:              inputType(isDry),
		ReportedDryBiomassLb:   biomassLb,
		Source:                 entities.SourceDemo,
	}
	if !isDry {
		res.ReportedDryBiomassLb = biomassLb * freshToDry
	}

	verdict := d.Check(reading, entities.PoundsToKilograms(biomassLb))
	res.Feasible = verdict.IsValid
	res.Message = verdict.Message
	if verdict.NutrientRemovals == nil {
		return res, nil
	}

	rm := *verdict.NutrientRemovals
	res.NutrientRemovals = rm
	res.NitrogenLb = rm.NKg / entities.LbToKg
	res.PhosphorusLb = rm.PKg / entities.LbToKg
	res.CarbonLb = rm.CKg / entities.LbToKg
	res.ValueNUSD = res.NitrogenLb * priceN
	res.ValuePUSD = res.PhosphorusLb * priceP
	res.ValueCUSD = res.CarbonLb * priceC
	res.TotalUSD = res.ValueNUSD + res.ValuePUSD + res.ValueCUSD
	return res, nil
}

func inputType(isDry bool) string {
	if isDry {
		return "dry"
	}
	return "wet"
}
