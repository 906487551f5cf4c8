package entities

// LbToKg is the fixed pound to kilogram factor.
const LbToKg = 0.453592

// PoundsToKilograms converts a mass in pounds to kilograms.
func PoundsToKilograms(lb float64) float64 {
	return lb * LbToKg
}

// Where a ValidationResult came from.
const (
	SourceModel = "model"
	SourceDemo  = "demo"
)

// NutrientRemovals are the removed masses in kilograms.
type NutrientRemovals struct {
	NKg float64 `json:"N_kg"`
	PKg float64 `json:"P_kg"`
	CKg float64 `json:"C_kg"`
}

// ValidationResult is the outcome of the feasibility and reward computation.
// Feasible is authoritative: it is never re-derived from Ratio.
type ValidationResult struct {
	Feasible               bool    `json:"feasible"`
	Q95Chlorophyll         float64 `json:"q95_chlorophyll"`
	Q95DryBiomassLb        float64 `json:"q95_dry_biomass_lb"`
	ReportedInputBiomassLb float64 `json:"reported_input_biomass_lb"`
	InputType              string  `json:"input_type"`
	ReportedDryBiomassLb   float64 `json:"reported_dry_biomass_lb"`
	Ratio                  float64 `json:"ratio"`

	CarbonLb     float64 `json:"carbon_lb"`
	NitrogenLb   float64 `json:"nitrogen_lb"`
	PhosphorusLb float64 `json:"phosphorus_lb"`
	ValueCUSD    float64 `json:"value_c_usd"`
	ValueNUSD    float64 `json:"value_n_usd"`
	ValuePUSD    float64 `json:"value_p_usd"`
	TotalUSD     float64 `json:"total_usd"`

	NutrientRemovals NutrientRemovals `json:"nutrientRemovals"`
	Message          string           `json:"message"`
	Source           string           `json:"source"`
}

// DeriveRemovals fills NutrientRemovals from the pound fields.
func (v *ValidationResult) DeriveRemovals() {
	v.NutrientRemovals = NutrientRemovals{
		NKg: PoundsToKilograms(v.NitrogenLb),
		PKg: PoundsToKilograms(v.PhosphorusLb),
		CKg: PoundsToKilograms(v.CarbonLb),
	}
}
