//go:build property
// +build property

package harvest

import (
	"math"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// Property: kg == lb * 0.453592 within 1e-8 for every reported mass.
func TestPoundsToKilogramsExact(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("lb to kg uses the fixed factor", prop.ForAll(
		func(lb float64) bool {
			kg := entities.PoundsToKilograms(lb)
			return math.Abs(kg-lb*0.453592) <= 1e-8
		},
		gen.Float64Range(0, 1e6),
	))

	properties.Property("removals are derived from the pound fields", prop.ForAll(
		func(n, p, c float64) bool {
			v := entities.ValidationResult{NitrogenLb: n, PhosphorusLb: p, CarbonLb: c}
			v.DeriveRemovals()
			return math.Abs(v.NutrientRemovals.NKg-n*entities.LbToKg) <= 1e-8 &&
				math.Abs(v.NutrientRemovals.PKg-p*entities.LbToKg) <= 1e-8 &&
				math.Abs(v.NutrientRemovals.CKg-c*entities.LbToKg) <= 1e-8
		},
		gen.Float64Range(0, 1e4),
		gen.Float64Range(0, 1e4),
		gen.Float64Range(0, 1e4),
	))

	properties.TestingRun(t)
}

// Property: Verify(text, code) is true iff the code appears verbatim in text.
func TestVerifyMatchesSubstring(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("code embedded anywhere verifies", prop.ForAll(
		func(prefix, suffix string, n int) bool {
			code := strconv.Itoa(n)
			return Verify(prefix+code+suffix, code)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(codeMin, codeMax),
	))

	properties.Property("letters alone never verify a numeric code", prop.ForAll(
		func(text string, n int) bool {
			return !Verify(text, strconv.Itoa(n))
		},
		gen.AlphaString(),
		gen.IntRange(codeMin, codeMax),
	))

	properties.TestingRun(t)
}

// Property: demo removals are linear in the wet weight.
func TestDemoRemovalsLinear(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("N, P and C are fixed fractions", prop.ForAll(
		func(w float64) bool {
			r := Removals(w)
			return math.Abs(r.NKg-w*0.02) <= 1e-9 &&
				math.Abs(r.PKg-w*0.002) <= 1e-9 &&
				math.Abs(r.CKg-w*0.1) <= 1e-9
		},
		gen.Float64Range(0, 1e5),
	))

	properties.TestingRun(t)
}
