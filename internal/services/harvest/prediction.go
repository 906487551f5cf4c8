package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// Validator decides whether a harvest is plausible and what it is worth.
type Validator interface {
	Validate(ctx context.Context, reading entities.SensorReading, biomassLb float64, isDry bool) (entities.ValidationResult, error)
}

// predictRequest is the body the prediction service expects.
// Field order is part of the wire contract.
type predictRequest struct {
	Features          [entities.FeatureCount]float64 `json:"features"`
	ReportedBiomassLb float64                        `json:"reported_biomass_lb"`
	IsDryInput        bool                           `json:"is_dry_input"`
}

const responseSchemaURL = "https://kelpcoins.local/schemas/prediction-response.json"

// responseSchema pins the fields we read; anything extra is ignored.
const responseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["feasible", "ratio", "carbon_lb", "nitrogen_lb", "phosphorus_lb", "total_usd"],
  "properties": {
    "feasible": {"type": "boolean"},
    "ratio": {"type": "number", "exclusiveMinimum": 0},
    "q95_chlorophyll": {"type": "number"},
    "q95_dry_biomass_lb": {"type": "number"},
    "reported_input_biomass_lb": {"type": "number"},
    "input_type": {"type": "string"},
    "reported_dry_biomass_lb": {"type": "number"},
    "carbon_lb": {"type": "number", "minimum": 0},
    "nitrogen_lb": {"type": "number", "minimum": 0},
    "phosphorus_lb": {"type": "number", "minimum": 0},
    "value_c_usd": {"type": "number"},
    "value_n_usd": {"type": "number"},
    "value_p_usd": {"type": "number"},
    "total_usd": {"type": "number", "minimum": 0}
  }
}`

func compileResponseSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(responseSchemaURL, strings.NewReader(responseSchema)); err != nil {
		return nil, fmt.Errorf("prediction schema load failed: %w", err)
	}
	return c.Compile(responseSchemaURL)
}

// PredictionClient asks the external model for the feasibility verdict.
// The verdict and every monetary field are taken as returned.
type PredictionClient struct {
	up      *Upstream
	schema  *jsonschema.Schema
	observe func(seconds float64)
}

func NewPredictionClient(up *Upstream, observe func(seconds float64)) (*PredictionClient, error) {
	sch, err := compileResponseSchema()
	if err != nil {
		return nil, err
	}
	return &PredictionClient{up: up, schema: sch, observe: observe}, nil
}

func (p *PredictionClient) Validate(ctx context.Context, reading entities.SensorReading, biomassLb float64, isDry bool) (entities.ValidationResult, error) {
	start := time.Now()
	body, err := p.up.PostJSON(ctx, predictRequest{
		Features:          reading.Features(),
		ReportedBiomassLb: biomassLb,
		IsDryInput:        isDry,
	})
	if p.observe != nil {
		p.observe(time.Since(start).Seconds())
	}
	if err != nil {
		return entities.ValidationResult{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return p.decode(body)
}

func (p *PredictionClient) decode(body []byte) (entities.ValidationResult, error) {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return entities.ValidationResult{}, fmt.Errorf("%w: malformed prediction reply: %v", ErrValidationFailed, err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return entities.ValidationResult{}, fmt.Errorf("%w: unexpected prediction reply: %v", ErrValidationFailed, err)
	}

	var res entities.ValidationResult
	if err := json.Unmarshal(body, &res); err != nil {
		return entities.ValidationResult{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	res.DeriveRemovals()
	res.Message = verdictMessage(res)
	res.Source = entities.SourceModel
	return res, nil
}

// verdictMessage phrases the verdict for the farmer. The percentage is
// how far the report sits from the model's maximum.
func verdictMessage(r entities.ValidationResult) string {
	if r.Feasible {
		return fmt.Sprintf("Plausible harvest! Your reported biomass is %.1f%% of the maximum expected biomass.", r.Ratio*100)
	}
	return fmt.Sprintf("Suspicious harvest! Your reported biomass exceeds the maximum expected biomass by %.1f%%.", (r.Ratio-1)*100)
}
