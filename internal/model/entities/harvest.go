package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// HarvestStatus is the review state of a submitted harvest.
// Submissions start as pending; only the external reviewer moves them on.
type HarvestStatus string

const (
	HarvestPending  HarvestStatus = "pending"
	HarvestApproved HarvestStatus = "approved"
	HarvestRejected HarvestStatus = "rejected"
)

// DateLayout is the calendar-date format used on the wire.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	// accetta anche timestamp completi
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = NewDate(t)
		return nil
	}
	p, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("harvest date %q: %w", s, err)
	}
	*d = p
	return nil
}

// Location is where a harvest happened, in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Fallback  bool    `json:"fallback"` // true when the default coordinate was used
}

// FallbackLocation is Boston Harbor, used when geolocation is unavailable.
func FallbackLocation() Location {
	return Location{Latitude: 42.3601, Longitude: -71.0589, Fallback: true}
}

// HarvestRecord is one farmer submission.
type HarvestRecord struct {
	HarvestID     string `json:"harvestId"`
	WalletAddress string `json:"walletAddress,omitempty"`

	Biomass     float64 `json:"wetBiomassOrDryBiomass"`
	IsDryInput  bool    `json:"isDryInput"`
	HarvestDate Date    `json:"harvestDate"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`

	DefaultLocationUsed bool `json:"defaultLocationUsed"`

	Sensors       SensorReading     `json:"sensorData"`
	Validation    *ValidationResult `json:"validation,omitempty"`
	PhotoVerified bool              `json:"photoVerified"`

	SubmittedAt time.Time     `json:"submittedAt,omitempty"`
	Status      HarvestStatus `json:"status"`

	// set once the reward has been credited
	MintTx   string     `json:"mintTx,omitempty"`
	MintedAt *time.Time `json:"mintedAt,omitempty"`
}

// Location returns the coordinates of the record.
func (h HarvestRecord) Location() Location {
	return Location{Latitude: h.Latitude, Longitude: h.Longitude, Fallback: h.DefaultLocationUsed}
}

// Feasible reports whether a validation exists and says the harvest is plausible.
func (h HarvestRecord) Feasible() bool {
	return h.Validation != nil && h.Validation.Feasible
}

// Minted reports whether the reward for this harvest was already credited.
func (h HarvestRecord) Minted() bool {
	return h.MintTx != ""
}
