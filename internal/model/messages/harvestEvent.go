package messages

import "time"

// Event types published on event/harvest/{type}/{harvestId}.
const (
	HarvestValidated = "harvest.validated"
	PhotoVerified    = "harvest.photo_verified"
	HarvestSubmitted = "harvest.submitted"
	CoinsMinted      = "harvest.minted"
)

// HarvestEvent records a step of the harvest-to-credit pipeline.
type HarvestEvent struct {
	Type          string    `json:"type"`
	HarvestID     string    `json:"harvest_id"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	Feasible      bool      `json:"feasible"`
	Ratio         float64   `json:"ratio,omitempty"`
	TotalUSD      float64   `json:"total_usd,omitempty"`
	Source        string    `json:"source,omitempty"` // model | demo
	Detail        string    `json:"detail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
