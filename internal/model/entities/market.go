package entities

import "time"

// Listing is a batch of PhycoCoins offered for sale by a farmer.
type Listing struct {
	ID             string    `json:"id"`
	Farmer         string    `json:"farmer"`
	HarvestID      string    `json:"harvestId"`
	CoinsAvailable float64   `json:"coinsAvailable"`
	PricePerCoin   float64   `json:"pricePerCoin"`
	CreatedAt      time.Time `json:"createdAt"`

	Seq int64 `json:"-"` // creation order
}

// Trade is an executed purchase against a listing.
type Trade struct {
	TransactionID string    `json:"transactionId"`
	BatchID       string    `json:"batchId"`
	Buyer         string    `json:"buyer,omitempty"`
	Coins         float64   `json:"coins"`
	PricePerCoin  float64   `json:"pricePerCoin"`
	TotalUSD      float64   `json:"totalUsd"`
	ExecutedAt    time.Time `json:"executedAt"`
}

// CoinBreakdown splits a mint by nutrient.
type CoinBreakdown struct {
	Nitrogen   float64 `json:"nitrogen"`
	Phosphorus float64 `json:"phosphorus"`
	Carbon     float64 `json:"carbon"`
}

// MintReceipt records tokens credited for a harvest.
type MintReceipt struct {
	HarvestID  string        `json:"harvestId"`
	To         string        `json:"to"`
	TotalCoins float64       `json:"totalCoins"`
	Breakdown  CoinBreakdown `json:"breakdown"`
	TxHash     string        `json:"txHash"`
	Balance    string        `json:"balance"`
	MintedAt   time.Time     `json:"mintedAt"`
}

// SwapReceipt records an ETH to PhycoCoin swap.
type SwapReceipt struct {
	To        string    `json:"to"`
	WeiPaid   string    `json:"weiPaid"`
	Received  string    `json:"received"`
	TxHash    string    `json:"txHash"`
	SwappedAt time.Time `json:"swappedAt"`
}
