package app

import (
	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// ---------- Request payloads ----------

type harvestIDRequest struct {
	HarvestID string `json:"harvestId"`
}

type demoRequest struct {
	HarvestID  string                 `json:"harvestId"`
	WKg        float64                `json:"W_kg"`
	SensorData entities.SensorReading `json:"sensorData"`
}

type submitRequest struct {
	HarvestData *struct {
		HarvestID     string `json:"harvestId"`
		WalletAddress string `json:"walletAddress"`
	} `json:"harvestData"`
}

type listRequest struct {
	HarvestID    string  `json:"harvestId"`
	Coins        float64 `json:"coins"`
	PricePerCoin float64 `json:"pricePerCoin"`
}

type tradeRequest struct {
	BatchID      string  `json:"batchId"`
	Coins        float64 `json:"coins"`
	PricePerCoin float64 `json:"pricePerCoin"`
}

type swapRequest struct {
	Address string `json:"address"`
	Wei     string `json:"wei"` // decimal string, wei do not fit a float
}

// ---------- Responses ----------

type codeResponse struct {
	Code string `json:"code"`
}

type validateResponse struct {
	HarvestID           string                     `json:"harvestId"`
	DefaultLocationUsed bool                       `json:"defaultLocationUsed"`
	Location            entities.Location          `json:"location"`
	Sensors             entities.SensorReading     `json:"sensors"`
	PhotoVerified       bool                       `json:"photoVerified"`
	Validation          *entities.ValidationResult `json:"validation"`
}

type photoResponse struct {
	Verified  bool   `json:"verified"`
	HarvestID string `json:"harvestId"`
}

type submitResponse struct {
	Success     bool                   `json:"success"`
	Message     string                 `json:"message"`
	HarvestData entities.HarvestRecord `json:"harvestData"`
}

type balanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type errorResponse struct {
	Error string `json:"error"`
}
