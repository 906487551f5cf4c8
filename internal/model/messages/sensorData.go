package messages

import (
	"time"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// SensorReadingMessage is published by buoys on sensor/data and,
// once averaged, by the aggregator on sensor/aggregated.
type SensorReadingMessage struct {
	BuoyID     string                 `json:"buoy_id"`
	SiteID     string                 `json:"site_id"`
	Reading    entities.SensorReading `json:"reading"`
	Latitude   float64                `json:"latitude"`
	Longitude  float64                `json:"longitude"`
	Samples    int                    `json:"samples,omitempty"` // readings averaged into this one
	Aggregated bool                   `json:"aggregated"`
	Timestamp  time.Time              `json:"timestamp"`
}
