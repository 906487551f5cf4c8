package entities

// SensorReading is a point-in-time snapshot of the water around a kelp line.
// Once attached to a harvest it is never modified.
type SensorReading struct {
	WaterTemperature  float64 `json:"water_temperature"`  // °C
	LightPAR          float64 `json:"light_PAR"`          // PAR units
	InorganicNitrogen float64 `json:"inorganic_nitrogen"` // mg/L
	TotalPhosphorus   float64 `json:"total_phosphorus"`   // mg/L
	SecchiDepth       float64 `json:"secchi_depth"`       // m
}

// FeatureCount is the length of the feature vector sent to the prediction model.
const FeatureCount = 5

// Features returns the reading in the order the prediction model was trained on:
// water_temperature, light_PAR, inorganic_nitrogen, total_phosphorus, secchi_depth.
// The order is part of the wire contract.
func (r SensorReading) Features() [FeatureCount]float64 {
	return [FeatureCount]float64{
		r.WaterTemperature,
		r.LightPAR,
		r.InorganicNitrogen,
		r.TotalPhosphorus,
		r.SecchiDepth,
	}
}

// ReferenceReading is the fixed snapshot served when no buoy has reported yet.
func ReferenceReading() SensorReading {
	return SensorReading{
		WaterTemperature:  18.5,
		LightPAR:          350,
		InorganicNitrogen: 1.2,
		TotalPhosphorus:   0.15,
		SecchiDepth:       6.5,
	}
}

// Buoy is a water-quality station moored near a farm.
type Buoy struct {
	ID        string  `json:"id"`
	SiteID    string  `json:"site_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
