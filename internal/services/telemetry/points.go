package telemetry

import (
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/messages"
)

// Measurement names in the archive bucket.
const (
	MeasurementReading = "water_quality"
	MeasurementHarvest = "harvest_event"
)

// ReadingToPoint maps a buoy message onto a water_quality point.
func ReadingToPoint(m messages.SensorReadingMessage) *write.Point {
	tags := map[string]string{
		"buoy_id": m.BuoyID,
		"kind":    "raw",
	}
	if m.SiteID != "" {
		tags["site_id"] = m.SiteID
	}
	if m.Aggregated {
		tags["kind"] = "aggregated"
	}

	r := m.Reading
	fields := map[string]interface{}{
		"water_temperature":  r.WaterTemperature,
		"light_PAR":          r.LightPAR,
		"inorganic_nitrogen": r.InorganicNitrogen,
		"total_phosphorus":   r.TotalPhosphorus,
		"secchi_depth":       r.SecchiDepth,
		"latitude":           m.Latitude,
		"longitude":          m.Longitude,
	}
	if m.Samples > 0 {
		fields["samples"] = int64(m.Samples)
	}
	return influxdb2.NewPoint(MeasurementReading, tags, fields, stamp(m.Timestamp))
}

// HarvestEventToPoint maps a pipeline event onto a harvest_event point.
func HarvestEventToPoint(ev messages.HarvestEvent) *write.Point {
	tags := map[string]string{
		"event_type": ev.Type,
		"harvest_id": ev.HarvestID,
	}
	if ev.Source != "" {
		tags["source"] = ev.Source
	}
	fields := map[string]interface{}{
		"feasible":  ev.Feasible,
		"ratio":     ev.Ratio,
		"total_usd": ev.TotalUSD,
		"count":     int64(1),
	}
	if ev.WalletAddress != "" {
		fields["wallet_address"] = strings.ToLower(ev.WalletAddress)
	}
	if ev.Detail != "" {
		fields["detail"] = ev.Detail
	}
	return influxdb2.NewPoint(MeasurementHarvest, tags, fields, stamp(ev.Timestamp))
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
