package forecasting

import (
	"time"

	"github.com/zoneguard/zoneguard-ai/internal/models"
)

// FeatureRow is one engineered training row derived from a zone's observations.
// Lag and rolling fields only ever read strictly earlier observations.
type FeatureRow struct {
	Timestamp         time.Time
	Hour              float64
	DayOfWeek         float64 // Monday = 0
	Demand            float64
	Drivers           float64
	Inventory         float64
	WeatherIdx        float64
	AvailabilityLag1  float64
	AvailabilityRoll3 float64
	Availability      float64 // target
}

// FeatureNames lists the model inputs in vector order.
var FeatureNames = []string{
	"hour", "dayofweek", "demand", "drivers", "inventory",
	"weather_idx", "availability_lag_1", "availability_roll_3",
}

// Vector returns the model inputs of the row in FeatureNames order.
func (r FeatureRow) Vector() []float64 {
	return []float64{
		r.Hour, r.DayOfWeek, r.Demand, r.Drivers, r.Inventory,
		r.WeatherIdx, r.AvailabilityLag1, r.AvailabilityRoll3,
	}
}

// WeatherIndex encodes a weather category. Unknown categories encode as clear.
func WeatherIndex(weather string) float64 {
	switch weather {
	case models.WeatherRain:
		return 1
	case models.WeatherStorm:
		return 2
	case models.WeatherSnow:
		return 3
	default:
		return 0
	}
}

// calendar returns hour-of-day and Monday-based day-of-week for ts.
func calendar(ts time.Time) (hour, dow float64) {
	return float64(ts.Hour()), float64((int(ts.Weekday()) + 6) % 7)
}

// BuildFeatures derives feature rows from observations already restricted to a
// single zone and ordered by time. The first observation has no lag and is dropped.
func BuildFeatures(zoneObs []models.Observation) []FeatureRow {
	if len(zoneObs) < 2 {
		return nil
	}
	rows := make([]FeatureRow, 0, len(zoneObs)-1)
	for i := 1; i < len(zoneObs); i++ {
		o := zoneObs[i]
		start := i - 3
		if start < 0 {
			start = 0
		}
		var sum float64
		for _, prev := range zoneObs[start:i] {
			sum += prev.Availability
		}
		hour, dow := calendar(o.Timestamp)
		rows = append(rows, FeatureRow{
			Timestamp:         o.Timestamp,
			Hour:              hour,
			DayOfWeek:         dow,
			Demand:            o.Demand,
			Drivers:           o.Drivers,
			Inventory:         o.Inventory,
			WeatherIdx:        WeatherIndex(o.Weather),
			AvailabilityLag1:  zoneObs[i-1].Availability,
			AvailabilityRoll3: sum / float64(i-start),
			Availability:      o.Availability,
		})
	}
	return rows
}
