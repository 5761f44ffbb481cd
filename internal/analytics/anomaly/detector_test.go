package anomaly

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneguard/zoneguard-ai/internal/models"
)

var t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func steadyZone(zone string, n int) []models.Observation {
	out := make([]models.Observation, n)
	for i := 0; i < n; i++ {
		jitter := float64(i%4) * 0.5
		out[i] = models.Observation{
			ZoneID:       zone,
			Timestamp:    t0.Add(time.Duration(i) * time.Hour),
			Demand:       80 + jitter,
			Drivers:      70 - jitter,
			Inventory:    100 + jitter,
			Weather:      models.WeatherClear,
			Availability: 0.9 - jitter/100,
		}
	}
	return out
}

func TestDetect_InsufficientData(t *testing.T) {
	d := NewAnomalyDetector(DefaultConfig(), nil)

	_, err := d.Detect(steadyZone("zone_01", 19), "zone_01", 120)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))

	// Lookback shorter than MinRows also starves the detector.
	_, err = d.Detect(steadyZone("zone_01", 200), "zone_01", 10)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))

	_, err = d.Detect(steadyZone("zone_01", 200), "zone_99", 120)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestDetect_FlagsInjectedShock(t *testing.T) {
	history := steadyZone("zone_01", 100)
	history[60].Demand = 300
	history[60].Drivers = 5
	history[60].Availability = 0.1
	history[60].Weather = models.WeatherStorm

	d := NewAnomalyDetector(DefaultConfig(), nil)
	res, err := d.Detect(history, "zone_01", 120)
	require.NoError(t, err)
	require.NotEmpty(t, res.Events)

	top := res.Events[0]
	assert.Equal(t, "zone_01", top.ZoneID)
	assert.Equal(t, history[60].Timestamp, top.Timestamp)
	assert.Equal(t, models.EventID("zone_01", history[60].Timestamp), top.EventID)
	assert.Equal(t, models.WeatherStorm, top.Snapshot.Weather)
	assert.Equal(t, 300.0, top.Snapshot.Demand)

	// Roughly the contamination share of the window is flagged.
	assert.LessOrEqual(t, len(res.Events), 8)

	for i := 1; i < len(res.Events); i++ {
		assert.GreaterOrEqual(t, res.Events[i-1].Score, res.Events[i].Score)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	history := steadyZone("zone_02", 90)
	history[30].Inventory = 5
	history[70].Demand = 250

	d := NewAnomalyDetector(DefaultConfig(), nil)
	a, err := d.Detect(history, "zone_02", 120)
	require.NoError(t, err)
	b, err := d.Detect(history, "zone_02", 120)
	require.NoError(t, err)

	assert.Equal(t, a.Events, b.Events)
}

func TestDetect_UsesOnlyLookbackWindow(t *testing.T) {
	history := steadyZone("zone_03", 100)
	// A shock outside the window must never be reported.
	history[5].Demand = 500

	d := NewAnomalyDetector(DefaultConfig(), nil)
	res, err := d.Detect(history, "zone_03", 40)
	require.NoError(t, err)

	cutoff := history[60].Timestamp
	for _, ev := range res.Events {
		assert.False(t, ev.Timestamp.Before(cutoff), "event %s predates window", ev.EventID)
	}
}

func TestDetect_ConstantWindowFlagsNothing(t *testing.T) {
	history := make([]models.Observation, 30)
	for i := range history {
		history[i] = models.Observation{
			ZoneID:       "zone_04",
			Timestamp:    t0.Add(time.Duration(i) * time.Hour),
			Demand:       50,
			Drivers:      50,
			Inventory:    50,
			Availability: 0.8,
		}
	}

	d := NewAnomalyDetector(DefaultConfig(), nil)
	res, err := d.Detect(history, "zone_04", 120)
	require.NoError(t, err)
	assert.Empty(t, res.Events)
}
