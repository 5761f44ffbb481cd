package anomaly

import (
	"github.com/zoneguard/zoneguard-ai/internal/models"
)

// Package anomaly flags anomalous operating windows for a delivery zone.
//
// Responsibilities:
//   - Restrict a zone's history to its most recent lookback observations
//   - Fit an isolation forest over the raw metric columns
//     {demand, drivers, inventory, availability}
//   - Flag the contamination fraction of most isolated rows
//   - Convert flagged rows into ranked AnomalyEvents (most anomalous first)
//
// Determinism:
//   The forest is grown with a fixed seed, so an identical window produces
//   an identical flagged set in an identical order.
//
// Integration Points:
//   - Orchestrator: runs concurrently with the forecasting stage
//   - Replay Harness: detection over the held-out window
//   - REST API: POST /anomaly

// MinRows is the smallest window the detector will fit on.
const MinRows = 20

// Default detector parameters.
const (
	DefaultContamination = 0.07
	DefaultLookback      = 120
)

// Config controls the isolation forest behind the detector.
type Config struct {
	Contamination float64
	NumTrees      int
	SubSampleSize int
	Seed          int64
	MinRows       int
}

// DefaultConfig returns the production detector settings.
func DefaultConfig() Config {
	return Config{
		Contamination: DefaultContamination,
		NumTrees:      200,
		SubSampleSize: 256,
		Seed:          42,
		MinRows:       MinRows,
	}
}

// Result is the ranked output of one detection call.
type Result struct {
	ZoneID string                `json:"zone_id"`
	Events []models.AnomalyEvent `json:"events"`
}

// AnomalyDetector defines the interface for windowed anomaly scoring.
type AnomalyDetector interface {
	// Detect scores the zone's most recent lookback observations.
	// Returns models.ErrInsufficientData when fewer than MinRows remain.
	Detect(history []models.Observation, zone string, lookback int) (*Result, error)
}
