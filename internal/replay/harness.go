package replay

import (
	"context"

	"github.com/zoneguard/zoneguard-ai/internal/analytics/ml"
	"github.com/zoneguard/zoneguard-ai/internal/models"
)

// Package replay re-executes the pipeline offline against recorded history
// and scores it.
//
// Replay Flow:
//   1. Hold out the zone's trailing horizon observations
//   2. Train a fresh forecaster on the remaining history and forecast horizon steps
//   3. Compare predictions to held-out availability (MAPE, RMSE)
//   4. Detect anomalies over the lookback window of the full history
//   5. Reason and plan for the top-ranked events
//   6. Convert counts into a business-impact estimate
//
// Determinism:
//   Replay is single-threaded, uses the seeded detector and trains its own
//   closed-form forecaster per run, so identical history gives an identical
//   report whatever the online path has trained.
//
// Integration Points:
//   - REST API: POST /evaluate/replay
//   - CLI: zoneguard replay

// Replay defaults.
const (
	MinReplayRows            = 40
	DefaultMaxEvents         = 5
	DefaultAcknowledgeRate   = 0.6
	mapeDenominatorFloor     = 1e-6
	hoursPerBaselineIncident = 24
)

// Config controls replay policy.
type Config struct {
	// MaxEvents bounds how many ranked events are reasoned over.
	MaxEvents int
	// AcknowledgeRate is the assumed share of generated actions operators act on.
	AcknowledgeRate float64
	// RidgeAlpha is the penalty of the per-run forecaster.
	RidgeAlpha float64
}

// DefaultConfig returns the standard replay policy.
func DefaultConfig() Config {
	return Config{
		MaxEvents:       DefaultMaxEvents,
		AcknowledgeRate: DefaultAcknowledgeRate,
		RidgeAlpha:      ml.DefaultRidgeAlpha,
	}
}

// BusinessImpact is the KPI summary derived from replay counts.
type BusinessImpact struct {
	IncidentPreventionRate        float64 `json:"incident_prevention_rate"`
	EstimatedMTTRReductionMinutes float64 `json:"estimated_mttr_reduction_minutes"`
	ActionAcceptanceRate          float64 `json:"action_acceptance_rate"`
	EstimatedOpsHoursSaved        float64 `json:"estimated_ops_hours_saved"`
}

// Report is the result of one replay.
type Report struct {
	ReplayID         string         `json:"replay_id"`
	ZoneID           string         `json:"zone_id"`
	ForecastMAPE     float64        `json:"forecast_mape"`
	ForecastRMSE     float64        `json:"forecast_rmse"`
	AnomalyEvents    int            `json:"anomaly_events"`
	GeneratedActions int            `json:"generated_actions"`
	BusinessImpact   BusinessImpact `json:"business_impact"`
}

// ReplayHarness defines the interface for offline pipeline evaluation.
type ReplayHarness interface {
	// Run replays zone over history. Returns models.ErrInsufficientData when
	// the zone has fewer than max(40, lookback/2) observations or when the
	// rows left after holding out horizon are too few to train on.
	Run(ctx context.Context, history []models.Observation, zone string, horizon, lookback int) (*Report, error)
}
