package forecasting

import (
	"time"

	"github.com/zoneguard/zoneguard-ai/internal/models"
)

// Package forecasting provides near-term availability forecasting per delivery zone.
//
// Responsibilities:
//   - Derive feature rows (calendar, weather index, lagged availability)
//   - Train one independent regression model per zone
//   - Produce recursive multi-step forecasts at hourly resolution
//
// Recursive Forecasting:
//
//   Intermediate steps have no ground truth, so each clamped prediction is fed
//   back as the next step's lag-1 input and blended into the rolling feature:
//
//      roll' = (roll*2 + yhat) / 3
//
//   Errors compound across the chain. Clamping to [0, 1] before feedback keeps
//   the chain bounded.
//
// Model Store:
//   Models are keyed by zone and replaced wholesale on every Train call.
//   The store belongs to a Predictor instance; independent instances never
//   share models.
//
// Integration Points:
//   - Orchestrator: forecast stage (train then predict)
//   - Replay Harness: held-out forecast scoring
//   - REST API: GET /predict

// MinTrainingRows is the minimum number of feature rows a zone needs to be trained.
const MinTrainingRows = 30

// Prediction is one forecast step.
type Prediction struct {
	Timestamp             time.Time `json:"timestamp"`
	PredictedAvailability float64   `json:"predicted_availability"`
}

// Forecast is the output of one Predict call.
type Forecast struct {
	ZoneID       string       `json:"zone_id"`
	HorizonHours int          `json:"horizon_hours"`
	Predictions  []Prediction `json:"predictions"`
}

// Predictor defines the interface for per-zone availability forecasting.
type Predictor interface {
	// Train fits one model per zone found in history and returns the zones
	// that were trained. Models from earlier calls are discarded, so zones
	// below MinTrainingRows have no model afterwards.
	Train(history []models.Observation) []string

	// HasModel reports whether zone has a trained model.
	HasModel(zone string) bool

	// Predict forecasts horizon hourly steps past the zone's latest observation.
	// Returns models.ErrModelNotReady if the zone was never trained.
	Predict(history []models.Observation, zone string, horizon int) (*Forecast, error)
}
