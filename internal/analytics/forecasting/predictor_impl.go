package forecasting

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zoneguard/zoneguard-ai/internal/analytics/ml"
	"github.com/zoneguard/zoneguard-ai/internal/models"
)

// predictorImpl is the concrete Predictor backed by per-zone ridge regressors.
type predictorImpl struct {
	mu     sync.RWMutex
	models map[string]*ml.RidgeRegressor
	alpha  float64
	logger *zap.Logger
}

// NewPredictor creates a Predictor with an empty model store.
func NewPredictor(alpha float64, logger *zap.Logger) Predictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &predictorImpl{
		models: make(map[string]*ml.RidgeRegressor),
		alpha:  alpha,
		logger: logger,
	}
}

func (p *predictorImpl) Train(history []models.Observation) []string {
	trained := make([]string, 0)
	fitted := make(map[string]*ml.RidgeRegressor)
	for _, zone := range models.Zones(history) {
		rows := BuildFeatures(models.ZoneHistory(history, zone))
		if len(rows) < MinTrainingRows {
			p.logger.Debug("skipping zone with short history",
				zap.String("zone_id", zone), zap.Int("rows", len(rows)))
			continue
		}

		x := make([][]float64, len(rows))
		y := make([]float64, len(rows))
		for i, r := range rows {
			x[i] = r.Vector()
			y[i] = r.Availability
		}

		model := ml.NewRidgeRegressor(p.alpha)
		if err := model.Fit(x, y); err != nil {
			p.logger.Warn("zone model fit failed", zap.String("zone_id", zone), zap.Error(err))
			continue
		}

		fitted[zone] = model
		trained = append(trained, zone)
	}

	p.mu.Lock()
	p.models = fitted
	p.mu.Unlock()
	p.logger.Info("forecast models trained", zap.Strings("zones", trained))
	return trained
}

func (p *predictorImpl) HasModel(zone string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.models[zone]
	return ok
}

func (p *predictorImpl) Predict(history []models.Observation, zone string, horizon int) (*Forecast, error) {
	p.mu.RLock()
	model, ok := p.models[zone]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no model trained for %s: %w", zone, models.ErrModelNotReady)
	}

	rows := BuildFeatures(models.ZoneHistory(history, zone))
	if len(rows) == 0 {
		return nil, fmt.Errorf("feature history for %s: %w", zone, models.ErrInsufficientData)
	}

	state := rows[len(rows)-1]
	ts := state.Timestamp
	preds := make([]Prediction, 0, horizon)
	for step := 0; step < horizon; step++ {
		ts = ts.Add(time.Hour)
		state.Hour, state.DayOfWeek = calendar(ts)

		raw, err := model.Predict(state.Vector())
		if err != nil {
			return nil, fmt.Errorf("predict %s step %d: %w", zone, step+1, err)
		}
		yhat := clamp01(raw)

		state.AvailabilityLag1 = yhat
		state.AvailabilityRoll3 = (state.AvailabilityRoll3*2 + yhat) / 3

		preds = append(preds, Prediction{
			Timestamp:             ts,
			PredictedAvailability: math.Round(yhat*1e4) / 1e4,
		})
	}

	return &Forecast{ZoneID: zone, HorizonHours: horizon, Predictions: preds}, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
