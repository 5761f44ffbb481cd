package replay

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zoneguard/zoneguard-ai/internal/analytics/anomaly"
	"github.com/zoneguard/zoneguard-ai/internal/analytics/forecasting"
	"github.com/zoneguard/zoneguard-ai/internal/metrics"
	"github.com/zoneguard/zoneguard-ai/internal/models"
	"github.com/zoneguard/zoneguard-ai/internal/reasoning/engine"
	"github.com/zoneguard/zoneguard-ai/internal/recommendation"
	"github.com/zoneguard/zoneguard-ai/internal/tracing"
)

type harnessImpl struct {
	detector  anomaly.AnomalyDetector
	reasoner  engine.ReasoningEngine
	planner   *recommendation.Planner
	cfg       Config
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewReplayHarness creates a harness over the given stage implementations.
// Each Run trains its own forecaster, so replay never reads models fitted by
// the online path.
func NewReplayHarness(
	detector anomaly.AnomalyDetector,
	reasoner engine.ReasoningEngine,
	planner *recommendation.Planner,
	cfg Config,
	logger *zap.Logger,
) ReplayHarness {
	def := DefaultConfig()
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = def.MaxEvents
	}
	if cfg.AcknowledgeRate <= 0 || cfg.AcknowledgeRate > 1 {
		cfg.AcknowledgeRate = def.AcknowledgeRate
	}
	if cfg.RidgeAlpha < 0 {
		cfg.RidgeAlpha = def.RidgeAlpha
	}
	if planner == nil {
		planner = recommendation.NewPlanner()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &harnessImpl{
		detector:  detector,
		reasoner:  reasoner,
		planner:   planner,
		cfg:       cfg,
		tracer:    tracing.Tracer(),
		logger:    logger,
	}
}

func (h *harnessImpl) Run(ctx context.Context, history []models.Observation, zone string, horizon, lookback int) (*Report, error) {
	ctx, span := h.tracer.Start(ctx, "replay.run", trace.WithAttributes(
		attribute.String("zone_id", zone),
		attribute.Int("horizon", horizon),
		attribute.Int("lookback", lookback),
	))
	defer span.End()

	report, err := h.run(ctx, history, zone, horizon, lookback)
	if err != nil {
		span.RecordError(err)
		metrics.ReplayRunsTotal.WithLabelValues("error").Inc()
		h.logger.Warn("replay failed", zap.String("zone_id", zone), zap.Error(err))
		return nil, err
	}
	metrics.ReplayRunsTotal.WithLabelValues("ok").Inc()
	metrics.ReplayForecastMAPE.WithLabelValues(zone).Set(report.ForecastMAPE)
	h.logger.Info("replay complete",
		zap.String("replay_id", report.ReplayID),
		zap.String("zone_id", zone),
		zap.Float64("mape", report.ForecastMAPE),
		zap.Float64("rmse", report.ForecastRMSE),
		zap.Int("anomaly_events", report.AnomalyEvents),
		zap.Int("generated_actions", report.GeneratedActions),
	)
	return report, nil
}

func (h *harnessImpl) run(ctx context.Context, history []models.Observation, zone string, horizon, lookback int) (*Report, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	zoneRows := models.ZoneHistory(history, zone)
	need := max(MinReplayRows, lookback/2)
	if len(zoneRows) < need {
		return nil, fmt.Errorf("replay %s: %d records, need %d: %w",
			zone, len(zoneRows), need, models.ErrInsufficientData)
	}
	if horizon >= len(zoneRows) {
		return nil, fmt.Errorf("replay %s: horizon %d leaves no training rows: %w",
			zone, horizon, models.ErrInsufficientData)
	}

	// Hold out the zone's trailing horizon rows; other zones train in full.
	heldOut := zoneRows[len(zoneRows)-horizon:]
	cutoff := heldOut[0].Timestamp
	train := make([]models.Observation, 0, len(history))
	for _, o := range history {
		if o.ZoneID == zone && !o.Timestamp.Before(cutoff) {
			continue
		}
		train = append(train, o)
	}

	predictor := forecasting.NewPredictor(h.cfg.RidgeAlpha, h.logger)
	predictor.Train(train)
	if !predictor.HasModel(zone) {
		return nil, fmt.Errorf("replay %s: %d rows left after holding out %d, need %d feature rows: %w",
			zone, len(zoneRows)-horizon, horizon, forecasting.MinTrainingRows, models.ErrInsufficientData)
	}
	fc, err := predictor.Predict(train, zone, horizon)
	if err != nil {
		return nil, fmt.Errorf("replay forecast: %w", err)
	}
	yTrue := make([]float64, len(heldOut))
	for i, o := range heldOut {
		yTrue[i] = o.Availability
	}
	yPred := make([]float64, len(fc.Predictions))
	for i, p := range fc.Predictions {
		yPred[i] = p.PredictedAvailability
	}

	res, err := h.detector.Detect(history, zone, lookback)
	if err != nil {
		return nil, fmt.Errorf("replay anomaly: %w", err)
	}

	generated, acknowledged := 0, 0
	top := res.Events
	if len(top) > h.cfg.MaxEvents {
		top = top[:h.cfg.MaxEvents]
	}
	for _, ev := range top {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reasoning, err := h.reasoner.Reason(ctx, ev)
		if err != nil {
			return nil, fmt.Errorf("replay reason %s: %w", ev.EventID, err)
		}
		plan := h.planner.Plan(ev, reasoning.Explanation)
		count := len(plan.RecommendedActions)
		generated += count
		acknowledged += int(math.RoundToEven(float64(count) * h.cfg.AcknowledgeRate))
	}

	baseline := max(1, lookback/hoursPerBaselineIncident)
	return &Report{
		ReplayID:         uuid.New().String(),
		ZoneID:           zone,
		ForecastMAPE:     roundTo(MAPE(yTrue, yPred), 4),
		ForecastRMSE:     roundTo(RMSE(yTrue, yPred), 4),
		AnomalyEvents:    len(res.Events),
		GeneratedActions: generated,
		BusinessImpact:   EstimateImpact(len(res.Events), generated, acknowledged, baseline),
	}, nil
}
