package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zoneguard/zoneguard-ai/internal/analytics/anomaly"
	"github.com/zoneguard/zoneguard-ai/internal/analytics/forecasting"
	"github.com/zoneguard/zoneguard-ai/internal/metrics"
	"github.com/zoneguard/zoneguard-ai/internal/models"
	"github.com/zoneguard/zoneguard-ai/internal/reasoning/engine"
	"github.com/zoneguard/zoneguard-ai/internal/recommendation"
	"github.com/zoneguard/zoneguard-ai/internal/tracing"
)

// Package orchestrator sequences the pipeline stages for one zone.
//
// Stage Flow:
//
//   forecast ─┐
//             ├─► (events?) ─► reason ─► action
//   anomaly  ─┘        │
//                      └─► reason: skipped, action: skipped
//
//   Forecast and anomaly run concurrently over the same read-only history.
//   Their traces are recorded in completion order. Reason and action run
//   only when at least one anomaly event exists, on the top-ranked event.
//
// Failure Semantics:
//   InsufficientData or ModelNotReady from either concurrent stage aborts the
//   run and is returned to the caller. Reasoning never fails on generator
//   outages; it falls back locally.

// Stage names recorded in traces.
const (
	StepForecast = "forecast"
	StepAnomaly  = "anomaly"
	StepReason   = "reason"
	StepAction   = "action"
)

const skipReason = "No anomaly events"

// TraceSink receives each trace as it is recorded.
type TraceSink func(models.StepTrace)

// Output aggregates every stage's payload for one run.
type Output struct {
	ZoneID      string                `json:"zone_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Traces      []models.StepTrace    `json:"traces"`
	Forecast    *forecasting.Forecast `json:"forecast"`
	Anomalies   *anomaly.Result       `json:"anomalies"`
	Reasoning   *engine.Result        `json:"reasoning"`
	Actions     *recommendation.Plan  `json:"actions"`
}

// Runner wires the pipeline stages. It holds no per-run state.
type Runner struct {
	predictor forecasting.Predictor
	detector  anomaly.AnomalyDetector
	reasoner  engine.ReasoningEngine
	planner   *recommendation.Planner
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewRunner creates a Runner over the given stage implementations.
func NewRunner(
	predictor forecasting.Predictor,
	detector anomaly.AnomalyDetector,
	reasoner engine.ReasoningEngine,
	planner *recommendation.Planner,
	logger *zap.Logger,
) *Runner {
	if planner == nil {
		planner = recommendation.NewPlanner()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		predictor: predictor,
		detector:  detector,
		reasoner:  reasoner,
		planner:   planner,
		tracer:    tracing.Tracer(),
		logger:    logger,
	}
}

// Run executes the pipeline for zone over history.
func (r *Runner) Run(ctx context.Context, history []models.Observation, zone string, horizon, lookback int) (*Output, error) {
	return r.RunWithSink(ctx, history, zone, horizon, lookback, nil)
}

// RunWithSink executes the pipeline and reports each trace to sink as it is
// recorded. sink may be nil.
func (r *Runner) RunWithSink(ctx context.Context, history []models.Observation, zone string, horizon, lookback int, sink TraceSink) (*Output, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("zone_id", zone),
		attribute.Int("horizon", horizon),
		attribute.Int("lookback", lookback),
	))
	defer span.End()

	rec := &recorder{sink: sink}
	out := &Output{ZoneID: zone}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		_, stageSpan := r.tracer.Start(groupCtx, "pipeline.forecast")
		defer stageSpan.End()

		start := time.Now()
		trained := r.predictor.Train(history)
		metrics.ForecastModelsTrained.Set(float64(len(trained)))
		fc, err := r.predictor.Predict(history, zone, horizon)
		if err != nil {
			stageFailed(stageSpan, StepForecast, start, err)
			return fmt.Errorf("forecast stage: %w", err)
		}
		out.Forecast = fc
		rec.add(models.StepTrace{
			Step:      StepForecast,
			Status:    models.StepStatusOK,
			LatencyMS: elapsedMS(start),
			Details:   map[string]interface{}{"count": len(fc.Predictions)},
		})
		return nil
	})
	group.Go(func() error {
		_, stageSpan := r.tracer.Start(groupCtx, "pipeline.anomaly")
		defer stageSpan.End()

		start := time.Now()
		res, err := r.detector.Detect(history, zone, lookback)
		if err != nil {
			stageFailed(stageSpan, StepAnomaly, start, err)
			return fmt.Errorf("anomaly stage: %w", err)
		}
		metrics.AnomalyEventsTotal.WithLabelValues(zone).Add(float64(len(res.Events)))
		out.Anomalies = res
		rec.add(models.StepTrace{
			Step:      StepAnomaly,
			Status:    models.StepStatusOK,
			LatencyMS: elapsedMS(start),
			Details:   map[string]interface{}{"events": len(res.Events)},
		})
		return nil
	})
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		r.logger.Warn("pipeline aborted", zap.String("zone_id", zone), zap.Error(err))
		return nil, err
	}

	if len(out.Anomalies.Events) > 0 {
		event := out.Anomalies.Events[0]

		reasonCtx, reasonSpan := r.tracer.Start(ctx, "pipeline.reason",
			trace.WithAttributes(attribute.String("event_id", event.EventID)))
		start := time.Now()
		reasoning, err := r.reasoner.Reason(reasonCtx, event)
		if err != nil {
			stageFailed(reasonSpan, StepReason, start, err)
			reasonSpan.End()
			metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("reason stage: %w", err)
		}
		reasonSpan.End()
		out.Reasoning = reasoning
		rec.add(models.StepTrace{
			Step:      StepReason,
			Status:    models.StepStatusOK,
			LatencyMS: elapsedMS(start),
			Details:   map[string]interface{}{"event_id": reasoning.EventID},
		})

		_, actionSpan := r.tracer.Start(ctx, "pipeline.action")
		start = time.Now()
		plan := r.planner.Plan(event, reasoning.Explanation)
		actionSpan.End()
		out.Actions = plan
		rec.add(models.StepTrace{
			Step:      StepAction,
			Status:    models.StepStatusOK,
			LatencyMS: elapsedMS(start),
			Details:   map[string]interface{}{"actions": len(plan.RecommendedActions)},
		})
	} else {
		for _, step := range []string{StepReason, StepAction} {
			rec.add(models.StepTrace{
				Step:    step,
				Status:  models.StepStatusSkipped,
				Details: map[string]interface{}{"reason": skipReason},
			})
		}
	}

	out.Traces = rec.list()
	out.GeneratedAt = time.Now().UTC()
	for _, t := range out.Traces {
		metrics.StageDuration.WithLabelValues(t.Step, t.Status).Observe(t.LatencyMS / 1000)
	}
	metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
	r.logger.Info("pipeline complete",
		zap.String("zone_id", zone),
		zap.Int("predictions", len(out.Forecast.Predictions)),
		zap.Int("events", len(out.Anomalies.Events)),
		zap.Bool("reasoned", out.Reasoning != nil),
	)
	return out, nil
}

// recorder collects traces from concurrent stages.
type recorder struct {
	mu     sync.Mutex
	traces []models.StepTrace
	sink   TraceSink
}

func (r *recorder) add(t models.StepTrace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, t)
	if r.sink != nil {
		r.sink(t)
	}
}

func (r *recorder) list() []models.StepTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.StepTrace, len(r.traces))
	copy(out, r.traces)
	return out
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

func stageFailed(span trace.Span, step string, start time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.StageDuration.WithLabelValues(step, "error").Observe(time.Since(start).Seconds())
}
