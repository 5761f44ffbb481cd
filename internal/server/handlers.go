package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/zoneguard/zoneguard-ai/internal/audit"
	"github.com/zoneguard/zoneguard-ai/internal/db"
	"github.com/zoneguard/zoneguard-ai/internal/metrics"
	"github.com/zoneguard/zoneguard-ai/internal/models"
	"github.com/zoneguard/zoneguard-ai/internal/reasoning/engine"
)

// Request bounds.
const (
	minHorizon  = 1
	maxHorizon  = 48
	minLookback = 24
	maxLookback = 720
	minRating   = 1
	maxRating   = 5
)

// errNoData is returned when the operational store holds no observations.
var errNoData = errors.New("no operational data loaded")

// validationError is a malformed or out-of-range request field.
type validationError struct {
	Field   string
	Message string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &validationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ─── Request / response types ────────────────────────────────────────────────

// AnomalyRequest is the POST /anomaly body.
type AnomalyRequest struct {
	Zone     string `json:"zone"`
	Lookback *int   `json:"lookback,omitempty"`
}

// ReasonRequest is the POST /reason body.
type ReasonRequest struct {
	Event *models.AnomalyEvent `json:"event"`
}

// ActionRequest is the POST /action body. Explanation may be a string or an
// object; objects are kept as their JSON text.
type ActionRequest struct {
	Event       *models.AnomalyEvent `json:"event"`
	Explanation json.RawMessage      `json:"explanation"`
}

// FeedbackRequest is the POST /feedback body.
type FeedbackRequest struct {
	EventID    string                 `json:"event_id"`
	Rating     int                    `json:"rating"`
	Correction string                 `json:"correction"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// FeedbackResponse acknowledges stored feedback.
type FeedbackResponse struct {
	Status   string    `json:"status"`
	StoredAt time.Time `json:"stored_at"`
}

// PipelineRequest is the POST /pipeline/zone, POST /evaluate/replay and
// WebSocket request body.
type PipelineRequest struct {
	Zone     string `json:"zone"`
	Horizon  *int   `json:"horizon,omitempty"`
	Lookback *int   `json:"lookback,omitempty"`
}

// ─── Service endpoints ───────────────────────────────────────────────────────

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ZoneGuard API online",
		"health":  "/health",
		"metrics": "/metrics",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ─── Pipeline stages ─────────────────────────────────────────────────────────

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	zone := r.URL.Query().Get("zone")
	if zone == "" {
		s.writeError(w, r, invalid("zone", "is required"))
		return
	}
	horizon := s.cfg.Forecast.DefaultHorizon
	if raw := r.URL.Query().Get("horizon"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, invalid("horizon", "must be an integer"))
			return
		}
		horizon = v
	}
	if err := checkRange("horizon", horizon, minHorizon, maxHorizon); err != nil {
		s.writeError(w, r, err)
		return
	}

	history, err := s.loadHistory(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	trained := s.predictor.Train(history)
	metrics.ForecastModelsTrained.Set(float64(len(trained)))
	fc, err := s.predictor.Predict(history, zone, horizon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	predictions, err := json.Marshal(fc.Predictions)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("marshal predictions: %w", err))
		return
	}
	run := &db.ForecastRunRecord{ZoneID: zone, HorizonHours: horizon, Predictions: string(predictions)}
	if err := s.recordDB("save_forecast_run", s.store.SaveForecastRun(ctx, run)); err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.audit.Log(ctx, audit.NewEvent(audit.EventForecastRecorded).
		WithZone(zone).
		WithMetadata("horizon_hours", horizon).
		WithMetadata("run_id", run.ID))

	writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handleAnomaly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req AnomalyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	lookback, err := s.lookback(req.Zone, req.Lookback)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	history, err := s.loadHistory(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.detector.Detect(history, req.Zone, lookback)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.AnomalyEventsTotal.WithLabelValues(req.Zone).Add(float64(len(res.Events)))

	if err := s.recordDB("append_anomaly_events", s.store.AppendAnomalyEvents(ctx, res.Events)); err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, e := range res.Events {
		_ = s.audit.Log(ctx, audit.NewEvent(audit.EventAnomalyDetected).
			WithZone(e.ZoneID).
			WithEventID(e.EventID).
			WithMetadata("score", e.Score))
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReason(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ReasonRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Event == nil {
		s.writeError(w, r, invalid("event", "is required"))
		return
	}

	res, err := s.reasoner.Reason(ctx, *req.Event)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec := &db.ReasoningRecord{
		EventID:     res.EventID,
		Prompt:      res.Prompt,
		Explanation: res.Explanation,
		Source:      res.Source,
	}
	if err := s.recordDB("save_reasoning", s.store.SaveReasoning(ctx, rec)); err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.audit.LogReasoning(ctx, res.EventID, res.Source)

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ActionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Event == nil {
		s.writeError(w, r, invalid("event", "is required"))
		return
	}
	explanation, err := explanationText(req.Explanation)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	plan := s.planner.Plan(*req.Event, explanation)
	names := make([]string, len(plan.RecommendedActions))
	for i, a := range plan.RecommendedActions {
		names[i] = a.Action
	}
	_ = s.audit.LogActionsPlanned(ctx, plan.EventID, names)

	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req FeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.EventID == "" {
		s.writeError(w, r, invalid("event_id", "is required"))
		return
	}
	if err := checkRange("rating", req.Rating, minRating, maxRating); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.reasoner.IngestFeedback(ctx, req.EventID, req.Correction, req.Rating); err != nil {
		s.writeError(w, r, err)
		return
	}

	meta := "{}"
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			s.writeError(w, r, invalid("metadata", "must be a JSON object"))
			return
		}
		meta = string(raw)
	}
	rec := &db.FeedbackRecord{
		EventID:    req.EventID,
		Rating:     req.Rating,
		Correction: req.Correction,
		Metadata:   meta,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.recordDB("save_feedback", s.store.SaveFeedback(ctx, rec)); err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.audit.LogFeedback(ctx, req.EventID, req.Rating)

	writeJSON(w, http.StatusOK, FeedbackResponse{Status: "ok", StoredAt: rec.CreatedAt})
}

// ─── Orchestration ───────────────────────────────────────────────────────────

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req PipelineRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	horizon, lookback, err := s.pipelineParams(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	history, err := s.loadHistory(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	out, err := s.runner.Run(ctx, history, req.Zone, horizon, lookback)
	if err != nil {
		_ = s.audit.LogPipelineFailed(ctx, req.Zone, err)
		s.writeError(w, r, err)
		return
	}
	_ = s.audit.LogPipelineCompleted(ctx, req.Zone, len(out.Anomalies.Events), out.Reasoning != nil, time.Since(start))

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req PipelineRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	horizon, lookback, err := s.pipelineParams(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	history, err := s.loadHistory(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.harness.Run(ctx, history, req.Zone, horizon, lookback)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.audit.LogReplayCompleted(ctx, req.Zone, report.ReplayID, report.ForecastMAPE, report.AnomalyEvents)

	writeJSON(w, http.StatusOK, report)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// loadHistory reads every stored observation.
func (s *Server) loadHistory(ctx context.Context) ([]models.Observation, error) {
	history, err := s.store.LoadObservations(ctx, "")
	if err := s.recordDB("load_observations", err); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, errNoData
	}
	return history, nil
}

func (s *Server) recordDB(op string, err error) error {
	status := "ok"
	if err != nil {
		status = "error"
		s.logger.Error("database operation failed", zap.String("operation", op), zap.Error(err))
		err = fmt.Errorf("%s: %w", op, err)
	}
	metrics.DBOperationsTotal.WithLabelValues(op, status).Inc()
	return err
}

func (s *Server) lookback(zone string, lookback *int) (int, error) {
	if zone == "" {
		return 0, invalid("zone", "is required")
	}
	v := s.cfg.Anomaly.DefaultLookback
	if lookback != nil {
		v = *lookback
	}
	if err := checkRange("lookback", v, minLookback, maxLookback); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *Server) pipelineParams(req PipelineRequest) (int, int, error) {
	lookback, err := s.lookback(req.Zone, req.Lookback)
	if err != nil {
		return 0, 0, err
	}
	horizon := s.cfg.Forecast.DefaultHorizon
	if req.Horizon != nil {
		horizon = *req.Horizon
	}
	if err := checkRange("horizon", horizon, minHorizon, maxHorizon); err != nil {
		return 0, 0, err
	}
	return horizon, lookback, nil
}

func checkRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return invalid(field, "must be between %d and %d, got %d", lo, hi, v)
	}
	return nil
}

// explanationText accepts a JSON string or object.
func explanationText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", invalid("explanation", "is required")
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", invalid("explanation", "must be a string or an object")
	}
	return string(raw), nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return invalid("body", "invalid JSON: %v", err)
	}
	return nil
}

// writeError maps pipeline errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.Is(err, errNoData):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientData):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrModelNotReady):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInvalidRating):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", audit.GetCorrelationID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
