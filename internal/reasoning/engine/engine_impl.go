package engine

// Package engine implements the ReasoningEngine capability.

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/zoneguard/zoneguard-ai/internal/llm/types"
	"github.com/zoneguard/zoneguard-ai/internal/memory/vector"
	"github.com/zoneguard/zoneguard-ai/internal/metrics"
	"github.com/zoneguard/zoneguard-ai/internal/models"
	reasoningContext "github.com/zoneguard/zoneguard-ai/internal/reasoning/context"
	"github.com/zoneguard/zoneguard-ai/internal/reasoning/prompt"
)

// DefaultTimeout bounds a single generator call.
const DefaultTimeout = 30 * time.Second

const unknownEventID = "unknown-event"

// Config holds reasoning engine settings.
type Config struct {
	Timeout time.Duration
	TopK    int
}

// reasoningEngineImpl is the concrete ReasoningEngine.
type reasoningEngineImpl struct {
	generator types.Generator
	store     vector.VectorStore
	builder   reasoningContext.ContextBuilder
	prompts   prompt.PromptManager
	timeout   time.Duration
	logger    *zap.Logger
}

// NewReasoningEngine creates a fully wired engine. A nil generator behaves as
// an unconfigured provider; a nil store is replaced by an in-process map.
func NewReasoningEngine(gen types.Generator, store vector.VectorStore, cfg Config, logger *zap.Logger) ReasoningEngine {
	if store == nil {
		store = vector.NewVectorStore()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &reasoningEngineImpl{
		generator: gen,
		store:     store,
		builder:   reasoningContext.NewContextBuilder(store, cfg.TopK, 0),
		prompts:   prompt.NewPromptManager(),
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

func (e *reasoningEngineImpl) Reason(ctx context.Context, event models.AnomalyEvent) (*Result, error) {
	eventID := event.EventID
	if eventID == "" {
		eventID = unknownEventID
	}

	entries, err := e.builder.BuildContext(ctx, eventID)
	if err != nil {
		metrics.MemoryErrorsTotal.WithLabelValues("query").Inc()
		e.logger.Warn("memory query failed, continuing without context",
			zap.String("event_id", eventID), zap.Error(err))
		entries = nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", eventID, err)
	}
	rendered, err := e.prompts.RenderExplanationPrompt(ctx, string(payload), entries)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	explanation, source := e.generate(ctx, eventID, rendered)
	if explanation == "" {
		explanation = FallbackExplanation(event.Snapshot)
		source = SourceFallback
	}
	metrics.ReasoningTotal.WithLabelValues(source).Inc()

	if err := e.store.Upsert(ctx, vector.Document{
		ID:       eventID,
		Text:     prompt.MemoryEntry(eventID, explanation),
		Metadata: map[string]string{"event_id": eventID, "kind": "explanation"},
	}); err != nil {
		metrics.MemoryErrorsTotal.WithLabelValues("upsert").Inc()
		e.logger.Warn("memory upsert failed", zap.String("event_id", eventID), zap.Error(err))
	}

	res := &Result{
		EventID:     eventID,
		Prompt:      rendered,
		Explanation: explanation,
		Source:      source,
	}
	if parsed, err := e.prompts.ValidateStructuredOutput(ctx, explanation); err == nil {
		res.Parsed = parsed
	}
	return res, nil
}

// generate calls the generator under the engine timeout. Any failure yields
// the deterministic fallback.
func (e *reasoningEngineImpl) generate(ctx context.Context, eventID, rendered string) (string, string) {
	if e.generator == nil {
		return "", SourceFallback
	}
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	out, err := e.generator.Generate(callCtx, rendered)
	if err != nil {
		e.logger.Info("generator unavailable, using fallback explanation",
			zap.String("event_id", eventID),
			zap.String("provider", e.generator.Provider()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", SourceFallback
	}
	return out, SourceLLM
}

func (e *reasoningEngineImpl) IngestFeedback(ctx context.Context, eventID, correction string, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("feedback for %s: %w", eventID, ErrInvalidRating)
	}
	doc := vector.Document{
		ID:   prompt.FeedbackKey(eventID, rating),
		Text: prompt.FeedbackEntry(eventID, correction, rating),
		Metadata: map[string]string{
			"event_id": eventID,
			"rating":   fmt.Sprintf("%d", rating),
			"kind":     "feedback",
		},
	}
	if err := e.store.Upsert(ctx, doc); err != nil {
		metrics.MemoryErrorsTotal.WithLabelValues("upsert").Inc()
		e.logger.Warn("feedback upsert failed", zap.String("event_id", eventID), zap.Error(err))
		return nil
	}
	metrics.FeedbackTotal.Inc()
	return nil
}

// FallbackExplanation builds the deterministic local explanation for snap.
func FallbackExplanation(snap models.Snapshot) string {
	pressure := snap.Demand / math.Max(snap.Drivers, 1)
	weather := snap.Weather
	if weather == "" {
		weather = models.WeatherClear
	}
	exp := prompt.Explanation{
		RootCause: "Demand-driver imbalance with environmental disruption",
		Evidence: []string{
			fmt.Sprintf("Demand/driver pressure=%.2f", pressure),
			fmt.Sprintf("Inventory level=%.2f", snap.Inventory),
			fmt.Sprintf("Weather=%s", weather),
		},
		Confidence: math.Round(math.Min(0.9, 0.45+pressure/5)*100) / 100,
		Risks:      []string{"Service-level breach", "Order delays"},
	}
	out, _ := json.Marshal(exp)
	return string(out)
}
