package engine

import (
	"context"
	"errors"

	"github.com/zoneguard/zoneguard-ai/internal/models"
	"github.com/zoneguard/zoneguard-ai/internal/reasoning/prompt"
)

// Package engine provides the Reasoning Engine: root-cause explanations for
// anomaly events.
//
// Explanation Flow:
//   Retrieve memory → Render prompt → Call generator (bounded timeout) →
//   Fallback on any failure → Write memory
//
// Responsibilities:
//   - Retrieve up to three prior memory entries for the event id
//   - Ask the configured generator for a structured explanation
//   - Fall back to a deterministic local explanation when the generator
//     fails, times out or is not configured
//   - Record every explanation in memory under the event id (overwrite)
//   - Record operator feedback under a feedback-scoped key
//
// Deterministic Fallback:
//   pressure   = demand / max(drivers, 1)
//   confidence = min(0.9, 0.45 + pressure/5), rounded to 2 decimals
//   evidence cites pressure, inventory level and weather
//
// Failure Semantics:
//   Generator failures are never surfaced. Memory failures are logged and
//   absorbed; missing context degrades to "no prior context".
//
// Integration Points:
//   - LLM Adapter: explanation generation
//   - Memory Store: context retrieval and writes
//   - Orchestrator: reason stage
//   - Replay Harness: reasoning over top events
//   - REST API: POST /reason, POST /feedback

// Explanation sources.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// ErrInvalidRating is returned when feedback carries a rating outside 1..5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// Result is the output of one Reason call.
type Result struct {
	EventID     string              `json:"event_id"`
	Prompt      string              `json:"prompt"`
	Explanation string              `json:"explanation"`
	Source      string              `json:"source"`
	Parsed      *prompt.Explanation `json:"parsed,omitempty"`
}

// ReasoningEngine defines the interface for event explanation.
type ReasoningEngine interface {
	// Reason explains event. The returned result always carries a non-empty
	// explanation; the error is reserved for malformed events.
	Reason(ctx context.Context, event models.AnomalyEvent) (*Result, error)

	// IngestFeedback records operator feedback for eventID.
	IngestFeedback(ctx context.Context, eventID, correction string, rating int) error
}
