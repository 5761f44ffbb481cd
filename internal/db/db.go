package db

import (
	"context"
	"time"

	"github.com/zoneguard/zoneguard-ai/internal/models"
)

// Store is the main persistence interface for zoneguard-ai.
type Store interface {
	ObservationStore
	ForecastStore
	AnomalyStore
	ReasoningStore
	FeedbackStore

	// Close releases database resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
}

// ─── Operational records ─────────────────────────────────────────────────────

// ObservationStore holds the operational history the pipeline reads from.
type ObservationStore interface {
	// InsertObservations writes obs in a single transaction.
	InsertObservations(ctx context.Context, obs []models.Observation) error

	// LoadObservations returns the history of zone ordered by timestamp.
	// An empty zone returns every zone, ordered by zone then timestamp.
	LoadObservations(ctx context.Context, zone string) ([]models.Observation, error)

	// CountObservations returns the number of stored rows.
	CountObservations(ctx context.Context) (int, error)
}

// ─── Forecast runs ───────────────────────────────────────────────────────────

// ForecastRunRecord is one persisted /predict response.
type ForecastRunRecord struct {
	ID           int64     `json:"id"`
	ZoneID       string    `json:"zone_id"`
	HorizonHours int       `json:"horizon_hours"`
	Predictions  string    `json:"predictions"` // JSON array
	CreatedAt    time.Time `json:"created_at"`
}

// ForecastStore persists forecast runs.
type ForecastStore interface {
	SaveForecastRun(ctx context.Context, rec *ForecastRunRecord) error
	ListForecastRuns(ctx context.Context, zone string, limit int) ([]*ForecastRunRecord, error)
}

// ─── Anomaly events ──────────────────────────────────────────────────────────

// AnomalyEventRecord is a persisted anomaly event.
type AnomalyEventRecord struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	ZoneID     string    `json:"zone_id"`
	Score      float64   `json:"score"`
	Payload    string    `json:"payload"` // JSON snapshot
	DetectedAt time.Time `json:"detected_at"`
}

// AnomalyStore persists detected anomaly events.
type AnomalyStore interface {
	// AppendAnomalyEvents writes events in a single transaction.
	AppendAnomalyEvents(ctx context.Context, events []models.AnomalyEvent) error
	QueryAnomalyEvents(ctx context.Context, zone string, limit int) ([]*AnomalyEventRecord, error)
}

// ─── Reasoning records ───────────────────────────────────────────────────────

// ReasoningRecord is a persisted explanation.
type ReasoningRecord struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"event_id"`
	Prompt      string    `json:"prompt"`
	Explanation string    `json:"explanation"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReasoningStore persists explanations.
type ReasoningStore interface {
	SaveReasoning(ctx context.Context, rec *ReasoningRecord) error
	ListReasoning(ctx context.Context, eventID string) ([]*ReasoningRecord, error)
}

// ─── Feedback records ────────────────────────────────────────────────────────

// FeedbackRecord is persisted operator feedback on an explanation.
type FeedbackRecord struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	Rating     int       `json:"rating"`
	Correction string    `json:"correction"`
	Metadata   string    `json:"metadata"` // JSON object
	CreatedAt  time.Time `json:"created_at"`
}

// FeedbackStore persists operator feedback.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, rec *FeedbackRecord) error
	ListFeedback(ctx context.Context, eventID string) ([]*FeedbackRecord, error)
}
