package vector

import (
	"context"
	"time"
)

// Package vector provides the reasoning engine's long-term memory.
//
// Responsibilities:
//   - Store explanations and operator feedback keyed by document id
//   - Retrieve prior entries relevant to an anomaly event
//   - Provide graceful degradation if the persistent store is unavailable
//
// Optional Integration:
//   This package is OPTIONAL. If the persistent store cannot be opened:
//   - Reasoning still works (degrades to the in-process exact-key map)
//   - No hard dependency on an external service
//
// Supported Backends:
//   - memory: in-process map; Query returns the document whose id equals the
//     key, or nothing
//   - sqlite: persistent; Query ranks documents by cosine similarity of
//     term-frequency vectors between the key and each document's id and
//     text, with an exact id hit always first
//
// Write Semantics:
//   Upsert overwrites any document with the same id (last write wins).
//
// Integration Points:
//   - Reasoning Engine: context retrieval, explanation and feedback writes
//   - REST API: memory stats on /ready

// Document is one memory entry.
type Document struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Score     float64           `json:"score,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Stats describes a store's backend and contents.
type Stats struct {
	Backend        string `json:"backend"`
	TotalItems     int    `json:"total_items"`
	SemanticSearch bool   `json:"semantic_search"`
}

// VectorStore defines the interface for memory retrieval.
type VectorStore interface {
	// Upsert writes doc, replacing any document with the same id.
	Upsert(ctx context.Context, doc Document) error

	// Query returns at most limit documents relevant to key, best first.
	Query(ctx context.Context, key string, limit int) ([]Document, error)

	// IsAvailable checks if the store is healthy and available.
	IsAvailable(ctx context.Context) (bool, error)

	// GetStats returns store statistics.
	GetStats(ctx context.Context) (Stats, error)

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)
