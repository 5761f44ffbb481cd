package context

import "context"

// Package context gathers prior memory for an explanation request.
//
// Responsibilities:
//   - Retrieve up to TopK memory entries relevant to an event id
//   - Trim the retrieved entries to a character budget for the prompt
//   - Report context composition for logs
//
// Failure Semantics:
//   Retrieval errors are returned to the caller, which decides whether to
//   degrade. The reasoning engine always degrades to "no prior context".
//
// Integration Points:
//   - Memory Store: exact-key or similarity retrieval
//   - Prompt Manager: entries become the prompt's context block

// DefaultTopK is the number of memory entries retrieved per event.
const DefaultTopK = 3

// ContextBuilder defines the interface for context building.
type ContextBuilder interface {
	// BuildContext returns memory texts relevant to eventID, best first.
	BuildContext(ctx context.Context, eventID string) ([]string, error)

	// PruneContext drops trailing entries until the total fits maxChars.
	// Returns the kept entries and the number removed.
	PruneContext(entries []string, maxChars int) ([]string, int)

	// GetContextMetadata returns information about context composition.
	GetContextMetadata(ctx context.Context) (map[string]interface{}, error)
}
