package prompt

// Package prompt implements the PromptManager and the memory entry formats.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// promptManagerImpl is the concrete implementation of PromptManager.
type promptManagerImpl struct{}

// NewPromptManager creates a new prompt manager.
func NewPromptManager() PromptManager {
	return &promptManagerImpl{}
}

// NoContext replaces the context block when memory returned nothing.
const NoContext = "No prior context available."

const explanationTemplate = `You are ZoneGuard root-cause analyst. Provide concise operational explanation and confidence (0-1). Focus on demand-supply, weather, and inventory dynamics.
Event: {{.Event}}
Context: {{.Context}}
Output JSON with keys: root_cause, evidence, confidence, risks.`

func (m *promptManagerImpl) RenderExplanationPrompt(_ context.Context, eventJSON string, contextEntries []string) (string, error) {
	if eventJSON == "" {
		return "", fmt.Errorf("render prompt: empty event payload")
	}
	contextText := strings.Join(contextEntries, "\n")
	if len(contextEntries) == 0 {
		contextText = NoContext
	}

	// Simple template substitution
	rendered := strings.ReplaceAll(explanationTemplate, "{{.Event}}", eventJSON)
	rendered = strings.ReplaceAll(rendered, "{{.Context}}", contextText)
	return rendered, nil
}

func (m *promptManagerImpl) ValidateStructuredOutput(_ context.Context, output string) (*Explanation, error) {
	trimmed := strings.TrimSpace(output)
	// Models often wrap JSON in a fenced block.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var exp Explanation
	if err := json.Unmarshal([]byte(trimmed), &exp); err != nil {
		return nil, fmt.Errorf("explanation is not structured JSON: %w", err)
	}
	if exp.RootCause == "" {
		return nil, fmt.Errorf("explanation missing root_cause")
	}
	return &exp, nil
}

// ─── Memory entries ───────────────────────────────────────────────────────────

// MemoryEntry is the memory text stored for an explanation.
func MemoryEntry(eventID, explanation string) string {
	return fmt.Sprintf("event_id=%s; explanation=%s", eventID, explanation)
}

// FeedbackKey is the memory id for feedback on eventID. It never collides with
// the explanation's own id.
func FeedbackKey(eventID string, rating int) string {
	return fmt.Sprintf("feedback:%s:%d", eventID, rating)
}

// FeedbackEntry is the memory text stored for feedback.
func FeedbackEntry(eventID, correction string, rating int) string {
	return fmt.Sprintf("feedback for %s: rating=%d; correction=%s", eventID, rating, correction)
}
