package prompt

import "context"

// Package prompt provides prompt templates for root-cause explanations.
//
// Responsibilities:
//   - Render the analyst prompt from an event payload and retrieved memory
//   - Render memory entries written after each explanation and feedback
//   - Parse structured explanations returned by the model
//
// Structured Output:
//   The model is asked for a JSON object with keys
//     root_cause, evidence, confidence, risks
//   Output that does not parse is passed through as free text; it is never
//   rejected.
//
// Integration Points:
//   - Reasoning Engine: render prompts and memory entries
//   - REST API: structured explanation in /reason responses

// Explanation is the structured form of a root-cause explanation.
type Explanation struct {
	RootCause  string   `json:"root_cause"`
	Evidence   []string `json:"evidence"`
	Confidence float64  `json:"confidence"`
	Risks      []string `json:"risks"`
}

// PromptManager defines the interface for prompt management.
type PromptManager interface {
	// RenderExplanationPrompt renders the analyst prompt for an event.
	// eventJSON is the serialized event; contextEntries are prior memory texts.
	RenderExplanationPrompt(ctx context.Context, eventJSON string, contextEntries []string) (string, error)

	// ValidateStructuredOutput parses output as an Explanation.
	ValidateStructuredOutput(ctx context.Context, output string) (*Explanation, error)
}
