package types

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by a generator that has no backing service.
var ErrUnavailable = errors.New("llm: generator unavailable")

// Generator produces a text completion for a single prompt.
type Generator interface {
	// Generate returns the model's completion for prompt. Any error means no
	// usable completion was produced.
	Generate(ctx context.Context, prompt string) (string, error)

	// Provider returns the provider name used in logs and metrics.
	Provider() string

	// Model returns the configured model id.
	Model() string
}

// GenerateOptions are sampling options sent with a generation request.
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
}
