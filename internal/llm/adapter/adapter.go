package adapter

import (
	"github.com/zoneguard/zoneguard-ai/internal/llm/types"
)

// Package adapter selects and instruments the explanation generator.
//
// Supported Providers:
//   1. Ollama: local models served by an Ollama instance
//   2. None: no generator; every call fails with types.ErrUnavailable so the
//      reasoning engine always takes its deterministic fallback
//
// Provider Selection:
//   - config.yaml: llm.provider, llm.base_url, llm.model
//   - Environment vars: ZONEGUARD_LLM_PROVIDER, ZONEGUARD_LLM_BASE_URL,
//     ZONEGUARD_LLM_MODEL
//
// Fallback Behavior (No LLM Configured):
//   - Forecasting, anomaly detection and action planning are unaffected
//   - Explanations are produced by the local heuristic
//
// Every generator returned by NewGenerator reports request counts and
// latencies to the Prometheus LLM metrics.

// ProviderType identifies which generator backend is configured
type ProviderType string

const (
	ProviderOllama ProviderType = "ollama"
	ProviderNone   ProviderType = "none" // No LLM configured
)

// Config holds generator configuration
type Config struct {
	Provider       ProviderType `json:"provider"`
	BaseURL        string       `json:"base_url"`
	Model          string       `json:"model"`
	Temperature    float64      `json:"temperature"`
	TimeoutSeconds int          `json:"timeout_seconds"`
}

var _ types.Generator = (*disabledGenerator)(nil)
