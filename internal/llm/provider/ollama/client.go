package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/zoneguard/zoneguard-ai/internal/llm/types"
)

// Package ollama provides the Ollama provider for explanation generation.
//
// Responsibilities:
//   - Call the Ollama generate API (POST /api/generate, non-streaming)
//   - Send the configured model id, prompt and sampling temperature
//   - Surface transport errors and non-2xx statuses as errors so the
//     reasoning engine can fall back locally
//
// Configuration:
//   - OLLAMA_BASE_URL: Optional. Defaults to http://localhost:11434
//   - OLLAMA_MODEL: Optional. Defaults to llama3.1:8b
//
// Key Advantage:
//   - Runs entirely on the operator's machine; no data leaves the host

// Ollama API constants
const (
	DefaultBaseURL     = "http://localhost:11434"
	DefaultModel       = "llama3.1:8b"
	DefaultTemperature = 0.2
	DefaultTimeout     = 30 * time.Second
)

type generateRequest struct {
	Model   string                `json:"model"`
	Prompt  string                `json:"prompt"`
	Stream  bool                  `json:"stream"`
	Options types.GenerateOptions `json:"options"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaClient implements types.Generator against an Ollama instance.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewOllamaClient creates a client. Empty arguments fall back to the
// OLLAMA_BASE_URL / OLLAMA_MODEL environment variables, then to defaults.
// No connection is attempted until Generate is called.
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_BASE_URL")
		if baseURL == "" {
			baseURL = DefaultBaseURL
		}
	}
	if model == "" {
		model = os.Getenv("OLLAMA_MODEL")
		if model == "" {
			model = DefaultModel
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OllamaClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: DefaultTemperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Generate implements types.Generator.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: types.GenerateOptions{Temperature: c.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(body))
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return resp.Response, nil
}

// Provider implements types.Generator.
func (c *OllamaClient) Provider() string { return "ollama" }

// Model implements types.Generator.
func (c *OllamaClient) Model() string { return c.model }

// SetTemperature overrides the sampling temperature.
func (c *OllamaClient) SetTemperature(t float64) { c.temperature = t }
