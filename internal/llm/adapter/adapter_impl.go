package adapter

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/zoneguard/zoneguard-ai/internal/llm/provider/ollama"
	"github.com/zoneguard/zoneguard-ai/internal/llm/types"
	"github.com/zoneguard/zoneguard-ai/internal/metrics"
)

// NewGenerator creates a generator based on configuration. A nil config is
// read from the environment. An empty provider yields the disabled generator,
// which is not an error: the service starts in degraded mode.
func NewGenerator(cfg *Config) (types.Generator, error) {
	if cfg == nil {
		cfg = &Config{
			Provider: ProviderType(os.Getenv("ZONEGUARD_LLM_PROVIDER")),
			BaseURL:  os.Getenv("ZONEGUARD_LLM_BASE_URL"),
			Model:    os.Getenv("ZONEGUARD_LLM_MODEL"),
		}
	}

	switch cfg.Provider {
	case "", ProviderNone:
		return &disabledGenerator{}, nil

	case ProviderOllama:
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		client := ollama.NewOllamaClient(cfg.BaseURL, cfg.Model, timeout)
		if cfg.Temperature > 0 {
			client.SetTemperature(cfg.Temperature)
		}
		return Instrument(client), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// disabledGenerator is used when no provider is configured.
type disabledGenerator struct{}

func (disabledGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", types.ErrUnavailable
}

func (disabledGenerator) Provider() string { return string(ProviderNone) }

func (disabledGenerator) Model() string { return "" }

// instrumentedGenerator records request metrics around an inner generator.
type instrumentedGenerator struct {
	inner types.Generator
}

// Instrument wraps g so each call is counted and timed. The wrapper satisfies
// the same Generator interface so callers do not need to change.
func Instrument(g types.Generator) types.Generator {
	if _, ok := g.(*instrumentedGenerator); ok {
		return g
	}
	return &instrumentedGenerator{inner: g}
}

func (g *instrumentedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.LLMRequestDuration.WithLabelValues(g.inner.Provider(), g.inner.Model()).Observe(time.Since(start).Seconds())
	}()

	resp, err := g.inner.Generate(ctx, prompt)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LLMRequestsTotal.WithLabelValues(g.inner.Provider(), g.inner.Model(), status).Inc()
	return resp, err
}

func (g *instrumentedGenerator) Provider() string { return g.inner.Provider() }

func (g *instrumentedGenerator) Model() string { return g.inner.Model() }
