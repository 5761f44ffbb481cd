package cli

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/zoneguard/zoneguard-ai/internal/analytics/anomaly"
	"github.com/zoneguard/zoneguard-ai/internal/analytics/forecasting"
	"github.com/zoneguard/zoneguard-ai/internal/config"
	"github.com/zoneguard/zoneguard-ai/internal/llm/adapter"
	"github.com/zoneguard/zoneguard-ai/internal/logging"
	"github.com/zoneguard/zoneguard-ai/internal/memory/vector"
	"github.com/zoneguard/zoneguard-ai/internal/reasoning/engine"
	"github.com/zoneguard/zoneguard-ai/internal/recommendation"
)

// components are the pipeline stages built from configuration.
type components struct {
	predictor forecasting.Predictor
	detector  anomaly.AnomalyDetector
	reasoner  engine.ReasoningEngine
	planner   *recommendation.Planner
	memory    vector.VectorStore
}

func (c *components) Close() error {
	if c.memory == nil {
		return nil
	}
	return c.memory.Close()
}

func newLogger(cfg *config.Config) (*zap.Logger, io.Closer, error) {
	return logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
}

// buildComponents wires the stages. An unreachable LLM is not an error: the
// reasoning engine falls back to its deterministic explanation.
func buildComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	gen, err := adapter.NewGenerator(&adapter.Config{
		Provider:       adapter.ProviderType(cfg.LLM.Provider),
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("create LLM generator: %w", err)
	}

	memory := vector.New(cfg.Memory.Backend, cfg.Memory.SQLitePath, logger)

	detectorCfg := anomaly.DefaultConfig()
	detectorCfg.Contamination = cfg.Anomaly.Contamination
	detectorCfg.Seed = cfg.Anomaly.Seed
	detectorCfg.NumTrees = cfg.Anomaly.NumTrees
	detectorCfg.MinRows = cfg.Anomaly.MinRows

	return &components{
		predictor: forecasting.NewPredictor(cfg.Forecast.RidgeAlpha, logger),
		detector:  anomaly.NewAnomalyDetector(detectorCfg, logger),
		reasoner: engine.NewReasoningEngine(gen, memory, engine.Config{
			Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			TopK:    cfg.Memory.TopK,
		}, logger),
		planner: recommendation.NewPlanner(),
		memory:  memory,
	}, nil
}
