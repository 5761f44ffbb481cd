package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test server defaults
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Server.AllowedOrigins)

	// Test LLM defaults
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "llama3.1:8b", cfg.LLM.Model)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, 30, cfg.LLM.TimeoutSeconds)

	// Test memory defaults
	assert.Equal(t, "memory", cfg.Memory.Backend)
	assert.Equal(t, 3, cfg.Memory.TopK)

	// Test pipeline defaults
	assert.Equal(t, 0.07, cfg.Anomaly.Contamination)
	assert.Equal(t, int64(42), cfg.Anomaly.Seed)
	assert.Equal(t, 120, cfg.Anomaly.DefaultLookback)
	assert.Equal(t, 6, cfg.Forecast.DefaultHorizon)
	assert.Equal(t, 5, cfg.Replay.MaxEvents)
	assert.Equal(t, 0.6, cfg.Replay.AcknowledgeRate)

	// Test simulation defaults
	assert.Equal(t, 6, cfg.Simulation.Zones)
	assert.Equal(t, 24*14, cfg.Simulation.Hours)

	// Test logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Tracing is disabled by default
	assert.Empty(t, cfg.Tracing.Endpoint)

	assert.Empty(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		modifyFn  func(*Config)
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid default config",
			modifyFn:  func(cfg *Config) {},
			wantError: false,
		},
		{
			name:      "llm disabled",
			modifyFn:  func(cfg *Config) { cfg.LLM.Provider = "none"; cfg.LLM.BaseURL = "" },
			wantError: false,
		},
		{
			name:      "invalid port - too low",
			modifyFn:  func(cfg *Config) { cfg.Server.Port = 0 },
			wantError: true,
			errorMsg:  "port must be between 1 and 65535",
		},
		{
			name:      "invalid port - too high",
			modifyFn:  func(cfg *Config) { cfg.Server.Port = 70000 },
			wantError: true,
			errorMsg:  "port must be between 1 and 65535",
		},
		{
			name:      "grpc health enabled",
			modifyFn:  func(cfg *Config) { cfg.Server.GRPCPort = 9090 },
			wantError: false,
		},
		{
			name:      "grpc port collides with http port",
			modifyFn:  func(cfg *Config) { cfg.Server.GRPCPort = cfg.Server.Port },
			wantError: true,
			errorMsg:  "collides with the HTTP port",
		},
		{
			name:      "negative grpc port",
			modifyFn:  func(cfg *Config) { cfg.Server.GRPCPort = -1 },
			wantError: true,
			errorMsg:  "grpc port must be between 0 and 65535",
		},
		{
			name:      "invalid llm provider",
			modifyFn:  func(cfg *Config) { cfg.LLM.Provider = "anthropic" },
			wantError: true,
			errorMsg:  "invalid provider",
		},
		{
			name:      "malformed ollama url",
			modifyFn:  func(cfg *Config) { cfg.LLM.BaseURL = "localhost" },
			wantError: true,
			errorMsg:  "invalid base URL",
		},
		{
			name:      "missing ollama model",
			modifyFn:  func(cfg *Config) { cfg.LLM.Model = "" },
			wantError: true,
			errorMsg:  "Ollama model is required",
		},
		{
			name:      "sqlite memory without path",
			modifyFn:  func(cfg *Config) { cfg.Memory.Backend = "sqlite"; cfg.Memory.SQLitePath = "" },
			wantError: true,
			errorMsg:  "sqlite_path is required when memory backend is sqlite",
		},
		{
			name:      "unknown memory backend",
			modifyFn:  func(cfg *Config) { cfg.Memory.Backend = "chroma" },
			wantError: true,
			errorMsg:  "invalid memory backend",
		},
		{
			name:      "contamination out of range",
			modifyFn:  func(cfg *Config) { cfg.Anomaly.Contamination = 0.6 },
			wantError: true,
			errorMsg:  "contamination must be in",
		},
		{
			name:      "lookback out of range",
			modifyFn:  func(cfg *Config) { cfg.Anomaly.DefaultLookback = 10 },
			wantError: true,
			errorMsg:  "default_lookback must be between 24 and 720",
		},
		{
			name:      "horizon out of range",
			modifyFn:  func(cfg *Config) { cfg.Forecast.DefaultHorizon = 49 },
			wantError: true,
			errorMsg:  "default_horizon must be between 1 and 48",
		},
		{
			name:      "acknowledge rate above one",
			modifyFn:  func(cfg *Config) { cfg.Replay.AcknowledgeRate = 1.5 },
			wantError: true,
			errorMsg:  "acknowledge_rate must be in",
		},
		{
			name:      "invalid log level",
			modifyFn:  func(cfg *Config) { cfg.Logging.Level = "trace" },
			wantError: true,
			errorMsg:  "invalid log level",
		},
		{
			name:      "invalid log format",
			modifyFn:  func(cfg *Config) { cfg.Logging.Format = "text" },
			wantError: true,
			errorMsg:  "invalid log format",
		},
		{
			name:      "tracing endpoint without port",
			modifyFn:  func(cfg *Config) { cfg.Tracing.Endpoint = "collector" },
			wantError: true,
			errorMsg:  "expected host:port",
		},
		{
			name:      "tracing protocol",
			modifyFn:  func(cfg *Config) { cfg.Tracing.Endpoint = "collector:4317"; cfg.Tracing.Protocol = "thrift" },
			wantError: true,
			errorMsg:  "must be one of: grpc, http",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modifyFn(cfg)

			errs := cfg.Validate()

			if tt.wantError {
				require.NotEmpty(t, errs, "expected validation errors but got none")
				found := false
				for _, err := range errs {
					if strings.Contains(err.Error(), tt.errorMsg) {
						found = true
						break
					}
				}
				assert.True(t, found, "expected error message containing '%s', got: %v", tt.errorMsg, errs)
			} else {
				assert.Empty(t, errs, "expected no validation errors but got: %v", errs)
			}
		})
	}
}

func TestConfigManagerLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  allowed_origins: ["https://ops.example.com"]

llm:
  provider: "none"

memory:
  backend: "sqlite"
  sqlite_path: "/tmp/memory.db"
  top_k: 5

anomaly:
  contamination: 0.05
  default_lookback: 240

logging:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	cfg := mgr.Get(ctx)
	require.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "none", cfg.LLM.Provider)
	assert.Equal(t, "sqlite", cfg.Memory.Backend)
	assert.Equal(t, 5, cfg.Memory.TopK)
	assert.Equal(t, 0.05, cfg.Anomaly.Contamination)
	assert.Equal(t, 240, cfg.Anomaly.DefaultLookback)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	// Untouched sections keep defaults
	assert.Equal(t, 5, cfg.Replay.MaxEvents)
	assert.Equal(t, int64(42), cfg.Anomaly.Seed)

	assert.NoError(t, mgr.Validate(ctx))
}

func TestConfigManagerEnvironmentOverrides(t *testing.T) {
	t.Setenv("ZONEGUARD_SERVER_PORT", "7070")
	t.Setenv("ZONEGUARD_LLM_MODEL", "mistral")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
server:
  port: 8000
llm:
  model: "llama3.1:8b"
  base_url: "http://localhost:11434"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))
	cfg := mgr.Get(ctx)

	assert.Equal(t, 7070, cfg.Server.Port, "port should be overridden by environment variable")
	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, "http://ollama:11434", cfg.LLM.BaseURL, "OLLAMA_BASE_URL should win")
}

func TestConfigManagerMissingFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nonexistent-config.yaml")

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	cfg := mgr.Get(ctx)
	require.NotNil(t, cfg)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestConfigManagerValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 99999

llm:
  provider: "invalid-provider"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	err = mgr.Validate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "llm.provider")
}

func TestConfigManagerReload(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 9000\n"), 0644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))
	assert.Equal(t, 9000, mgr.Get(ctx).Server.Port)

	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 9100\n"), 0644))
	require.NoError(t, mgr.Reload(ctx))
	assert.Equal(t, 9100, mgr.Get(ctx).Server.Port)
}

func TestConfigManagerWatch(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: info\n"), 0644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	updates := mgr.Watch(ctx)
	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0644))

	select {
	case cfg := <-updates:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Skip("file watch event not delivered on this filesystem")
	}
}
