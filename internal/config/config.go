package config

import "context"

// Package config provides configuration management for zoneguard-ai.
//
// Responsibilities:
//   - Load configuration from YAML files, environment variables, and CLI flags
//   - Validate configuration on startup
//   - Provide runtime access to all configuration
//   - Support configuration reloading (for some settings)
//   - Establish reasonable defaults
//
// Configuration Sources (priority order, high to low):
//   1. CLI flags (highest priority)
//   2. Environment variables (ZONEGUARD_* prefix, e.g. ZONEGUARD_SERVER_PORT)
//   3. YAML config file (default: ./zoneguard.yaml)
//   4. Built-in defaults (lowest priority)
//
// Main Configuration Sections:
//
//   1. Server
//      - host, port: Listen address (default 0.0.0.0:8000)
//      - read_timeout_seconds, write_timeout_seconds
//      - allowed_origins: CORS and WebSocket origins
//      - rate_limit_per_minute: Per-client request budget (0 disables)
//      - grpc_port: gRPC health service (0 disables)
//
//   2. Database
//      - sqlite_path: Operational store (default ./zoneguard.db)
//
//   3. LLM
//      - provider: "ollama" | "none"
//      - base_url, model, temperature, timeout_seconds
//      - OLLAMA_BASE_URL overrides base_url
//
//   4. Memory
//      - backend: "memory" | "sqlite"
//      - sqlite_path: Persistent memory file
//      - top_k: Context entries retrieved per explanation
//
//   5. Forecast
//      - ridge_alpha: Regression penalty
//      - default_horizon: Hours forecast when a request omits it
//
//   6. Anomaly
//      - contamination, seed, num_trees, min_rows, default_lookback
//
//   7. Replay
//      - max_events: Ranked events reasoned over per replay
//      - acknowledge_rate: Assumed operator acknowledgment share
//
//   8. Simulation
//      - zones, hours, seed: Seed dataset shape
//
//   9. Logging
//      - level: "debug" | "info" | "warn" | "error"
//      - format: "json" | "console"
//      - file, max_size_mb, max_backups, max_age_days, compress
//      - audit_file: Decision audit trail (empty disables)
//
//  10. Tracing
//      - endpoint: OTLP collector (empty disables export)
//      - protocol: "grpc" | "http"
//      - service_name, sampling_rate
//
// Config struct contains all configuration fields
type Config struct {
	// Server configuration
	Server struct {
		Host                string
		Port                int
		ReadTimeoutSeconds  int
		WriteTimeoutSeconds int
		// AllowedOrigins is a list of origins permitted for CORS and WebSocket
		// connections. Use ["*"] to allow any origin (development only).
		AllowedOrigins     []string
		RateLimitPerMinute int
		GRPCPort           int
	}

	// Database configuration
	Database struct {
		SQLitePath string
	}

	// LLM provider configuration
	LLM struct {
		Provider       string
		BaseURL        string
		Model          string
		Temperature    float64
		TimeoutSeconds int
	}

	// Memory store configuration
	Memory struct {
		Backend    string
		SQLitePath string
		TopK       int
	}

	// Forecast configuration
	Forecast struct {
		RidgeAlpha     float64
		DefaultHorizon int
	}

	// Anomaly configuration
	Anomaly struct {
		Contamination   float64
		Seed            int64
		NumTrees        int
		MinRows         int
		DefaultLookback int
	}

	// Replay configuration
	Replay struct {
		MaxEvents       int
		AcknowledgeRate float64
	}

	// Simulation configuration
	Simulation struct {
		Zones int
		Hours int
		Seed  int64
	}

	// Logging configuration
	Logging struct {
		Level      string
		Format     string
		File       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
		AuditFile  string
	}

	// Tracing configuration
	Tracing struct {
		ServiceName  string
		Endpoint     string
		Protocol     string
		SamplingRate float64
	}
}

// ConfigManager defines the interface for configuration access.
type ConfigManager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration changes and reloads (if supported).
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources (selective settings).
	Reload(ctx context.Context) error
}

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "zoneguard.yaml"

// NewConfigManager creates a new configuration manager.
func NewConfigManager(configPath string) (ConfigManager, error) {
	mgr := &viperConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}

// NewConfigManagerWithDefaults creates a config manager with default config path.
func NewConfigManagerWithDefaults() (ConfigManager, error) {
	return NewConfigManager(DefaultConfigPath)
}
