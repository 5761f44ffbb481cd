package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperConfigManager implements ConfigManager using Viper.
type viperConfigManager struct {
	mu         sync.RWMutex
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load loads configuration from all sources.
func (m *viperConfigManager) Load(ctx context.Context) error {
	// Initialize viper
	m.viper = viper.New()

	// Set config file path
	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	// Set environment variable prefix
	m.viper.SetEnvPrefix("ZONEGUARD")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	m.setDefaults()

	// Try to read config file (optional)
	if err := m.readConfigFile(); err != nil {
		return err
	}

	// Unmarshal into config struct
	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	return nil
}

// Get returns the current configuration.
func (m *viperConfigManager) Get(ctx context.Context) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperConfigManager) Validate(ctx context.Context) error {
	errs := m.Get(ctx).Validate()
	if len(errs) > 0 {
		// Combine all errors into a single error message
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration changes and reloads.
func (m *viperConfigManager) Watch(ctx context.Context) <-chan Config {
	// Start watching config file
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.unmarshalConfig(); err != nil {
			return
		}
		select {
		case m.watchChan <- *m.Get(ctx):
		default:
			// Channel full, skip this update
		}
	})
	m.viper.WatchConfig()

	return m.watchChan
}

// Reload reloads configuration from sources.
func (m *viperConfigManager) Reload(ctx context.Context) error {
	if err := m.readConfigFile(); err != nil {
		return err
	}
	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	return nil
}

// readConfigFile reads the YAML file; a missing file is not an error.
func (m *viperConfigManager) readConfigFile() error {
	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// setDefaults sets default values in viper.
func (m *viperConfigManager) setDefaults() {
	defaults := DefaultConfig()

	// Server defaults
	m.viper.SetDefault("server.host", defaults.Server.Host)
	m.viper.SetDefault("server.port", defaults.Server.Port)
	m.viper.SetDefault("server.read_timeout_seconds", defaults.Server.ReadTimeoutSeconds)
	m.viper.SetDefault("server.write_timeout_seconds", defaults.Server.WriteTimeoutSeconds)
	m.viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	m.viper.SetDefault("server.rate_limit_per_minute", defaults.Server.RateLimitPerMinute)
	m.viper.SetDefault("server.grpc_port", defaults.Server.GRPCPort)

	// Database defaults
	m.viper.SetDefault("database.sqlite_path", defaults.Database.SQLitePath)

	// LLM defaults
	m.viper.SetDefault("llm.provider", defaults.LLM.Provider)
	m.viper.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	m.viper.SetDefault("llm.model", defaults.LLM.Model)
	m.viper.SetDefault("llm.temperature", defaults.LLM.Temperature)
	m.viper.SetDefault("llm.timeout_seconds", defaults.LLM.TimeoutSeconds)

	// Memory defaults
	m.viper.SetDefault("memory.backend", defaults.Memory.Backend)
	m.viper.SetDefault("memory.sqlite_path", defaults.Memory.SQLitePath)
	m.viper.SetDefault("memory.top_k", defaults.Memory.TopK)

	// Forecast defaults
	m.viper.SetDefault("forecast.ridge_alpha", defaults.Forecast.RidgeAlpha)
	m.viper.SetDefault("forecast.default_horizon", defaults.Forecast.DefaultHorizon)

	// Anomaly defaults
	m.viper.SetDefault("anomaly.contamination", defaults.Anomaly.Contamination)
	m.viper.SetDefault("anomaly.seed", defaults.Anomaly.Seed)
	m.viper.SetDefault("anomaly.num_trees", defaults.Anomaly.NumTrees)
	m.viper.SetDefault("anomaly.min_rows", defaults.Anomaly.MinRows)
	m.viper.SetDefault("anomaly.default_lookback", defaults.Anomaly.DefaultLookback)

	// Replay defaults
	m.viper.SetDefault("replay.max_events", defaults.Replay.MaxEvents)
	m.viper.SetDefault("replay.acknowledge_rate", defaults.Replay.AcknowledgeRate)

	// Simulation defaults
	m.viper.SetDefault("simulation.zones", defaults.Simulation.Zones)
	m.viper.SetDefault("simulation.hours", defaults.Simulation.Hours)
	m.viper.SetDefault("simulation.seed", defaults.Simulation.Seed)

	// Logging defaults
	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.file", defaults.Logging.File)
	m.viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
	m.viper.SetDefault("logging.compress", defaults.Logging.Compress)
	m.viper.SetDefault("logging.audit_file", defaults.Logging.AuditFile)

	// Tracing defaults
	m.viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	m.viper.SetDefault("tracing.endpoint", defaults.Tracing.Endpoint)
	m.viper.SetDefault("tracing.protocol", defaults.Tracing.Protocol)
	m.viper.SetDefault("tracing.sampling_rate", defaults.Tracing.SamplingRate)
}

// unmarshalConfig unmarshals viper config into Config struct.
func (m *viperConfigManager) unmarshalConfig() error {
	cfg := &Config{}

	// Server
	cfg.Server.Host = m.viper.GetString("server.host")
	cfg.Server.Port = m.viper.GetInt("server.port")
	cfg.Server.ReadTimeoutSeconds = m.viper.GetInt("server.read_timeout_seconds")
	cfg.Server.WriteTimeoutSeconds = m.viper.GetInt("server.write_timeout_seconds")
	cfg.Server.AllowedOrigins = m.viper.GetStringSlice("server.allowed_origins")
	cfg.Server.RateLimitPerMinute = m.viper.GetInt("server.rate_limit_per_minute")
	cfg.Server.GRPCPort = m.viper.GetInt("server.grpc_port")

	// Database
	cfg.Database.SQLitePath = m.viper.GetString("database.sqlite_path")

	// LLM
	cfg.LLM.Provider = m.viper.GetString("llm.provider")
	cfg.LLM.BaseURL = m.viper.GetString("llm.base_url")
	cfg.LLM.Model = m.viper.GetString("llm.model")
	cfg.LLM.Temperature = m.viper.GetFloat64("llm.temperature")
	cfg.LLM.TimeoutSeconds = m.viper.GetInt("llm.timeout_seconds")

	// Memory
	cfg.Memory.Backend = m.viper.GetString("memory.backend")
	cfg.Memory.SQLitePath = m.viper.GetString("memory.sqlite_path")
	cfg.Memory.TopK = m.viper.GetInt("memory.top_k")

	// Forecast
	cfg.Forecast.RidgeAlpha = m.viper.GetFloat64("forecast.ridge_alpha")
	cfg.Forecast.DefaultHorizon = m.viper.GetInt("forecast.default_horizon")

	// Anomaly
	cfg.Anomaly.Contamination = m.viper.GetFloat64("anomaly.contamination")
	cfg.Anomaly.Seed = m.viper.GetInt64("anomaly.seed")
	cfg.Anomaly.NumTrees = m.viper.GetInt("anomaly.num_trees")
	cfg.Anomaly.MinRows = m.viper.GetInt("anomaly.min_rows")
	cfg.Anomaly.DefaultLookback = m.viper.GetInt("anomaly.default_lookback")

	// Replay
	cfg.Replay.MaxEvents = m.viper.GetInt("replay.max_events")
	cfg.Replay.AcknowledgeRate = m.viper.GetFloat64("replay.acknowledge_rate")

	// Simulation
	cfg.Simulation.Zones = m.viper.GetInt("simulation.zones")
	cfg.Simulation.Hours = m.viper.GetInt("simulation.hours")
	cfg.Simulation.Seed = m.viper.GetInt64("simulation.seed")

	// Logging
	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.File = m.viper.GetString("logging.file")
	cfg.Logging.MaxSizeMB = m.viper.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = m.viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = m.viper.GetInt("logging.max_age_days")
	cfg.Logging.Compress = m.viper.GetBool("logging.compress")
	cfg.Logging.AuditFile = m.viper.GetString("logging.audit_file")

	// Tracing
	cfg.Tracing.ServiceName = m.viper.GetString("tracing.service_name")
	cfg.Tracing.Endpoint = m.viper.GetString("tracing.endpoint")
	cfg.Tracing.Protocol = m.viper.GetString("tracing.protocol")
	cfg.Tracing.SamplingRate = m.viper.GetFloat64("tracing.sampling_rate")

	applyEnvOverrides(cfg)

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// applyEnvOverrides applies environment variables that sit outside the
// ZONEGUARD_ prefix.
func applyEnvOverrides(cfg *Config) {
	// Ollama base URL from environment
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}

	// Standard OTLP endpoint variable
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" && cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = endpoint
	}
}
