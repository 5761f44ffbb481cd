package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	// Validate server configuration
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Server.Port),
		})
	}

	if c.Server.ReadTimeoutSeconds < 1 {
		errs = append(errs, &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: fmt.Sprintf("read timeout must be at least 1 second, got %d", c.Server.ReadTimeoutSeconds),
		})
	}

	if c.Server.WriteTimeoutSeconds < 1 {
		errs = append(errs, &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: fmt.Sprintf("write timeout must be at least 1 second, got %d", c.Server.WriteTimeoutSeconds),
		})
	}

	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.rate_limit_per_minute",
			Message: fmt.Sprintf("rate limit cannot be negative, got %d", c.Server.RateLimitPerMinute),
		})
	}

	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.grpc_port",
			Message: fmt.Sprintf("grpc port must be between 0 and 65535, got %d", c.Server.GRPCPort),
		})
	} else if c.Server.GRPCPort != 0 && c.Server.GRPCPort == c.Server.Port {
		errs = append(errs, &ValidationError{
			Field:   "server.grpc_port",
			Message: fmt.Sprintf("grpc port %d collides with the HTTP port", c.Server.GRPCPort),
		})
	}

	// Validate database configuration
	if c.Database.SQLitePath == "" {
		errs = append(errs, &ValidationError{
			Field:   "database.sqlite_path",
			Message: "sqlite_path is required",
		})
	}

	// Validate LLM configuration
	validProviders := map[string]bool{
		"ollama": true,
		"none":   true,
	}
	if !validProviders[c.LLM.Provider] {
		errs = append(errs, &ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: ollama, none", c.LLM.Provider),
		})
	}

	if c.LLM.Provider == "ollama" {
		if c.LLM.BaseURL == "" {
			errs = append(errs, &ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		} else if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, &ValidationError{
				Field:   "llm.base_url",
				Message: fmt.Sprintf("invalid base URL '%s' (expected scheme://host[:port])", c.LLM.BaseURL),
			})
		}
		if c.LLM.Model == "" {
			errs = append(errs, &ValidationError{
				Field:   "llm.model",
				Message: "Ollama model is required",
			})
		}
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, &ValidationError{
			Field:   "llm.temperature",
			Message: fmt.Sprintf("temperature must be between 0 and 2, got %.2f", c.LLM.Temperature),
		})
	}

	if c.LLM.TimeoutSeconds < 1 {
		errs = append(errs, &ValidationError{
			Field:   "llm.timeout_seconds",
			Message: fmt.Sprintf("timeout must be at least 1 second, got %d", c.LLM.TimeoutSeconds),
		})
	}

	// Validate memory configuration
	switch c.Memory.Backend {
	case "memory":
	case "sqlite":
		if c.Memory.SQLitePath == "" {
			errs = append(errs, &ValidationError{
				Field:   "memory.sqlite_path",
				Message: "sqlite_path is required when memory backend is sqlite",
			})
		}
	default:
		errs = append(errs, &ValidationError{
			Field:   "memory.backend",
			Message: fmt.Sprintf("invalid memory backend '%s', must be one of: memory, sqlite", c.Memory.Backend),
		})
	}

	if c.Memory.TopK < 1 {
		errs = append(errs, &ValidationError{
			Field:   "memory.top_k",
			Message: fmt.Sprintf("top_k must be at least 1, got %d", c.Memory.TopK),
		})
	}

	// Validate forecast configuration
	if c.Forecast.RidgeAlpha < 0 {
		errs = append(errs, &ValidationError{
			Field:   "forecast.ridge_alpha",
			Message: fmt.Sprintf("ridge_alpha cannot be negative, got %.4f", c.Forecast.RidgeAlpha),
		})
	}

	if c.Forecast.DefaultHorizon < 1 || c.Forecast.DefaultHorizon > 48 {
		errs = append(errs, &ValidationError{
			Field:   "forecast.default_horizon",
			Message: fmt.Sprintf("default_horizon must be between 1 and 48, got %d", c.Forecast.DefaultHorizon),
		})
	}

	// Validate anomaly configuration
	if c.Anomaly.Contamination <= 0 || c.Anomaly.Contamination >= 0.5 {
		errs = append(errs, &ValidationError{
			Field:   "anomaly.contamination",
			Message: fmt.Sprintf("contamination must be in (0, 0.5), got %.4f", c.Anomaly.Contamination),
		})
	}

	if c.Anomaly.NumTrees < 1 {
		errs = append(errs, &ValidationError{
			Field:   "anomaly.num_trees",
			Message: fmt.Sprintf("num_trees must be at least 1, got %d", c.Anomaly.NumTrees),
		})
	}

	if c.Anomaly.MinRows < 2 {
		errs = append(errs, &ValidationError{
			Field:   "anomaly.min_rows",
			Message: fmt.Sprintf("min_rows must be at least 2, got %d", c.Anomaly.MinRows),
		})
	}

	if c.Anomaly.DefaultLookback < 24 || c.Anomaly.DefaultLookback > 720 {
		errs = append(errs, &ValidationError{
			Field:   "anomaly.default_lookback",
			Message: fmt.Sprintf("default_lookback must be between 24 and 720, got %d", c.Anomaly.DefaultLookback),
		})
	}

	// Validate replay configuration
	if c.Replay.MaxEvents < 1 {
		errs = append(errs, &ValidationError{
			Field:   "replay.max_events",
			Message: fmt.Sprintf("max_events must be at least 1, got %d", c.Replay.MaxEvents),
		})
	}

	if c.Replay.AcknowledgeRate <= 0 || c.Replay.AcknowledgeRate > 1 {
		errs = append(errs, &ValidationError{
			Field:   "replay.acknowledge_rate",
			Message: fmt.Sprintf("acknowledge_rate must be in (0, 1], got %.2f", c.Replay.AcknowledgeRate),
		})
	}

	// Validate simulation configuration
	if c.Simulation.Zones < 1 || c.Simulation.Hours < 1 {
		errs = append(errs, &ValidationError{
			Field:   "simulation",
			Message: fmt.Sprintf("zones and hours must be positive, got %d and %d", c.Simulation.Zones, c.Simulation.Hours),
		})
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format '%s', must be one of: json, console", c.Logging.Format),
		})
	}

	if c.Logging.File != "" && c.Logging.MaxSizeMB < 1 {
		errs = append(errs, &ValidationError{
			Field:   "logging.max_size_mb",
			Message: fmt.Sprintf("max_size_mb must be at least 1 when file logging is enabled, got %d", c.Logging.MaxSizeMB),
		})
	}

	// Validate tracing configuration
	if c.Tracing.Endpoint != "" {
		if _, _, err := net.SplitHostPort(c.Tracing.Endpoint); err != nil {
			errs = append(errs, &ValidationError{
				Field:   "tracing.endpoint",
				Message: fmt.Sprintf("invalid endpoint format (expected host:port): %v", err),
			})
		}
		if p := strings.ToLower(c.Tracing.Protocol); p != "grpc" && p != "http" {
			errs = append(errs, &ValidationError{
				Field:   "tracing.protocol",
				Message: fmt.Sprintf("invalid protocol '%s', must be one of: grpc, http", c.Tracing.Protocol),
			})
		}
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, &ValidationError{
			Field:   "tracing.sampling_rate",
			Message: fmt.Sprintf("sampling_rate must be between 0 and 1, got %.2f", c.Tracing.SamplingRate),
		})
	}

	return errs
}
