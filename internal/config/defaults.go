package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Server defaults
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8000
	cfg.Server.ReadTimeoutSeconds = 15
	cfg.Server.WriteTimeoutSeconds = 60
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:8501"}
	cfg.Server.RateLimitPerMinute = 600
	cfg.Server.GRPCPort = 0

	// Database defaults
	cfg.Database.SQLitePath = "./zoneguard.db"

	// LLM defaults
	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = "http://localhost:11434"
	cfg.LLM.Model = "llama3.1:8b"
	cfg.LLM.Temperature = 0.2
	cfg.LLM.TimeoutSeconds = 30

	// Memory defaults
	cfg.Memory.Backend = "memory"
	cfg.Memory.SQLitePath = "./zoneguard_memory.db"
	cfg.Memory.TopK = 3

	// Forecast defaults
	cfg.Forecast.RidgeAlpha = 1.0
	cfg.Forecast.DefaultHorizon = 6

	// Anomaly defaults
	cfg.Anomaly.Contamination = 0.07
	cfg.Anomaly.Seed = 42
	cfg.Anomaly.NumTrees = 200
	cfg.Anomaly.MinRows = 20
	cfg.Anomaly.DefaultLookback = 120

	// Replay defaults
	cfg.Replay.MaxEvents = 5
	cfg.Replay.AcknowledgeRate = 0.6

	// Simulation defaults (seed dataset: 6 zones x 14 days)
	cfg.Simulation.Zones = 6
	cfg.Simulation.Hours = 24 * 14
	cfg.Simulation.Seed = 7

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.File = ""
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 10
	cfg.Logging.MaxAgeDays = 30
	cfg.Logging.Compress = true
	cfg.Logging.AuditFile = "logs/audit.log"

	// Tracing defaults (disabled until an endpoint is set)
	cfg.Tracing.ServiceName = "zoneguard"
	cfg.Tracing.Endpoint = ""
	cfg.Tracing.Protocol = "grpc"
	cfg.Tracing.SamplingRate = 1.0

	return cfg
}
