package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ZoneGuard service metrics for production monitoring
var (
	// Pipeline metrics
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_pipeline_runs_total",
			Help: "Total number of orchestrated pipeline runs",
		},
		[]string{"status"}, // ok, error
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoneguard_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"step", "status"},
	)

	// Forecast metrics
	ForecastModelsTrained = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zoneguard_forecast_models_trained",
			Help: "Number of zones trained by the most recent training pass",
		},
	)

	// Anomaly metrics
	AnomalyEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_anomaly_events_total",
			Help: "Total number of anomaly events flagged",
		},
		[]string{"zone_id"},
	)

	// Reasoning metrics
	ReasoningTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_reasoning_total",
			Help: "Total number of explanations produced",
		},
		[]string{"source"}, // llm, fallback
	)

	FeedbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zoneguard_feedback_total",
			Help: "Total number of feedback entries ingested",
		},
	)

	MemoryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_memory_errors_total",
			Help: "Memory store failures absorbed by the reasoning engine",
		},
		[]string{"operation"}, // query, upsert
	)

	// LLM metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_llm_requests_total",
			Help: "Total number of LLM API requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoneguard_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
		[]string{"provider", "model"},
	)

	// Replay metrics
	ReplayRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_replay_runs_total",
			Help: "Total number of replay evaluations",
		},
		[]string{"status"},
	)

	ReplayForecastMAPE = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zoneguard_replay_forecast_mape",
			Help: "Forecast MAPE from the latest replay per zone",
		},
		[]string{"zone_id"},
	)

	// API metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zoneguard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zoneguard_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zoneguard_websocket_connections",
			Help: "Number of active pipeline WebSocket connections",
		},
	)

	// Storage metrics
	DBOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneguard_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)
)
