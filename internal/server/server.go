package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/zoneguard/zoneguard-ai/internal/analytics/anomaly"
	"github.com/zoneguard/zoneguard-ai/internal/analytics/forecasting"
	"github.com/zoneguard/zoneguard-ai/internal/audit"
	"github.com/zoneguard/zoneguard-ai/internal/config"
	"github.com/zoneguard/zoneguard-ai/internal/db"
	"github.com/zoneguard/zoneguard-ai/internal/middleware"
	"github.com/zoneguard/zoneguard-ai/internal/orchestrator"
	"github.com/zoneguard/zoneguard-ai/internal/reasoning/engine"
	"github.com/zoneguard/zoneguard-ai/internal/recommendation"
	"github.com/zoneguard/zoneguard-ai/internal/replay"
)

// Package server exposes the zoneguard pipeline over HTTP.
//
// Routes:
//   GET  /                  service banner
//   GET  /health, /ready    liveness and readiness (readiness pings the store)
//   GET  /metrics           Prometheus exposition
//   GET  /predict           availability forecast (persists a forecast run)
//   POST /anomaly           anomaly detection (persists events)
//   POST /reason            event explanation (persists a reasoning record)
//   POST /action            mitigation plan
//   POST /feedback          operator feedback (persists a feedback record)
//   POST /pipeline/zone     full pipeline for one zone
//   POST /evaluate/replay   offline replay evaluation
//   GET  /ws/pipeline       pipeline with streamed step traces
//
// Every response carries X-Request-Id and X-Response-Time-Ms. The request id
// is also the audit correlation id.

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Deps are the components the server routes requests to.
type Deps struct {
	Store     db.Store
	Predictor forecasting.Predictor
	Detector  anomaly.AnomalyDetector
	Reasoner  engine.ReasoningEngine
	Planner   *recommendation.Planner
	Audit     audit.Logger
}

// Server represents the zoneguard API server
type Server struct {
	cfg *config.Config

	// Core components
	store     db.Store
	predictor forecasting.Predictor
	detector  anomaly.AnomalyDetector
	reasoner  engine.ReasoningEngine
	planner   *recommendation.Planner
	runner    *orchestrator.Runner
	harness   replay.ReplayHarness
	audit     audit.Logger
	logger    *zap.Logger

	limiter  *middleware.RateLimiter
	upgrader websocket.Upgrader
	handler  http.Handler

	// HTTP server
	httpServer *http.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.RWMutex
	running bool
}

// NewServer creates a new zoneguard API server
func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if deps.Store == nil || deps.Predictor == nil || deps.Detector == nil || deps.Reasoner == nil {
		return nil, fmt.Errorf("store, predictor, detector and reasoner are required")
	}
	if deps.Planner == nil {
		deps.Planner = recommendation.NewPlanner()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NewNopLogger()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:       cfg,
		store:     deps.Store,
		predictor: deps.Predictor,
		detector:  deps.Detector,
		reasoner:  deps.Reasoner,
		planner:   deps.Planner,
		audit:     deps.Audit,
		logger:    logger,
		limiter:   middleware.NewRateLimiter(cfg.Server.RateLimitPerMinute),
		upgrader:  newUpgrader(cfg.Server.AllowedOrigins),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.runner = orchestrator.NewRunner(s.predictor, s.detector, s.reasoner, s.planner, logger)
	s.harness = replay.NewReplayHarness(s.detector, s.reasoner, s.planner, replay.Config{
		MaxEvents:       cfg.Replay.MaxEvents,
		AcknowledgeRate: cfg.Replay.AcknowledgeRate,
		RidgeAlpha:      cfg.Forecast.RidgeAlpha,
	}, logger)
	s.handler = s.buildHandler()
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	router := mux.NewRouter()
	s.registerHandlers(router)
	router.Use(middleware.StructuredLog(s.logger))
	router.Use(middleware.Recovery(s.logger))

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{middleware.RequestIDHeader, middleware.ResponseTimeHeader},
		AllowCredentials: true,
	})

	var h http.Handler = c.Handler(router)
	h = middleware.MaxBodySize(maxBodyBytes)(h)
	h = s.limiter.Middleware(h)
	h = middleware.ResponseTime(h)
	h = middleware.RequestID(h)
	return middleware.Tracing(h)
}

// registerHandlers registers HTTP handlers
func (s *Server) registerHandlers(r *mux.Router) {
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/predict", s.handlePredict).Methods(http.MethodGet)
	r.HandleFunc("/anomaly", s.handleAnomaly).Methods(http.MethodPost)
	r.HandleFunc("/reason", s.handleReason).Methods(http.MethodPost)
	r.HandleFunc("/action", s.handleAction).Methods(http.MethodPost)
	r.HandleFunc("/feedback", s.handleFeedback).Methods(http.MethodPost)
	r.HandleFunc("/pipeline/zone", s.handlePipeline).Methods(http.MethodPost)
	r.HandleFunc("/evaluate/replay", s.handleReplay).Methods(http.MethodPost)

	r.HandleFunc("/ws/pipeline", s.handlePipelineWebSocket).Methods(http.MethodGet)
}

// Start starts the server
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	addr := net.JoinHostPort(s.cfg.Server.Host, fmt.Sprint(s.cfg.Server.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("starting HTTP server", zap.String("addr", addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
			s.cancel()
		}
	}()

	_ = s.audit.Log(s.ctx, audit.NewEvent(audit.EventServerStarted).
		WithMetadata("addr", addr).
		WithMetadata("llm_provider", s.cfg.LLM.Provider).
		WithDescription("zoneguard server started"))
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is not running")
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping zoneguard server")

	var shutdownErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("shutdown HTTP server: %w", err)
		}
	}
	s.limiter.Stop()

	// Cancel context, ending open WebSocket sessions
	s.cancel()
	s.wg.Wait()

	_ = s.audit.Log(ctx, audit.NewEvent(audit.EventServerShutdown).WithDescription("zoneguard server stopped"))
	return shutdownErr
}

// Done is closed when the server stops or fails to listen.
func (s *Server) Done() <-chan struct{} {
	return s.ctx.Done()
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
