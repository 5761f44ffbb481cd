package cli

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zoneguard/zoneguard-ai/internal/audit"
	"github.com/zoneguard/zoneguard-ai/internal/config"
	"github.com/zoneguard/zoneguard-ai/internal/dataset"
	"github.com/zoneguard/zoneguard-ai/internal/db"
	"github.com/zoneguard/zoneguard-ai/internal/grpcserver"
	"github.com/zoneguard/zoneguard-ai/internal/server"
	"github.com/zoneguard/zoneguard-ai/internal/tracing"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Run the HTTP API. An empty database is seeded with a synthetic dataset first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, mgr, err := a.loadConfig(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return a.serve(ctx, cfg, mgr)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override the listen port")
	return cmd
}

func (a *app) serve(ctx context.Context, cfg *config.Config, mgr config.ConfigManager) error {
	logger, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	defer logger.Sync() //nolint:errcheck

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  cfg.Tracing.ServiceName,
		Endpoint:     cfg.Tracing.Endpoint,
		Protocol:     cfg.Tracing.Protocol,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("flush traces", zap.Error(err))
		}
	}()

	auditLogger := audit.NewNopLogger()
	if cfg.Logging.AuditFile != "" {
		auditCfg := audit.DefaultConfig()
		auditCfg.Path = cfg.Logging.AuditFile
		if auditLogger, err = audit.NewLogger(auditCfg, logger); err != nil {
			return fmt.Errorf("create audit logger: %w", err)
		}
	}
	defer auditLogger.Close()
	_ = auditLogger.Log(ctx, audit.NewEvent(audit.EventConfigLoaded).
		WithMetadata("config_path", a.configPath).
		WithMetadata("llm_provider", cfg.LLM.Provider).
		WithMetadata("memory_backend", cfg.Memory.Backend))

	store, err := db.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := seedIfEmpty(ctx, cfg, store, auditLogger, logger); err != nil {
		return err
	}

	comps, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	srv, err := server.NewServer(cfg, server.Deps{
		Store:     store,
		Predictor: comps.predictor,
		Detector:  comps.detector,
		Reasoner:  comps.reasoner,
		Planner:   comps.planner,
		Audit:     auditLogger,
	}, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	if cfg.Server.GRPCPort > 0 {
		health := grpcserver.NewServer(store, grpcserver.DefaultProbeInterval, logger)
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort))
		if err := health.Start(ctx, addr); err != nil {
			_ = srv.Stop(context.Background())
			return fmt.Errorf("start gRPC health server: %w", err)
		}
		defer health.Stop()
	}

	go watchConfig(ctx, mgr, auditLogger, logger)

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case <-srv.Done():
		logger.Error("server exited unexpectedly")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(sctx); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// seedIfEmpty loads a synthetic dataset when the database holds no
// operational records.
func seedIfEmpty(ctx context.Context, cfg *config.Config, store db.Store, auditLogger audit.Logger, logger *zap.Logger) error {
	n, err := store.CountObservations(ctx)
	if err != nil {
		return fmt.Errorf("count observations: %w", err)
	}
	if n > 0 {
		logger.Info("operational data present", zap.Int("records", n))
		return nil
	}

	obs, err := dataset.Generate(dataset.Config{
		Zones: cfg.Simulation.Zones,
		Hours: cfg.Simulation.Hours,
		Seed:  cfg.Simulation.Seed,
	})
	if err != nil {
		return fmt.Errorf("generate seed dataset: %w", err)
	}
	if err := store.InsertObservations(ctx, obs); err != nil {
		return fmt.Errorf("seed database: %w", err)
	}

	logger.Info("seeded database with synthetic data",
		zap.Int("zones", cfg.Simulation.Zones),
		zap.Int("records", len(obs)))
	_ = auditLogger.Log(ctx, audit.NewEvent(audit.EventDatasetSeeded).
		WithMetadata("zones", cfg.Simulation.Zones).
		WithMetadata("records", len(obs)))
	return nil
}

// watchConfig logs configuration file changes. Listener and storage
// settings only take effect on restart.
func watchConfig(ctx context.Context, mgr config.ConfigManager, auditLogger audit.Logger, logger *zap.Logger) {
	changes := mgr.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-changes:
			logger.Info("configuration file changed; restart to apply",
				zap.String("llm_provider", cfg.LLM.Provider),
				zap.Int("port", cfg.Server.Port))
			_ = auditLogger.Log(ctx, audit.NewEvent(audit.EventConfigChanged).
				WithDescription("configuration file changed"))
		}
	}
}
