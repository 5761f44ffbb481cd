package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zoneguard/zoneguard-ai/internal/config"
	"github.com/zoneguard/zoneguard-ai/internal/dataset"
	"github.com/zoneguard/zoneguard-ai/internal/db"
	"github.com/zoneguard/zoneguard-ai/internal/models"
	"github.com/zoneguard/zoneguard-ai/internal/orchestrator"
	"github.com/zoneguard/zoneguard-ai/internal/replay"
)

// zoneFlags are shared by the one-shot commands.
type zoneFlags struct {
	zone     string
	horizon  int
	lookback int
	csvPath  string
}

func (f *zoneFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.zone, "zone", "", "zone id (required)")
	cmd.Flags().IntVar(&f.horizon, "horizon", 0, "forecast horizon in hours (default from config)")
	cmd.Flags().IntVar(&f.lookback, "lookback", 0, "anomaly lookback in records (default from config)")
	cmd.Flags().StringVar(&f.csvPath, "csv", "", "read history from a CSV file instead of the database")
	_ = cmd.MarkFlagRequired("zone")
}

// resolve fills unset values from configuration and checks ranges.
func (f *zoneFlags) resolve(cfg *config.Config) error {
	if f.horizon == 0 {
		f.horizon = cfg.Forecast.DefaultHorizon
	}
	if f.lookback == 0 {
		f.lookback = cfg.Anomaly.DefaultLookback
	}
	if f.horizon < 1 || f.horizon > 48 {
		return fmt.Errorf("--horizon must be between 1 and 48, got %d", f.horizon)
	}
	if f.lookback < 24 || f.lookback > 720 {
		return fmt.Errorf("--lookback must be between 24 and 720, got %d", f.lookback)
	}
	return nil
}

// loadHistory reads history from the CSV file when given, otherwise from
// the configured database.
func (f *zoneFlags) loadHistory(ctx context.Context, cfg *config.Config) ([]models.Observation, error) {
	var (
		history []models.Observation
		err     error
	)
	if f.csvPath != "" {
		history, err = dataset.Load(f.csvPath)
	} else {
		var store db.Store
		store, err = db.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		defer store.Close()
		history, err = store.LoadObservations(ctx, "")
	}
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, errors.New("no operational data loaded")
	}
	return history, nil
}

func newReplayCmd(a *app) *cobra.Command {
	var flags zoneFlags
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Evaluate the pipeline against a held-out window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.oneShot(cmd.Context(), &flags, func(ctx context.Context, cfg *config.Config, comps *components, history []models.Observation, logger *zap.Logger) (interface{}, error) {
				harness := replay.NewReplayHarness(comps.detector, comps.reasoner, comps.planner, replay.Config{
					MaxEvents:       cfg.Replay.MaxEvents,
					AcknowledgeRate: cfg.Replay.AcknowledgeRate,
					RidgeAlpha:      cfg.Forecast.RidgeAlpha,
				}, logger)
				return harness.Run(ctx, history, flags.zone, flags.horizon, flags.lookback)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newPipelineCmd(a *app) *cobra.Command {
	var flags zoneFlags
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run forecast, detection, reasoning and planning once for a zone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.oneShot(cmd.Context(), &flags, func(ctx context.Context, _ *config.Config, comps *components, history []models.Observation, logger *zap.Logger) (interface{}, error) {
				runner := orchestrator.NewRunner(comps.predictor, comps.detector, comps.reasoner, comps.planner, logger)
				return runner.Run(ctx, history, flags.zone, flags.horizon, flags.lookback)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

type oneShotFunc func(ctx context.Context, cfg *config.Config, comps *components, history []models.Observation, logger *zap.Logger) (interface{}, error)

// oneShot loads configuration and history, runs fn and prints its result
// as indented JSON.
func (a *app) oneShot(ctx context.Context, flags *zoneFlags, fn oneShotFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, _, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := flags.resolve(cfg); err != nil {
		return err
	}

	logger, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	defer logger.Sync() //nolint:errcheck

	history, err := flags.loadHistory(ctx, cfg)
	if err != nil {
		return err
	}
	comps, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	out, err := fn(ctx, cfg, comps, history, logger)
	if err != nil {
		return err
	}
	return writeJSON(a.stdout, out)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
