package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zoneguard/zoneguard-ai/internal/config"
)

// Package cli holds the zoneguard command tree.
//
// Commands:
//   serve     run the HTTP API (seeds an empty database with synthetic data)
//   replay    run one offline replay evaluation and print the report
//   pipeline  run the pipeline once for a zone and print the output
//   simulate  write a synthetic operational dataset as CSV

// Version is stamped at build time.
var Version = "dev"

type app struct {
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

// NewRootCommand builds the zoneguard command tree on the process streams.
func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdout, os.Stderr)
}

// NewRootCommandWithIO builds the command tree on the given streams.
func NewRootCommandWithIO(out, errOut io.Writer) *cobra.Command {
	return newRootCommand(out, errOut)
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{stdout: out, stderr: errOut}

	cmd := &cobra.Command{
		Use:           "zoneguard",
		Short:         "Delivery zone availability forecasting and incident reasoning",
		Long:          "zoneguard forecasts zone availability, flags anomalous operating windows, explains them and proposes mitigations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultConfigPath, "path to the YAML config file (optional)")

	cmd.AddCommand(
		newServeCmd(a),
		newReplayCmd(a),
		newPipelineCmd(a),
		newSimulateCmd(a),
	)
	return cmd
}

// loadConfig reads and validates configuration. The manager is returned so
// long-running commands can watch the file.
func (a *app) loadConfig(ctx context.Context) (*config.Config, config.ConfigManager, error) {
	mgr, err := config.NewConfigManager(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create config manager: %w", err)
	}
	if err := mgr.Load(ctx); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := mgr.Validate(ctx); err != nil {
		return nil, nil, err
	}
	return mgr.Get(ctx), mgr, nil
}
