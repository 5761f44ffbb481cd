package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zoneguard/zoneguard-ai/internal/dataset"
)

func newSimulateCmd(a *app) *cobra.Command {
	var (
		out   string
		zones int
		hours int
		seed  int64
		start string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write a synthetic operational dataset as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := a.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			gen := dataset.Config{
				Zones: cfg.Simulation.Zones,
				Hours: cfg.Simulation.Hours,
				Seed:  cfg.Simulation.Seed,
			}
			if cmd.Flags().Changed("zones") {
				gen.Zones = zones
			}
			if cmd.Flags().Changed("hours") {
				gen.Hours = hours
			}
			if cmd.Flags().Changed("seed") {
				gen.Seed = seed
			}
			if start != "" {
				if gen.Start, err = time.Parse(time.RFC3339, start); err != nil {
					return fmt.Errorf("--start must be RFC 3339: %w", err)
				}
			}

			obs, err := dataset.Generate(gen)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return dataset.Write(a.stdout, obs)
			}
			if err := dataset.Save(out, obs); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "wrote %d records for %d zones to %s\n", len(obs), gen.Zones, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output CSV path (stdout when empty or -)")
	cmd.Flags().IntVar(&zones, "zones", 0, "number of zones (default from config)")
	cmd.Flags().IntVar(&hours, "hours", 0, "hours of history per zone (default from config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default from config)")
	cmd.Flags().StringVar(&start, "start", "", "first timestamp, RFC 3339 (default: hours before now)")
	return cmd
}
