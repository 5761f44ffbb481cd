package main

// Package main is the entry point for the zoneguard binary.
//
// Commands:
//   - serve: HTTP API on the configured port (default 8000), seeding an
//     empty database with a synthetic dataset
//   - replay: offline evaluation for one zone, printed as JSON
//   - pipeline: one pipeline run for a zone, printed as JSON
//   - simulate: synthetic dataset as CSV
//
// Graceful Shutdown:
//   - SIGINT/SIGTERM cancel open WebSocket sessions
//   - Closes HTTP listeners, the database and the memory store
//   - Flushes audit logs and pending spans

import (
	"fmt"
	"os"

	"github.com/zoneguard/zoneguard-ai/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
