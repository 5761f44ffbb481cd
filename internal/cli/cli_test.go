package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zoneguard/zoneguard-ai/internal/audit"
	"github.com/zoneguard/zoneguard-ai/internal/config"
	"github.com/zoneguard/zoneguard-ai/internal/dataset"
	"github.com/zoneguard/zoneguard-ai/internal/db"
	"github.com/zoneguard/zoneguard-ai/internal/orchestrator"
	"github.com/zoneguard/zoneguard-ai/internal/replay"
)

// writeConfig writes a config with the LLM disabled and the database under dir.
func writeConfig(t *testing.T, dir string) (configPath, dbPath string) {
	t.Helper()
	dbPath = filepath.Join(dir, "zoneguard.db")
	configPath = filepath.Join(dir, "zoneguard.yaml")
	body := fmt.Sprintf(`llm:
  provider: none
database:
  sqlite_path: %s
logging:
  level: error
  audit_file: ""
simulation:
  zones: 2
  hours: 240
  seed: 11
`, dbPath)
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o644))
	return configPath, dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommandWithIO(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func simulateCSV(t *testing.T, configPath, dir string) string {
	t.Helper()
	csvPath := filepath.Join(dir, "data", "ops.csv")
	_, err := execute(t, "--config", configPath, "simulate", "--out", csvPath, "--start", "2025-02-03T00:00:00Z")
	require.NoError(t, err)
	return csvPath
}

func TestSimulate_WritesCSV(t *testing.T) {
	dir := t.TempDir()
	configPath, _ := writeConfig(t, dir)
	csvPath := filepath.Join(dir, "out.csv")

	out, err := execute(t, "--config", configPath, "simulate",
		"--out", csvPath, "--zones", "3", "--hours", "48", "--seed", "5", "--start", "2025-02-03T00:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 144 records for 3 zones")

	obs, err := dataset.Load(csvPath)
	require.NoError(t, err)
	require.Len(t, obs, 144)
	assert.Equal(t, "zone_01", obs[0].ZoneID)
	assert.True(t, obs[0].Timestamp.Equal(time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)))
}

func TestSimulate_Stdout(t *testing.T) {
	configPath, _ := writeConfig(t, t.TempDir())

	out, err := execute(t, "--config", configPath, "simulate", "--zones", "1", "--hours", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "zone_id")
}

func TestSimulate_BadStart(t *testing.T) {
	configPath, _ := writeConfig(t, t.TempDir())
	_, err := execute(t, "--config", configPath, "simulate", "--start", "yesterday")
	assert.ErrorContains(t, err, "RFC 3339")
}

func TestReplay_FromCSV(t *testing.T) {
	dir := t.TempDir()
	configPath, _ := writeConfig(t, dir)
	csvPath := simulateCSV(t, configPath, dir)

	out, err := execute(t, "--config", configPath, "replay",
		"--zone", "zone_01", "--horizon", "4", "--lookback", "72", "--csv", csvPath)
	require.NoError(t, err)

	var report replay.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "zone_01", report.ZoneID)
	assert.NotEmpty(t, report.ReplayID)
	assert.GreaterOrEqual(t, report.ForecastRMSE, 0.0)
}

func TestReplay_FromDatabase(t *testing.T) {
	dir := t.TempDir()
	configPath, dbPath := writeConfig(t, dir)

	obs, err := dataset.Generate(dataset.Config{Zones: 2, Hours: 240, Seed: 11, Start: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	store, err := db.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.InsertObservations(context.Background(), obs))
	require.NoError(t, store.Close())

	out, err := execute(t, "--config", configPath, "replay", "--zone", "zone_02")
	require.NoError(t, err)

	var report replay.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "zone_02", report.ZoneID)
}

func TestReplay_Errors(t *testing.T) {
	dir := t.TempDir()
	configPath, _ := writeConfig(t, dir)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing zone", []string{"replay"}, "zone"},
		{"horizon out of range", []string{"replay", "--zone", "zone_01", "--horizon", "49"}, "--horizon"},
		{"lookback out of range", []string{"replay", "--zone", "zone_01", "--lookback", "10"}, "--lookback"},
		{"empty database", []string{"replay", "--zone", "zone_01"}, "no operational data loaded"},
		{"missing csv", []string{"replay", "--zone", "zone_01", "--csv", filepath.Join(dir, "absent.csv")}, "absent.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"--config", configPath}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPipeline_FromCSV(t *testing.T) {
	dir := t.TempDir()
	configPath, _ := writeConfig(t, dir)
	csvPath := simulateCSV(t, configPath, dir)

	out, err := execute(t, "--config", configPath, "pipeline", "--zone", "zone_02", "--horizon", "3", "--csv", csvPath)
	require.NoError(t, err)

	var res orchestrator.Output
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "zone_02", res.ZoneID)
	assert.Len(t, res.Traces, 4)
	require.NotNil(t, res.Forecast)
	assert.Len(t, res.Forecast.Predictions, 3)
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  provider: openai\n"), 0o644))

	_, err := execute(t, "--config", configPath, "simulate", "--zones", "1", "--hours", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
}

func TestSeedIfEmpty(t *testing.T) {
	ctx := context.Background()
	store, err := db.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	cfg := config.DefaultConfig()
	cfg.Simulation.Zones = 2
	cfg.Simulation.Hours = 48

	require.NoError(t, seedIfEmpty(ctx, cfg, store, audit.NewNopLogger(), zap.NewNop()))
	n, err := store.CountObservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 96, n)

	// A populated database is left alone.
	require.NoError(t, seedIfEmpty(ctx, cfg, store, audit.NewNopLogger(), zap.NewNop()))
	n, err = store.CountObservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 96, n)
}

func TestBuildComponents_UnsupportedProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "openai"
	_, err := buildComponents(cfg, zap.NewNop())
	assert.Error(t, err)
}
