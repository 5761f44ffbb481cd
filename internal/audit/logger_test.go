package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) (Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewLogger(&Config{Path: path, MaxSize: 10, MaxBackups: 3}, nil)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger, path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	var lines []string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestNewLoggerRequiresPath(t *testing.T) {
	_, err := NewLogger(&Config{}, nil)
	if err == nil {
		t.Fatal("Expected error for empty path")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Path != "logs/audit.log" {
		t.Errorf("Expected audit log path 'logs/audit.log', got %s", config.Path)
	}
	if config.MaxSize != 100 {
		t.Errorf("Expected max size 100, got %d", config.MaxSize)
	}
	if !config.Compress {
		t.Error("Expected compression to be enabled")
	}
}

func TestLogEvent(t *testing.T) {
	logger, path := newTestLogger(t)

	ctx := WithCorrelationID(context.Background(), "req-123")
	event := NewEvent(EventAnomalyDetected).
		WithZone("zone_03").
		WithEventID("zone_03:2025-01-06T05:00:00Z").
		WithMetadata("score", 0.71)

	if err := logger.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	for _, want := range []string{"req-123", "anomaly.detected", "zone_03", "0.71"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("Log does not contain %q: %s", want, lines[0])
		}
	}
}

func TestDecisionTrail(t *testing.T) {
	logger, path := newTestLogger(t)
	ctx := context.Background()

	if err := logger.LogPipelineCompleted(ctx, "zone_01", 3, true, 120*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := logger.LogReasoning(ctx, "e1", "fallback"); err != nil {
		t.Fatal(err)
	}
	if err := logger.LogActionsPlanned(ctx, "e1", []string{"Rebalance drivers", "Monitor zone stability"}); err != nil {
		t.Fatal(err)
	}
	if err := logger.LogFeedback(ctx, "e1", 4); err != nil {
		t.Fatal(err)
	}
	if err := logger.LogReplayCompleted(ctx, "zone_01", "r-1", 0.0327, 8); err != nil {
		t.Fatal(err)
	}
	if err := logger.LogPipelineFailed(ctx, "zone_09", errors.New("insufficient data")); err != nil {
		t.Fatal(err)
	}
	if err := logger.Sync(); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, path)
	if len(lines) != 6 {
		t.Fatalf("Expected 6 events, got %d", len(lines))
	}

	wantTypes := []string{
		"pipeline.completed", "reasoning.generated", "action.planned",
		"feedback.received", "replay.completed", "pipeline.failed",
	}
	wantResults := []string{"success", "degraded", "success", "success", "success", "failure"}
	for i, line := range lines {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
		if entry["event_type"] != wantTypes[i] {
			t.Errorf("line %d: expected event type %s, got %v", i, wantTypes[i], entry["event_type"])
		}
		if entry["result"] != wantResults[i] {
			t.Errorf("line %d: expected result %s, got %v", i, wantResults[i], entry["result"])
		}
	}
}

func TestBufferAutoFlush(t *testing.T) {
	logger, path := newTestLogger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := logger.LogFeedback(ctx, "e1", 5); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	// Wait for auto-flush (1 second ticker)
	time.Sleep(1500 * time.Millisecond)

	if len(readLines(t, path)) == 0 {
		t.Error("Audit log is empty after auto-flush")
	}
}

func TestBufferFullFlush(t *testing.T) {
	logger, path := newTestLogger(t)
	ctx := context.Background()

	for i := 0; i < 105; i++ {
		if err := logger.Log(ctx, NewEvent(EventForecastRecorded).WithZone("zone_01")); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if got := len(readLines(t, path)); got < 105 {
		t.Errorf("Expected at least 105 events, got %d", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	logger, _ := newTestLogger(t)
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestCorrelationID(t *testing.T) {
	id1 := GenerateCorrelationID()
	id2 := GenerateCorrelationID()
	if id1 == "" || id1 == id2 {
		t.Errorf("Expected unique non-empty correlation IDs, got %q and %q", id1, id2)
	}

	ctx := WithCorrelationID(context.Background(), id1)
	if got := GetCorrelationID(ctx); got != id1 {
		t.Errorf("Expected %s, got %s", id1, got)
	}
	if got := GetCorrelationID(context.Background()); got != "" {
		t.Errorf("Expected empty correlation ID, got %s", got)
	}
}

func TestEventBuilderChain(t *testing.T) {
	event := NewEvent(EventPipelineFailed).
		WithCorrelationID("c-1").
		WithZone("zone_02").
		WithEventID("e-9").
		WithDescription("boom").
		WithDuration(2 * time.Second).
		WithError(errors.New("model not ready"), "model_not_ready")

	if event.Result != ResultFailure {
		t.Errorf("Expected failure result, got %s", event.Result)
	}
	if event.DurationMs != 2000 {
		t.Errorf("Expected 2000ms, got %d", event.DurationMs)
	}
	if event.ErrorCode != "model_not_ready" || event.Error != "model not ready" {
		t.Errorf("Unexpected error fields: %s %s", event.ErrorCode, event.Error)
	}
	if event.ZoneID != "zone_02" || event.EventID != "e-9" {
		t.Errorf("Unexpected subject fields: %s %s", event.ZoneID, event.EventID)
	}

	if NewEvent(EventConfigLoaded).WithError(nil, "x").Result != ResultSuccess {
		t.Error("nil error must not change the result")
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	ctx := context.Background()
	if err := l.LogFeedback(ctx, "e", 1); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
}
