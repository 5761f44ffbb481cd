package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zoneguard/zoneguard-ai/internal/logging"
)

// Package audit keeps an append-only trail of pipeline decisions: what was
// flagged, how it was explained, what was recommended and how operators
// rated it. Entries are buffered and flushed to a rotated JSON-lines file.

// Logger defines the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// LogPipelineCompleted logs a finished pipeline run
	LogPipelineCompleted(ctx context.Context, zone string, events int, reasoned bool, duration time.Duration) error
	// LogPipelineFailed logs an aborted pipeline run
	LogPipelineFailed(ctx context.Context, zone string, err error) error

	// LogReasoning logs an explanation and its source (llm or fallback)
	LogReasoning(ctx context.Context, eventID, source string) error
	// LogActionsPlanned logs a generated mitigation plan
	LogActionsPlanned(ctx context.Context, eventID string, actions []string) error
	// LogFeedback logs operator feedback on an explanation
	LogFeedback(ctx context.Context, eventID string, rating int) error

	// LogReplayCompleted logs an offline evaluation
	LogReplayCompleted(ctx context.Context, zone, replayID string, mape float64, anomalyEvents int) error

	// Sync flushes buffered log entries
	Sync() error

	// Close closes the audit logger
	Close() error
}

// Config represents audit logger configuration
type Config struct {
	// Path is the path to the audit log file
	Path string

	// MaxSize is the maximum size in megabytes before rotation
	MaxSize int

	// MaxBackups is the maximum number of old log files to retain
	MaxBackups int

	// MaxAge is the maximum number of days to retain old log files
	MaxAge int

	// Compress determines if rotated files should be compressed
	Compress bool
}

// DefaultConfig returns default audit logger configuration
func DefaultConfig() *Config {
	return &Config{
		Path:       "logs/audit.log",
		MaxSize:    100, // megabytes
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}
}

const bufferSize = 100

// auditLogger implements the Logger interface
type auditLogger struct {
	appLogger   *zap.Logger
	auditLogger *zap.Logger
	closeFile   func() error
	mu          sync.Mutex
	buffer      []*Event
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
}

// NewLogger creates a new audit logger. appLogger receives internal errors
// and may be nil.
func NewLogger(config *Config, appLogger *zap.Logger) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	if appLogger == nil {
		appLogger = zap.NewNop()
	}

	// Audit logs are always INFO level, append-only
	rotator := logging.RotatingWriter(config.Path, config.MaxSize, config.MaxBackups, config.MaxAge, config.Compress)
	auditCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(logging.EncoderConfig()),
		zapcore.AddSync(rotator),
		zapcore.InfoLevel,
	)

	logger := &auditLogger{
		appLogger:   appLogger,
		auditLogger: zap.New(auditCore),
		closeFile:   rotator.Close,
		buffer:      make([]*Event, 0, bufferSize),
		flushTicker: time.NewTicker(1 * time.Second),
		stopCh:      make(chan struct{}),
	}

	// Start auto-flush goroutine
	go logger.autoFlush()

	return logger, nil
}

// Log logs an audit event
func (l *auditLogger) Log(ctx context.Context, event *Event) error {
	if event.CorrelationID == "" {
		event.CorrelationID = GetCorrelationID(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, event)

	// Flush if buffer is full
	if len(l.buffer) >= bufferSize {
		return l.flushLocked()
	}

	return nil
}

// flushLocked flushes the buffer (caller must hold lock)
func (l *auditLogger) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}

	for _, event := range l.buffer {
		eventJSON, err := json.Marshal(event)
		if err != nil {
			l.appLogger.Error("failed to marshal audit event",
				zap.Error(err),
				zap.String("event_type", string(event.EventType)),
			)
			continue
		}

		l.auditLogger.Info(string(eventJSON),
			zap.String("correlation_id", event.CorrelationID),
			zap.String("event_type", string(event.EventType)),
			zap.String("result", string(event.Result)),
		)
	}

	l.buffer = l.buffer[:0]
	return nil
}

// autoFlush periodically flushes the buffer
func (l *auditLogger) autoFlush() {
	for {
		select {
		case <-l.flushTicker.C:
			l.mu.Lock()
			_ = l.flushLocked()
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// LogPipelineCompleted logs a finished pipeline run
func (l *auditLogger) LogPipelineCompleted(ctx context.Context, zone string, events int, reasoned bool, duration time.Duration) error {
	event := NewEvent(EventPipelineCompleted).
		WithZone(zone).
		WithDuration(duration).
		WithMetadata("anomaly_events", events).
		WithMetadata("reasoned", reasoned).
		WithDescription(fmt.Sprintf("Pipeline for %s completed with %d anomaly events", zone, events))

	return l.Log(ctx, event)
}

// LogPipelineFailed logs an aborted pipeline run
func (l *auditLogger) LogPipelineFailed(ctx context.Context, zone string, err error) error {
	event := NewEvent(EventPipelineFailed).
		WithZone(zone).
		WithError(err, "pipeline_error").
		WithDescription(fmt.Sprintf("Pipeline for %s failed", zone))

	return l.Log(ctx, event)
}

// LogReasoning logs an explanation and its source
func (l *auditLogger) LogReasoning(ctx context.Context, eventID, source string) error {
	result := ResultSuccess
	if source != "llm" {
		result = ResultDegraded
	}
	event := NewEvent(EventReasoningGenerated).
		WithEventID(eventID).
		WithResult(result).
		WithMetadata("source", source).
		WithDescription(fmt.Sprintf("Explanation for %s generated by %s", eventID, source))

	return l.Log(ctx, event)
}

// LogActionsPlanned logs a generated mitigation plan
func (l *auditLogger) LogActionsPlanned(ctx context.Context, eventID string, actions []string) error {
	event := NewEvent(EventActionsPlanned).
		WithEventID(eventID).
		WithMetadata("actions", actions).
		WithDescription(fmt.Sprintf("%d actions planned for %s", len(actions), eventID))

	return l.Log(ctx, event)
}

// LogFeedback logs operator feedback on an explanation
func (l *auditLogger) LogFeedback(ctx context.Context, eventID string, rating int) error {
	event := NewEvent(EventFeedbackReceived).
		WithEventID(eventID).
		WithMetadata("rating", rating).
		WithDescription(fmt.Sprintf("Feedback %d/5 for %s", rating, eventID))

	return l.Log(ctx, event)
}

// LogReplayCompleted logs an offline evaluation
func (l *auditLogger) LogReplayCompleted(ctx context.Context, zone, replayID string, mape float64, anomalyEvents int) error {
	event := NewEvent(EventReplayCompleted).
		WithZone(zone).
		WithMetadata("replay_id", replayID).
		WithMetadata("forecast_mape", mape).
		WithMetadata("anomaly_events", anomalyEvents).
		WithDescription(fmt.Sprintf("Replay %s for %s completed", replayID, zone))

	return l.Log(ctx, event)
}

// Sync flushes buffered log entries
func (l *auditLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.flushLocked(); err != nil {
		return err
	}

	return l.auditLogger.Sync()
}

// Close closes the audit logger
func (l *auditLogger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopCh)
		l.flushTicker.Stop()

		if err = l.Sync(); err != nil {
			return
		}
		err = l.closeFile()
	})
	return err
}

type correlationKey struct{}

// GetCorrelationID extracts correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID adds correlation ID to context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GenerateCorrelationID generates a new correlation ID
func GenerateCorrelationID() string {
	return uuid.New().String()
}

// nopLogger discards all events.
type nopLogger struct{}

// NewNopLogger returns a Logger that records nothing.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Log(context.Context, *Event) error { return nil }
func (nopLogger) LogPipelineCompleted(context.Context, string, int, bool, time.Duration) error {
	return nil
}
func (nopLogger) LogPipelineFailed(context.Context, string, error) error    { return nil }
func (nopLogger) LogReasoning(context.Context, string, string) error        { return nil }
func (nopLogger) LogActionsPlanned(context.Context, string, []string) error { return nil }
func (nopLogger) LogFeedback(context.Context, string, int) error            { return nil }
func (nopLogger) LogReplayCompleted(context.Context, string, string, float64, int) error {
	return nil
}
func (nopLogger) Sync() error  { return nil }
func (nopLogger) Close() error { return nil }
