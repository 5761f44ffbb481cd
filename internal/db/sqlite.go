package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/zoneguard/zoneguard-ai/internal/models"
)

// timeLayout is fixed width so that TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// schema defines the tables for the zoneguard persistence layer.
// Version is tracked in the schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS operational_records (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    zone_id       TEXT NOT NULL,
    timestamp     TEXT NOT NULL,
    demand        REAL NOT NULL,
    drivers       REAL NOT NULL,
    inventory     REAL NOT NULL,
    weather       TEXT NOT NULL,
    availability  REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_operational_zone_ts ON operational_records(zone_id, timestamp);

CREATE TABLE IF NOT EXISTS forecast_runs (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    zone_id        TEXT NOT NULL,
    horizon_hours  INTEGER NOT NULL,
    predictions    TEXT NOT NULL DEFAULT '[]',
    created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_forecast_runs_zone ON forecast_runs(zone_id, created_at DESC);

CREATE TABLE IF NOT EXISTS anomaly_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id     TEXT NOT NULL,
    zone_id      TEXT NOT NULL,
    score        REAL NOT NULL DEFAULT 0.0,
    payload      TEXT NOT NULL DEFAULT '{}',
    detected_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_anomaly_zone ON anomaly_events(zone_id, detected_at DESC);
CREATE INDEX IF NOT EXISTS idx_anomaly_event_id ON anomaly_events(event_id);

CREATE TABLE IF NOT EXISTS reasoning_records (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id     TEXT NOT NULL,
    prompt       TEXT NOT NULL,
    explanation  TEXT NOT NULL,
    source       TEXT NOT NULL DEFAULT '',
    created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reasoning_event_id ON reasoning_records(event_id, created_at);

CREATE TABLE IF NOT EXISTS feedback_records (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id    TEXT NOT NULL,
    rating      INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
    correction  TEXT NOT NULL DEFAULT '',
    metadata    TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_event_id ON feedback_records(event_id, created_at);
`,
	},
}

// sqliteStore implements Store using SQLite.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path and runs migrations.
// Pass ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrency and performance.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Enable foreign-key constraints.
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *sqliteStore) migrate() error {
	// Ensure schema_versions table exists before reading from it.
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Operational records ─────────────────────────────────────────────────────

func (s *sqliteStore) InsertObservations(ctx context.Context, obs []models.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO operational_records(zone_id, timestamp, demand, drivers, inventory, weather, availability)
        VALUES(?,?,?,?,?,?,?)
    `)
	if err != nil {
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx,
			o.ZoneID, formatTime(o.Timestamp), o.Demand, o.Drivers,
			o.Inventory, o.Weather, o.Availability,
		); err != nil {
			return fmt.Errorf("insert observation %s@%s: %w", o.ZoneID, o.Timestamp.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadObservations(ctx context.Context, zone string) ([]models.Observation, error) {
	query := `SELECT zone_id,timestamp,demand,drivers,inventory,weather,availability FROM operational_records`
	args := []any{}
	if zone != "" {
		query += ` WHERE zone_id = ?`
		args = append(args, zone)
	}
	query += ` ORDER BY zone_id ASC, timestamp ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var result []models.Observation
	for rows.Next() {
		var o models.Observation
		var ts string
		if err := rows.Scan(&o.ZoneID, &ts, &o.Demand, &o.Drivers, &o.Inventory, &o.Weather, &o.Availability); err != nil {
			return nil, err
		}
		if o.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *sqliteStore) CountObservations(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operational_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}

// ─── Forecast runs ───────────────────────────────────────────────────────────

func (s *sqliteStore) SaveForecastRun(ctx context.Context, rec *ForecastRunRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Predictions == "" {
		rec.Predictions = "[]"
	}
	result, err := s.db.ExecContext(ctx, `
        INSERT INTO forecast_runs(zone_id, horizon_hours, predictions, created_at)
        VALUES(?,?,?,?)
    `, rec.ZoneID, rec.HorizonHours, rec.Predictions, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert forecast run: %w", err)
	}
	rec.ID, _ = result.LastInsertId()
	return nil
}

func (s *sqliteStore) ListForecastRuns(ctx context.Context, zone string, limit int) ([]*ForecastRunRecord, error) {
	query := `SELECT id,zone_id,horizon_hours,predictions,created_at FROM forecast_runs WHERE 1=1`
	args := []any{}
	if zone != "" {
		query += ` AND zone_id = ?`
		args = append(args, zone)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ForecastRunRecord
	for rows.Next() {
		rec := &ForecastRunRecord{}
		var ts string
		if err := rows.Scan(&rec.ID, &rec.ZoneID, &rec.HorizonHours, &rec.Predictions, &ts); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = parseTime(ts)
		result = append(result, rec)
	}
	return result, rows.Err()
}

// ─── Anomaly events ──────────────────────────────────────────────────────────

func (s *sqliteStore) AppendAnomalyEvents(ctx context.Context, events []models.AnomalyEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		payload, err := json.Marshal(e.Snapshot)
		if err != nil {
			return fmt.Errorf("marshal snapshot %s: %w", e.EventID, err)
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO anomaly_events(event_id, zone_id, score, payload, detected_at)
            VALUES(?,?,?,?,?)
        `, e.EventID, e.ZoneID, e.Score, string(payload), formatTime(e.Timestamp)); err != nil {
			return fmt.Errorf("insert anomaly event %s: %w", e.EventID, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) QueryAnomalyEvents(ctx context.Context, zone string, limit int) ([]*AnomalyEventRecord, error) {
	query := `SELECT id,event_id,zone_id,score,payload,detected_at FROM anomaly_events WHERE 1=1`
	args := []any{}
	if zone != "" {
		query += ` AND zone_id = ?`
		args = append(args, zone)
	}
	query += ` ORDER BY detected_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*AnomalyEventRecord
	for rows.Next() {
		rec := &AnomalyEventRecord{}
		var ts string
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.ZoneID, &rec.Score, &rec.Payload, &ts); err != nil {
			return nil, err
		}
		rec.DetectedAt, _ = parseTime(ts)
		result = append(result, rec)
	}
	return result, rows.Err()
}

// ─── Reasoning records ───────────────────────────────────────────────────────

func (s *sqliteStore) SaveReasoning(ctx context.Context, rec *ReasoningRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx, `
        INSERT INTO reasoning_records(event_id, prompt, explanation, source, created_at)
        VALUES(?,?,?,?,?)
    `, rec.EventID, rec.Prompt, rec.Explanation, rec.Source, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert reasoning record: %w", err)
	}
	rec.ID, _ = result.LastInsertId()
	return nil
}

func (s *sqliteStore) ListReasoning(ctx context.Context, eventID string) ([]*ReasoningRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id,event_id,prompt,explanation,source,created_at
        FROM reasoning_records WHERE event_id = ?
        ORDER BY created_at ASC, id ASC
    `, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ReasoningRecord
	for rows.Next() {
		rec := &ReasoningRecord{}
		var ts string
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Prompt, &rec.Explanation, &rec.Source, &ts); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = parseTime(ts)
		result = append(result, rec)
	}
	return result, rows.Err()
}

// ─── Feedback records ────────────────────────────────────────────────────────

func (s *sqliteStore) SaveFeedback(ctx context.Context, rec *FeedbackRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Metadata == "" {
		rec.Metadata = "{}"
	}
	result, err := s.db.ExecContext(ctx, `
        INSERT INTO feedback_records(event_id, rating, correction, metadata, created_at)
        VALUES(?,?,?,?,?)
    `, rec.EventID, rec.Rating, rec.Correction, rec.Metadata, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert feedback record: %w", err)
	}
	rec.ID, _ = result.LastInsertId()
	return nil
}

func (s *sqliteStore) ListFeedback(ctx context.Context, eventID string) ([]*FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id,event_id,rating,correction,metadata,created_at
        FROM feedback_records WHERE event_id = ?
        ORDER BY created_at ASC, id ASC
    `, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*FeedbackRecord
	for rows.Next() {
		rec := &FeedbackRecord{}
		var ts string
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Rating, &rec.Correction, &rec.Metadata, &ts); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = parseTime(ts)
		result = append(result, rec)
	}
	return result, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime handles multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		timeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
