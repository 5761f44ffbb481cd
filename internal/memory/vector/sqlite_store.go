package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

const memorySchema = `
CREATE TABLE IF NOT EXISTS memory_documents (
    id          TEXT PRIMARY KEY,
    text        TEXT NOT NULL,
    metadata    TEXT NOT NULL DEFAULT '{}',
    updated_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_updated_at ON memory_documents(updated_at DESC);
`

// sqliteVectorStore persists documents in SQLite and ranks them in process.
type sqliteVectorStore struct {
	db *sql.DB
}

// NewSQLiteVectorStore opens (or creates) a memory database at path.
// Pass ":memory:" for an ephemeral store.
func NewSQLiteVectorStore(path string) (VectorStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(memorySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create memory schema: %w", err)
	}
	return &sqliteVectorStore{db: db}, nil
}

func (s *sqliteVectorStore) Upsert(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("upsert: empty document id")
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO memory_documents(id, text, metadata, updated_at)
        VALUES(?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            text       = excluded.text,
            metadata   = excluded.metadata,
            updated_at = excluded.updated_at
    `, doc.ID, doc.Text, string(meta), doc.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *sqliteVectorStore) Query(ctx context.Context, key string, limit int) ([]Document, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, metadata, updated_at FROM memory_documents`)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}
	defer rows.Close()

	queryVec := termFrequencies(key)
	var matches []Document
	for rows.Next() {
		var doc Document
		var meta, updated string
		if err := rows.Scan(&doc.ID, &doc.Text, &meta, &updated); err != nil {
			return nil, err
		}
		if meta != "" && meta != "null" {
			_ = json.Unmarshal([]byte(meta), &doc.Metadata)
		}
		doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

		if doc.ID == key {
			doc.Score = math.Inf(1)
		} else {
			doc.Score = cosine(queryVec, termFrequencies(doc.ID+" "+doc.Text))
		}
		if doc.Score > 0 {
			matches = append(matches, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	for i := range matches {
		if math.IsInf(matches[i].Score, 1) {
			matches[i].Score = 1
		}
	}
	return matches, nil
}

func (s *sqliteVectorStore) IsAvailable(ctx context.Context) (bool, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteVectorStore) GetStats(ctx context.Context) (Stats, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_documents`).Scan(&n); err != nil {
		return Stats{}, err
	}
	return Stats{Backend: "sqlite_tf_cosine", TotalItems: n, SemanticSearch: true}, nil
}

func (s *sqliteVectorStore) Close() error { return s.db.Close() }

// ─── Helpers ──────────────────────────────────────────────────────────────────

// termFrequencies lower-cases text and counts alphanumeric terms.
func termFrequencies(text string) map[string]float64 {
	terms := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tf := make(map[string]float64, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	return tf
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for t, va := range a {
		na += va * va
		if vb, ok := b[t]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		nb += vb * vb
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
