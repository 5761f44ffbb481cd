package vector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// inMemoryVectorStore is the graceful-degradation implementation.
// Retrieval is by exact key only.
type inMemoryVectorStore struct {
	mu    sync.RWMutex
	items map[string]Document
}

// NewVectorStore creates a new in-memory store.
func NewVectorStore() VectorStore {
	return &inMemoryVectorStore{items: make(map[string]Document)}
}

// New opens the configured backend. If the sqlite backend cannot be opened,
// it logs a warning and degrades to the in-memory store.
func New(backend, path string, logger *zap.Logger) VectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch backend {
	case BackendSQLite:
		s, err := NewSQLiteVectorStore(path)
		if err != nil {
			logger.Warn("memory store unavailable, using in-process map",
				zap.String("path", path), zap.Error(err))
			return NewVectorStore()
		}
		return s
	case "", BackendMemory:
		return NewVectorStore()
	default:
		logger.Warn("unknown memory backend, using in-process map", zap.String("backend", backend))
		return NewVectorStore()
	}
}

func (s *inMemoryVectorStore) Upsert(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("upsert: empty document id")
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[doc.ID] = doc
	return nil
}

func (s *inMemoryVectorStore) Query(ctx context.Context, key string, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		return nil, nil
	}
	doc, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	doc.Score = 1
	return []Document{doc}, nil
}

// IsAvailable always returns true for in-memory implementation.
func (s *inMemoryVectorStore) IsAvailable(ctx context.Context) (bool, error) {
	return true, nil
}

func (s *inMemoryVectorStore) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Backend: "in_memory_exact", TotalItems: len(s.items)}, nil
}

func (s *inMemoryVectorStore) Close() error { return nil }
