package context

// Package context implements the ContextBuilder capability.

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/zoneguard/zoneguard-ai/internal/memory/vector"
)

// contextBuilderImpl is the concrete implementation of ContextBuilder.
type contextBuilderImpl struct {
	store    vector.VectorStore
	topK     int
	maxChars int
}

// NewContextBuilder creates a ContextBuilder backed by the memory store.
// maxChars <= 0 disables pruning.
func NewContextBuilder(store vector.VectorStore, topK, maxChars int) ContextBuilder {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &contextBuilderImpl{store: store, topK: topK, maxChars: maxChars}
}

func (b *contextBuilderImpl) BuildContext(ctx context.Context, eventID string) ([]string, error) {
	if b.store == nil {
		return nil, nil
	}
	docs, err := b.store.Query(ctx, eventID, b.topK)
	if err != nil {
		return nil, fmt.Errorf("query memory for %s: %w", eventID, err)
	}
	entries := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Text != "" {
			entries = append(entries, d.Text)
		}
	}
	if b.maxChars > 0 {
		entries, _ = b.PruneContext(entries, b.maxChars)
	}
	return entries, nil
}

func (b *contextBuilderImpl) PruneContext(entries []string, maxChars int) ([]string, int) {
	total := 0
	for i, e := range entries {
		total += utf8.RuneCountInString(e)
		if total > maxChars {
			return entries[:i], len(entries) - i
		}
	}
	return entries, 0
}

func (b *contextBuilderImpl) GetContextMetadata(ctx context.Context) (map[string]interface{}, error) {
	meta := map[string]interface{}{
		"top_k":     b.topK,
		"max_chars": b.maxChars,
	}
	if b.store == nil {
		meta["backend"] = "none"
		return meta, nil
	}
	stats, err := b.store.GetStats(ctx)
	if err != nil {
		return meta, err
	}
	meta["backend"] = stats.Backend
	meta["semantic_search"] = stats.SemanticSearch
	return meta, nil
}
