//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package documents

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
)

const memoryCollection = "documents"

// MemoryBackend keeps documents in an in-process chromem-go collection.
// Vectors are always supplied by the Store, so the collection never
// embeds anything itself. Reads hold mu shared so an insert becomes
// visible to Exists, Count and Nearest together.
type MemoryBackend struct {
	mu         sync.RWMutex
	collection *chromem.Collection
	nextID     int64
	texts      map[string]int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() (*MemoryBackend, error) {
	db := chromem.NewDB()
	coll, err := db.CreateCollection(memoryCollection, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &MemoryBackend{
		collection: coll,
		texts:      make(map[string]int),
	}, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("memory backend requires precomputed embeddings")
}

// Insert stores text under the next identifier.
func (b *MemoryBackend) Insert(ctx context.Context, text string, embedding []float32) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID + 1
	doc := chromem.Document{
		ID:        strconv.FormatInt(id, 10),
		Content:   text,
		Embedding: append([]float32(nil), embedding...),
	}
	if err := b.collection.AddDocument(ctx, doc); err != nil {
		return 0, fmt.Errorf("adding document: %w", err)
	}

	b.nextID = id
	b.texts[text]++
	return id, nil
}

// Exists reports whether text was inserted before.
func (b *MemoryBackend) Exists(_ context.Context, text string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.texts[text] > 0, nil
}

// Count returns the number of stored documents.
func (b *MemoryBackend) Count(context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.collection.Count(), nil
}

// Nearest queries the collection by vector. chromem reports cosine
// similarity, which is converted to distance as 1 - similarity.
func (b *MemoryBackend) Nearest(
	ctx context.Context,
	embedding []float32,
	threshold float64,
	limit int,
) ([]Match, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// chromem requires nResults <= document count
	n := b.collection.Count()
	if n == 0 || limit <= 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}

	results, err := b.collection.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		dist := 1 - float64(r.Similarity)
		if !(dist < threshold) {
			continue
		}
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid document id %q: %w", r.ID, err)
		}
		matches = append(matches, Match{
			Document: Document{ID: id, Text: r.Content},
			Distance: dist,
		})
	}
	return matches, nil
}
