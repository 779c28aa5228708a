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
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/quill-rag-server/internal/llm"
)

// mapEmbedder returns fixed vectors per text so distances are predictable.
type mapEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
}

func (e *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return nil, errors.New("no vector for " + text)
}

func (e *mapEmbedder) Dimensions() int   { return 2 }
func (e *mapEmbedder) ModelName() string { return "map" }

func newTestStore(t *testing.T, emb *mapEmbedder) *Store {
	t.Helper()
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	return NewStore(StoreConfig{
		Pipeline:   "test",
		Backend:    backend,
		Embedder:   emb,
		Dimensions: 2,
	})
}

func fruitEmbedder() *mapEmbedder {
	return &mapEmbedder{vectors: map[string][]float32{
		"apple":     {1, 0},
		"banana":    {0, 1},
		"apple pie": {0.9, 0.1},
		"diagonal":  {1, 1},
		"tilted":    {0.5, 1},
		"zero":      {0, 0},
		"wide":      {1, 0, 0},
	}}
}

func TestStore_InsertExistsCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, fruitEmbedder())

	ok, err := s.Exists(ctx, "apple")
	require.NoError(t, err)
	assert.False(t, ok)

	id1, err := s.Insert(ctx, "apple")
	require.NoError(t, err)
	id2, err := s.Insert(ctx, "banana")
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	ok, err = s.Exists(ctx, "apple")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "Apple")
	require.NoError(t, err)
	assert.False(t, ok, "exists is an exact match")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_DuplicateInsertAllowed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, fruitEmbedder())

	id1, err := s.Insert(ctx, "apple")
	require.NoError(t, err)
	id2, err := s.Insert(ctx, "apple")
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_InsertBlank(t *testing.T) {
	emb := fruitEmbedder()
	s := newTestStore(t, emb)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := s.Insert(context.Background(), text)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.ErrorIs(t, err, ErrBlankText)
	}
	assert.Zero(t, emb.calls, "blank text must not reach the embedder")
}

func TestStore_FindClosest_EmptyStore(t *testing.T) {
	s := newTestStore(t, fruitEmbedder())

	res, err := s.FindClosest(context.Background(), "apple", 0.85)
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestStore_FindClosest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, fruitEmbedder())

	_, err := s.Insert(ctx, "apple")
	require.NoError(t, err)
	_, err = s.Insert(ctx, "banana")
	require.NoError(t, err)

	res, err := s.FindClosest(ctx, "apple pie", 0.85)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "apple", res.Document.Text)
	assert.Less(t, res.Distance, 0.01)

	res, err = s.FindClosest(ctx, "apple", 0.85)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "apple", res.Document.Text)
	assert.InDelta(t, 0, res.Distance, 1e-6)
}

func TestStore_FindClosest_Threshold(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, fruitEmbedder())

	_, err := s.Insert(ctx, "banana")
	require.NoError(t, err)

	// "diagonal" is about 0.29 away from "banana".
	tests := []struct {
		threshold float64
		found     bool
	}{
		{0.01, false},
		{0.25, false},
		{0.3, true},
		{0.85, true},
		{2, true},
	}

	for _, tt := range tests {
		res, err := s.FindClosest(ctx, "diagonal", tt.threshold)
		require.NoError(t, err)
		assert.Equal(t, tt.found, res.Found, "threshold %v", tt.threshold)
	}

	// "apple" is orthogonal to "banana", distance 1.
	res, err := s.FindClosest(ctx, "apple", 0.85)
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestStore_FindClosest_ZeroVector(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, fruitEmbedder())

	_, err := s.Insert(ctx, "apple")
	require.NoError(t, err)

	for _, threshold := range []float64{0.1, 0.85, 2} {
		res, err := s.FindClosest(ctx, "zero", threshold)
		require.NoError(t, err)
		assert.False(t, res.Found, "threshold %v", threshold)
	}
}

func TestStore_FindClosest_MonotonicInThreshold(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	emb := fruitEmbedder()
	s := NewStore(StoreConfig{
		Pipeline:   "test",
		Backend:    backend,
		Embedder:   emb,
		Dimensions: 2,
		Candidates: 10,
	})

	// Distances from "apple": apple pie ~0.006, diagonal ~0.29,
	// tilted ~0.55, banana 1.
	for _, text := range []string{"banana", "tilted", "diagonal", "apple pie"} {
		_, err := s.Insert(ctx, text)
		require.NoError(t, err)
	}
	query, err := emb.Embed(ctx, "apple")
	require.NoError(t, err)

	thresholds := []float64{0.001, 0.01, 0.3, 0.6, 1.01, 2}
	wantHits := []int{0, 1, 2, 3, 4, 4}

	var (
		prevHits  map[int64]bool
		prevFound bool
		prevDist  float64
	)
	for i, threshold := range thresholds {
		matches, err := backend.Nearest(ctx, query, threshold, 10)
		require.NoError(t, err)
		assert.Len(t, matches, wantHits[i], "threshold %v", threshold)

		hits := make(map[int64]bool, len(matches))
		for _, m := range matches {
			assert.Less(t, m.Distance, threshold)
			hits[m.ID] = true
		}
		for id := range prevHits {
			assert.True(t, hits[id], "document %d lost at threshold %v", id, threshold)
		}
		prevHits = hits

		res, err := s.FindClosest(ctx, "apple", threshold)
		require.NoError(t, err)
		assert.Equal(t, len(matches) > 0, res.Found, "threshold %v", threshold)
		if prevFound {
			require.True(t, res.Found, "threshold %v", threshold)
			assert.LessOrEqual(t, res.Distance, prevDist)
		}
		if res.Found {
			assert.Equal(t, "apple pie", res.Document.Text)
			prevFound, prevDist = true, res.Distance
		}
	}
}

func TestStore_ConcurrentInsertAndFind(t *testing.T) {
	const writers = 50

	vectors := map[string][]float32{"query": {1, 0}}
	texts := make([]string, writers)
	for i := range texts {
		texts[i] = fmt.Sprintf("doc-%d", i)
		angle := float64(i) * math.Pi / (2 * writers)
		vectors[texts[i]] = []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
	}

	ctx := context.Background()
	s := newTestStore(t, &mapEmbedder{vectors: vectors})

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(text string) {
			defer wg.Done()
			_, err := s.Insert(ctx, text)
			assert.NoError(t, err)
		}(texts[i])
		go func(text string) {
			defer wg.Done()

			res, err := s.FindClosest(ctx, "query", 2)
			assert.NoError(t, err)
			if res.Found {
				ok, err := s.Exists(ctx, res.Document.Text)
				assert.NoError(t, err)
				assert.True(t, ok, "%s returned before it exists", res.Document.Text)
			}

			n, err := s.Count(ctx)
			assert.NoError(t, err)
			assert.LessOrEqual(t, n, writers)

			_, err = s.Exists(ctx, text)
			assert.NoError(t, err)
		}(texts[i])
	}
	wg.Wait()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers, n)

	for _, text := range texts {
		ok, err := s.Exists(ctx, text)
		require.NoError(t, err)
		assert.True(t, ok, text)
	}

	res, err := s.FindClosest(ctx, "query", 0.85)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "doc-0", res.Document.Text)
}

func TestStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, fruitEmbedder())

	_, err := s.Insert(ctx, "wide")
	var dimErr *llm.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Actual)

	_, err = s.FindClosest(ctx, "wide", 0.85)
	require.ErrorAs(t, err, &dimErr)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_EmbedFailure(t *testing.T) {
	s := newTestStore(t, fruitEmbedder())

	_, err := s.Insert(context.Background(), "unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed text")
}

func TestClosest(t *testing.T) {
	matches := []Match{
		{Document: Document{ID: 3, Text: "c"}, Distance: 0.4},
		{Document: Document{ID: 2, Text: "b"}, Distance: 0.2},
		{Document: Document{ID: 1, Text: "a"}, Distance: 0.2},
		{Document: Document{ID: 4, Text: "d"}, Distance: 0.9},
	}

	best, ok := closest(matches, 0.85)
	require.True(t, ok)
	assert.Equal(t, int64(1), best.ID)

	_, ok = closest(matches, 0.2)
	assert.False(t, ok, "distance must be strictly below the threshold")

	_, ok = closest([]Match{{Document: Document{ID: 5}, Distance: math.NaN()}}, 2)
	assert.False(t, ok, "NaN distance never matches")

	_, ok = closest(nil, 1)
	assert.False(t, ok)
}
