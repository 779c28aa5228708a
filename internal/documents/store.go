//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package documents stores reference documents with their embeddings and
// finds the closest one to a query under a distance threshold.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pgEdge/quill-rag-server/internal/llm"
	"github.com/pgEdge/quill-rag-server/internal/metrics"
)

// ErrBlankText is wrapped by ValidationError when a document has no
// non-whitespace content.
var ErrBlankText = errors.New("document text is blank")

// ValidationError reports a document rejected before it reached the
// backend.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid document: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Document is a stored reference text.
type Document struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// Match is a backend candidate with its cosine distance to the query.
type Match struct {
	Document
	Distance float64
}

// Result is the outcome of FindClosest. Found is false when no stored
// document is closer than the threshold.
type Result struct {
	Document Document
	Distance float64
	Found    bool
}

// Backend persists documents and answers nearest-neighbour queries using
// cosine distance (0 for identical vectors).
type Backend interface {
	Insert(ctx context.Context, text string, embedding []float32) (int64, error)
	Exists(ctx context.Context, text string) (bool, error)
	Count(ctx context.Context) (int, error)

	// Nearest returns at most limit documents whose distance is strictly
	// below threshold, closest first.
	Nearest(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Match, error)
}

// StoreConfig configures a Store.
type StoreConfig struct {
	Pipeline   string
	Backend    Backend
	Embedder   llm.EmbeddingProvider
	Dimensions int
	Candidates int
	Logger     *slog.Logger
}

// Store embeds text and delegates persistence to a Backend. Every vector
// is checked against the configured dimensions before it is used.
type Store struct {
	pipeline   string
	backend    Backend
	embedder   llm.EmbeddingProvider
	dimensions int
	candidates int
	logger     *slog.Logger
}

// NewStore creates a Store.
func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	candidates := cfg.Candidates
	if candidates <= 0 {
		candidates = 3
	}
	return &Store{
		pipeline:   cfg.Pipeline,
		backend:    cfg.Backend,
		embedder:   cfg.Embedder,
		dimensions: cfg.Dimensions,
		candidates: candidates,
		logger:     logger,
	}
}

// Dimensions returns the vector size documents are stored with.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Insert embeds and stores text, returning the new identifier. Duplicate
// text is stored again; callers wanting uniqueness check Exists first.
func (s *Store) Insert(ctx context.Context, text string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, &ValidationError{Err: ErrBlankText}
	}

	emb, err := s.embed(ctx, text)
	if err != nil {
		return 0, err
	}

	id, err := s.backend.Insert(ctx, text, emb)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}

	metrics.DocumentsInserted.WithLabelValues(s.pipeline).Inc()
	s.logger.Debug("document inserted", "id", id, "length", len(text))

	return id, nil
}

// Exists reports whether a document with exactly this text is stored.
func (s *Store) Exists(ctx context.Context, text string) (bool, error) {
	ok, err := s.backend.Exists(ctx, text)
	if err != nil {
		return false, fmt.Errorf("failed to check document: %w", err)
	}
	return ok, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.backend.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// FindClosest embeds query and returns the stored document nearest to it,
// provided its distance is strictly below threshold. An empty store yields
// a result with Found set to false.
func (s *Store) FindClosest(ctx context.Context, query string, threshold float64) (Result, error) {
	emb, err := s.embed(ctx, query)
	if err != nil {
		return Result{}, err
	}

	matches, err := s.backend.Nearest(ctx, emb, threshold, s.candidates)
	if err != nil {
		return Result{}, fmt.Errorf("failed to search documents: %w", err)
	}

	best, ok := closest(matches, threshold)
	if !ok {
		return Result{}, nil
	}

	metrics.MatchDistance.WithLabelValues(s.pipeline).Observe(best.Distance)
	return Result{Document: best.Document, Distance: best.Distance, Found: true}, nil
}

// closest picks the smallest distance under threshold. Backends already
// order their candidates, but ties and filtering are settled here so every
// backend behaves alike.
func closest(matches []Match, threshold float64) (Match, bool) {
	var (
		best  Match
		found bool
	)
	for _, m := range matches {
		// NaN distances never pass
		if !(m.Distance < threshold) {
			continue
		}
		if !found || m.Distance < best.Distance ||
			(m.Distance == best.Distance && m.ID < best.ID) {
			best = m
			found = true
		}
	}
	return best, found
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if err := llm.CheckDimensions(s.embedder.ModelName(), s.dimensions, emb); err != nil {
		return nil, err
	}
	return emb, nil
}
