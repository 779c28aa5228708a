//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package llm

import (
	"context"
	"log/slog"

	"github.com/pgEdge/quill-rag-server/internal/metrics"
)

const maxLoggedPayload = 256

// SkipChunk records a stream payload that could not be decoded. The
// stream carries on with the next payload.
func SkipChunk(logger *slog.Logger, provider string, payload []byte, err error) {
	metrics.StreamChunksSkipped.WithLabelValues(provider).Inc()
	if logger == nil {
		logger = slog.Default()
	}
	if len(payload) > maxLoggedPayload {
		payload = payload[:maxLoggedPayload]
	}
	logger.Warn("skipping malformed stream chunk",
		"provider", provider,
		"error", err,
		"payload", string(payload),
	)
}

// SendChunk delivers chunk unless ctx is cancelled first. It reports
// whether the chunk was delivered.
func SendChunk(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// SendError delivers err on errCh unless ctx is cancelled first.
func SendError(ctx context.Context, errCh chan<- error, err error) {
	select {
	case errCh <- err:
	case <-ctx.Done():
	}
}
