//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/quill-rag-server/internal/llm"
)

func vectorJSON(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "0.5"
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func newEmbeddingProvider(t *testing.T, handler http.HandlerFunc, opts ...EmbeddingOption) *EmbeddingProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]EmbeddingOption{
		WithEmbeddingClient(NewClient(WithBaseURL(server.URL))),
	}, opts...)
	return NewEmbeddingProvider(opts...)
}

func TestEmbeddingProvider_Embed(t *testing.T) {
	provider := newEmbeddingProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mxbai-embed-large", req.Model)
		assert.Equal(t, "What is a horcrux?", req.Input)

		_, _ = fmt.Fprintf(w, `{"model":"mxbai-embed-large","embeddings":[%s]}`, vectorJSON(1024))
	})

	embedding, err := provider.Embed(context.Background(), "What is a horcrux?")
	require.NoError(t, err)
	assert.Len(t, embedding, 1024)
	assert.InDelta(t, 0.5, embedding[0], 1e-6)
}

func TestEmbeddingProvider_UsesFirstVector(t *testing.T) {
	provider := newEmbeddingProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"embeddings":[[1,2,3],[4,5,6]]}`)
	}, WithDimensions(3))

	embedding, err := provider.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, embedding)
}

func TestEmbeddingProvider_DimensionMismatch(t *testing.T) {
	provider := newEmbeddingProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, `{"embeddings":[%s]}`, vectorJSON(512))
	}, WithDimensions(1024))

	_, err := provider.Embed(context.Background(), "x")

	var dm *llm.DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 1024, dm.Expected)
	assert.Equal(t, 512, dm.Actual)
}

func TestEmbeddingProvider_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"model not loaded"}`, llm.ErrCodeHTTPStatus},
		{"not found", http.StatusNotFound, `model "x" not found`, llm.ErrCodeHTTPStatus},
		{"malformed body", http.StatusOK, `{"embeddings":`, llm.ErrCodeMalformedResponse},
		{"no vectors", http.StatusOK, `{"embeddings":[]}`, llm.ErrCodeEmptyEmbedding},
		{"empty vector", http.StatusOK, `{"embeddings":[[]]}`, llm.ErrCodeEmptyEmbedding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newEmbeddingProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			})

			_, err := provider.Embed(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, llm.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestEmbeddingProvider_ErrorMessage(t *testing.T) {
	provider := newEmbeddingProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = fmt.Fprint(w, `{"error":"model not loaded"}`)
	})

	_, err := provider.Embed(context.Background(), "x")

	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "model not loaded", pe.Message)
	assert.True(t, pe.Retryable())
}

func TestEmbeddingProvider_Cancelled(t *testing.T) {
	provider := newEmbeddingProvider(t, func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Embed(ctx, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, llm.IsRetryable(err))
}
