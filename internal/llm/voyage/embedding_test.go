//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package voyage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/quill-rag-server/internal/llm"
)

func TestEmbeddingProvider_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer voyage-key", r.Header.Get("Authorization"))
		_, _ = fmt.Fprint(w, `{"data":[{"embedding":[0.25,0.5],"index":0}]}`)
	}))
	defer server.Close()

	provider := NewEmbeddingProvider("voyage-key",
		WithBaseURL(server.URL), WithDimensions(2), WithModel("voyage-3-lite"))

	embedding, err := provider.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.5}, embedding)
	assert.Equal(t, "voyage-3-lite", provider.ModelName())
}

func TestEmbeddingProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "detail message",
			status: http.StatusBadRequest,
			body:   `{"detail":"input too long"}`,
			check: func(t *testing.T, err error) {
				var pe *llm.ProviderError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, "input too long", pe.Message)
			},
		},
		{
			name:   "wrong size",
			status: http.StatusOK,
			body:   `{"data":[{"embedding":[0.1],"index":0}]}`,
			check: func(t *testing.T, err error) {
				var dm *llm.DimensionMismatchError
				assert.ErrorAs(t, err, &dm)
			},
		},
		{
			name:   "no data",
			status: http.StatusOK,
			body:   `{"data":[]}`,
			check: func(t *testing.T, err error) {
				assert.True(t, llm.HasCode(err, llm.ErrCodeEmptyEmbedding))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			provider := NewEmbeddingProvider("k", WithBaseURL(server.URL), WithDimensions(2))
			_, err := provider.Embed(context.Background(), "text")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
