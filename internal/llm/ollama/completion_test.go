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

func newCompletionProvider(t *testing.T, handler http.HandlerFunc) *CompletionProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewCompletionProvider(
		WithCompletionClient(NewClient(WithBaseURL(server.URL))),
		WithMaxTokens(256),
	)
}

func TestCompletionProvider_Complete(t *testing.T) {
	provider := newCompletionProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "gemma3", req.Model)
		require.NotNil(t, req.Options)
		assert.Equal(t, 256, req.Options.NumPredict)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_, _ = fmt.Fprint(w, `{"message":{"role":"assistant","content":"Hello"},"done":true,`+
			`"done_reason":"stop","prompt_eval_count":3,"eval_count":2}`)
	})

	resp, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "sys"},
			{Role: llm.RoleUser, Content: "Hi"},
		},
		Temperature: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestCompletionProvider_Complete_Empty(t *testing.T) {
	provider := newCompletionProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	})

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{})
	assert.True(t, llm.HasCode(err, llm.ErrCodeEmptyCompletion))
}

func TestCompletionProvider_CompleteStream(t *testing.T) {
	lines := []string{
		`{"message":{"role":"assistant","content":""},"done":false}`,
		`{"message":{"role":"assistant","content":"Hel"},"done":false}`,
		`not json`,
		``,
		`{"message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":1,"eval_count":2}`,
		`{"message":{"role":"assistant","content":"late"},"done":false}`,
	}
	provider := newCompletionProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		_, _ = fmt.Fprint(w, strings.Join(lines, "\n"))
	})

	chunks, errs := provider.CompleteStream(context.Background(), llm.CompletionRequest{})

	var text strings.Builder
	var last llm.StreamChunk
	for chunk := range chunks {
		text.WriteString(chunk.Content)
		last = chunk
	}
	require.NoError(t, <-errs)
	assert.Equal(t, "Hello", text.String())
	assert.Equal(t, "stop", last.FinishReason)
	require.NotNil(t, last.Usage)
	assert.Equal(t, 3, last.Usage.TotalTokens)
}

func TestCompletionProvider_CompleteStream_ErrorLine(t *testing.T) {
	provider := newCompletionProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"error":"out of memory"}`+"\n")
	})

	chunks, errs := provider.CompleteStream(context.Background(), llm.CompletionRequest{})
	for range chunks {
	}

	var pe *llm.ProviderError
	require.ErrorAs(t, <-errs, &pe)
	assert.Equal(t, "out of memory", pe.Message)
}
