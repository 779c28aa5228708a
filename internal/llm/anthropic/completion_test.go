//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package anthropic

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

func newTestProvider(t *testing.T, handler http.HandlerFunc) *CompletionProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-api-key", WithBaseURL(server.URL))
	return NewCompletionProvider("test-api-key", WithCompletionClient(client))
}

func TestBuildRequest(t *testing.T) {
	provider := NewCompletionProvider("test-api-key")

	tests := []struct {
		name         string
		messages     []llm.Message
		expectSystem string
		expectRoles  []string
	}{
		{
			name: "system message is lifted",
			messages: []llm.Message{
				{Role: llm.RoleSystem, Content: "You are Quill."},
				{Role: llm.RoleUser, Content: "Hello"},
			},
			expectSystem: "You are Quill.",
			expectRoles:  []string{"user"},
		},
		{
			name: "history keeps order",
			messages: []llm.Message{
				{Role: llm.RoleSystem, Content: "sys"},
				{Role: llm.RoleUser, Content: "Hi"},
				{Role: llm.RoleAssistant, Content: "Hello"},
				{Role: llm.RoleUser, Content: "Bye"},
			},
			expectSystem: "sys",
			expectRoles:  []string{"user", "assistant", "user"},
		},
		{
			name: "consecutive user turns merge",
			messages: []llm.Message{
				{Role: llm.RoleSystem, Content: "sys"},
				{Role: llm.RoleUser, Content: "Bye"},
				{Role: llm.RoleUser, Content: "Thanks"},
			},
			expectSystem: "sys",
			expectRoles:  []string{"user"},
		},
		{
			name:        "no system message",
			messages:    []llm.Message{{Role: llm.RoleUser, Content: "Hello"}},
			expectRoles: []string{"user"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := provider.buildRequest(llm.CompletionRequest{Messages: tt.messages, Temperature: -1}, false)
			assert.Equal(t, tt.expectSystem, req.System)

			roles := make([]string, 0, len(req.Messages))
			for _, m := range req.Messages {
				roles = append(roles, m.Role)
			}
			assert.Equal(t, tt.expectRoles, roles)
			assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		})
	}
}

func TestBuildRequest_MergedContent(t *testing.T) {
	provider := NewCompletionProvider("test-api-key")
	req := provider.buildRequest(llm.CompletionRequest{Messages: []llm.Message{
		{Role: llm.RoleUser, Content: "Bye"},
		{Role: llm.RoleUser, Content: "Thanks"},
	}}, true)

	require.Len(t, req.Messages, 1)
	assert.Equal(t, "Bye\n\nThanks", req.Messages[0].Content)
	assert.True(t, req.Stream)
}

func TestComplete(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Persona", req.System)

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"content":[{"type":"text","text":"Hi "},{"type":"text","text":"there"}],`+
			`"stop_reason":"end_turn","usage":{"input_tokens":4,"output_tokens":2}}`)
	})

	resp, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "Persona"},
			{Role: llm.RoleUser, Content: "Hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Content)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 6, resp.Usage.TotalTokens)
}

func TestComplete_Empty(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"content":[]}`)
	})

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{})
	assert.True(t, llm.HasCode(err, llm.ErrCodeEmptyCompletion))
}

func TestComplete_HTTPError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(529)
		_, _ = fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	})

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{})

	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Overloaded", pe.Message)
	assert.True(t, pe.Retryable())
}

func TestCompleteStream(t *testing.T) {
	events := []string{
		"event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":7}}}\n\n",
		"event: content_block_start\ndata: {\"type\":\"content_block_start\"}\n\n",
		"event: ping\ndata: {\"type\":\"ping\"}\n\n",
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hel\"}}\n\n",
		"data: {oops\n\n",
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n",
		"event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":3}}\n\n",
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
	}
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, strings.Join(events, ""))
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
	assert.Equal(t, "end_turn", last.FinishReason)
	require.NotNil(t, last.Usage)
	assert.Equal(t, 10, last.Usage.TotalTokens)
}

func TestCompleteStream_ErrorEvent(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	})

	chunks, errs := provider.CompleteStream(context.Background(), llm.CompletionRequest{})
	for range chunks {
	}

	var pe *llm.ProviderError
	require.ErrorAs(t, <-errs, &pe)
	assert.Equal(t, "Overloaded", pe.Message)
}
