//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package openai provides a client for OpenAI and for local servers that
// speak the same chat completions protocol.
package openai

import (
	"encoding/json"
	"net/http"

	"github.com/pgEdge/quill-rag-server/internal/llm"
)

const (
	providerName          = "openai"
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultChatModel      = "gpt-4o-mini"
)

// Client is an OpenAI API client.
type Client struct {
	*llm.Transport
}

// NewClient creates a new OpenAI client. The API key may be empty for
// local servers that do not authenticate.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	t := llm.NewTransport(providerName, defaultBaseURL)
	if apiKey != "" {
		t.SetHeaders = func(h http.Header) {
			h.Set("Authorization", "Bearer "+apiKey)
		}
	}
	t.ErrorMessage = errorMessage

	c := &Client{Transport: t}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.SetBaseURL(url) }
}

// WithTimeout sets the HTTP timeout in seconds.
func WithTimeout(seconds int) ClientOption {
	return func(c *Client) { c.SetTimeout(seconds) }
}

// errorMessage reads {"error":{"message":...,"type":...,"code":...}}.
func errorMessage(body []byte) string {
	var resp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &resp) != nil {
		return ""
	}
	return resp.Error.Message
}
