//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package ollama provides an Ollama API client for local LLM inference.
package ollama

import (
	"encoding/json"

	"github.com/pgEdge/quill-rag-server/internal/llm"
)

const (
	providerName          = "ollama"
	defaultBaseURL        = "http://localhost:11434"
	defaultEmbeddingModel = "mxbai-embed-large"
	defaultChatModel      = "gemma3"
)

// Client is an Ollama API client. Ollama does not authenticate.
type Client struct {
	*llm.Transport
}

// NewClient creates a new Ollama client.
func NewClient(opts ...ClientOption) *Client {
	t := llm.NewTransport(providerName, defaultBaseURL)
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

// WithTimeout sets the HTTP timeout in seconds. Large local models can
// take minutes to load, so none is set by default.
func WithTimeout(seconds int) ClientOption {
	return func(c *Client) { c.SetTimeout(seconds) }
}

// errorMessage reads {"error": "..."}.
func errorMessage(body []byte) string {
	var resp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &resp) != nil {
		return ""
	}
	return resp.Error
}
