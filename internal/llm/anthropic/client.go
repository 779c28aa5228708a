//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package anthropic provides an Anthropic API client.
package anthropic

import (
	"encoding/json"
	"net/http"

	"github.com/pgEdge/quill-rag-server/internal/llm"
)

const (
	providerName   = "anthropic"
	defaultBaseURL = "https://api.anthropic.com/v1"
	defaultModel   = "claude-sonnet-4-20250514"
	apiVersion     = "2023-06-01"
)

// Client is an Anthropic API client.
type Client struct {
	*llm.Transport
}

// NewClient creates a new Anthropic client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	t := llm.NewTransport(providerName, defaultBaseURL)
	t.SetHeaders = func(h http.Header) {
		h.Set("x-api-key", apiKey)
		h.Set("anthropic-version", apiVersion)
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

// errorMessage reads {"type":"error","error":{"type":...,"message":...}}.
func errorMessage(body []byte) string {
	var resp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &resp) != nil {
		return ""
	}
	return resp.Error.Message
}
