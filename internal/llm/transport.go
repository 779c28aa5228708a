//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 * 1024

// Transport posts JSON requests to a provider's HTTP API. Every failure
// it returns is a *ProviderError except request encoding errors.
type Transport struct {
	Provider string
	BaseURL  string

	// SetHeaders adds authentication and version headers.
	SetHeaders func(h http.Header)

	// ErrorMessage extracts the message from an error body, returning ""
	// when the body is not in the provider's error format.
	ErrorMessage func(body []byte) string

	client http.Client
}

// NewTransport returns a transport without a timeout; streaming calls
// are bounded by their context.
func NewTransport(provider, baseURL string) *Transport {
	return &Transport{
		Provider: provider,
		BaseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// SetBaseURL replaces the API root.
func (t *Transport) SetBaseURL(url string) {
	t.BaseURL = strings.TrimRight(url, "/")
}

// SetTimeout bounds each whole request, including reading a stream.
// Zero or less means no limit.
func (t *Transport) SetTimeout(seconds int) {
	if seconds <= 0 {
		t.client.Timeout = 0
		return
	}
	t.client.Timeout = time.Duration(seconds) * time.Second
}

// Timeout reports the configured request timeout.
func (t *Transport) Timeout() time.Duration {
	return t.client.Timeout
}

// Post sends body as JSON to path. A non-2xx response is closed and
// returned as a status error; otherwise the caller owns resp.Body.
func (t *Transport) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+path,
		bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.SetHeaders != nil {
		t.SetHeaders(req.Header)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, NewRequestError(t.Provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, t.statusError(resp)
	}
	return resp, nil
}

func (t *Transport) statusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return NewStatusError(t.Provider, resp.StatusCode, "failed to read error body")
	}

	if t.ErrorMessage != nil {
		if msg := t.ErrorMessage(body); msg != "" {
			return NewStatusError(t.Provider, resp.StatusCode, msg)
		}
	}
	return NewStatusError(t.Provider, resp.StatusCode, strings.TrimSpace(string(body)))
}

// DecodeJSON decodes a successful response body, reporting failures as
// malformed responses.
func (t *Transport) DecodeJSON(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return NewMalformedError(t.Provider, err)
	}
	return nil
}
