//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package voyage provides a Voyage AI embedding client.
package voyage

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pgEdge/quill-rag-server/internal/llm"
)

const (
	providerName   = "voyage"
	defaultBaseURL = "https://api.voyageai.com/v1"
	defaultModel   = "voyage-3"
)

// EmbeddingProvider implements the llm.EmbeddingProvider interface.
type EmbeddingProvider struct {
	transport  *llm.Transport
	model      string
	dimensions int
}

// NewEmbeddingProvider creates a new Voyage embedding provider.
func NewEmbeddingProvider(apiKey string, opts ...EmbeddingOption) *EmbeddingProvider {
	t := llm.NewTransport(providerName, defaultBaseURL)
	t.SetHeaders = func(h http.Header) {
		h.Set("Authorization", "Bearer "+apiKey)
	}
	t.ErrorMessage = errorMessage

	p := &EmbeddingProvider{
		transport:  t,
		model:      defaultModel,
		dimensions: 1024, // voyage-3
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EmbeddingOption configures the embedding provider.
type EmbeddingOption func(*EmbeddingProvider)

// WithModel sets the embedding model.
func WithModel(model string) EmbeddingOption {
	return func(p *EmbeddingProvider) {
		p.model = model
	}
}

// WithDimensions sets the expected embedding dimensions.
func WithDimensions(dims int) EmbeddingOption {
	return func(p *EmbeddingProvider) {
		p.dimensions = dims
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) EmbeddingOption {
	return func(p *EmbeddingProvider) { p.transport.SetBaseURL(url) }
}

// WithTimeout sets the HTTP timeout in seconds.
func WithTimeout(seconds int) EmbeddingOption {
	return func(p *EmbeddingProvider) { p.transport.SetTimeout(seconds) }
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// errorMessage reads {"detail": "..."}.
func errorMessage(body []byte) string {
	var resp struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &resp) != nil {
		return ""
	}
	return resp.Detail
}

// Embed generates an embedding for a single text.
func (p *EmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.transport.Post(ctx, "/embeddings", embeddingRequest{
		Model: p.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var embResp embeddingResponse
	if err := p.transport.DecodeJSON(resp, &embResp); err != nil {
		return nil, err
	}

	for _, d := range embResp.Data {
		if d.Index == 0 && len(d.Embedding) > 0 {
			if err := llm.CheckDimensions(p.model, p.dimensions, d.Embedding); err != nil {
				return nil, err
			}
			return d.Embedding, nil
		}
	}

	return nil, &llm.ProviderError{
		Provider: providerName,
		Code:     llm.ErrCodeEmptyEmbedding,
		Message:  "no embedding returned",
	}
}

// Dimensions returns the dimensionality of embeddings.
func (p *EmbeddingProvider) Dimensions() int {
	return p.dimensions
}

// ModelName returns the model name.
func (p *EmbeddingProvider) ModelName() string {
	return p.model
}

// Ensure EmbeddingProvider implements the interface.
var _ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)
