//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/pgEdge/quill-rag-server/internal/llm"
	"github.com/pgEdge/quill-rag-server/internal/llm/sse"
)

// CompletionProvider implements the llm.CompletionProvider interface.
type CompletionProvider struct {
	client      *Client
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// NewCompletionProvider creates a new OpenAI completion provider.
func NewCompletionProvider(apiKey string, opts ...CompletionOption) *CompletionProvider {
	p := &CompletionProvider{
		client:      NewClient(apiKey),
		model:       defaultChatModel,
		maxTokens:   3000,
		temperature: 0.7,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CompletionOption configures the completion provider.
type CompletionOption func(*CompletionProvider)

// WithCompletionModel sets the chat model.
func WithCompletionModel(model string) CompletionOption {
	return func(p *CompletionProvider) {
		p.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(tokens int) CompletionOption {
	return func(p *CompletionProvider) {
		p.maxTokens = tokens
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(temp float64) CompletionOption {
	return func(p *CompletionProvider) {
		p.temperature = temp
	}
}

// WithCompletionClient sets a custom client.
func WithCompletionClient(client *Client) CompletionOption {
	return func(p *CompletionProvider) {
		p.client = client
	}
}

// WithLogger sets the logger used for stream diagnostics.
func WithLogger(logger *slog.Logger) CompletionOption {
	return func(p *CompletionProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *usage) toLLM() llm.TokenUsage {
	return llm.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

type chatChoice struct {
	Message struct {
		Content *string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   usage        `json:"usage"`
}

type streamChoice struct {
	Delta *struct {
		Content *string `json:"content"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type streamChunk struct {
	Choices []streamChoice `json:"choices"`
	Usage   *usage         `json:"usage,omitempty"`
}

// Complete generates a non-streaming completion. A response without a
// choice or without content fails with an empty_completion ProviderError.
func (p *CompletionProvider) Complete(
	ctx context.Context,
	req llm.CompletionRequest,
) (*llm.CompletionResponse, error) {
	resp, err := p.client.Post(ctx, "/chat/completions",
		p.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var chatResp chatResponse
	if err := p.client.DecodeJSON(resp, &chatResp); err != nil {
		return nil, err
	}

	if len(chatResp.Choices) == 0 {
		return nil, llm.NewEmptyCompletionError(providerName)
	}
	choice := chatResp.Choices[0]
	if choice.Message.Content == nil || *choice.Message.Content == "" {
		return nil, llm.NewEmptyCompletionError(providerName)
	}

	return &llm.CompletionResponse{
		Content:      *choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        chatResp.Usage.toLLM(),
	}, nil
}

// CompleteStream generates a streaming completion. Only chunks carrying
// text are delivered; chunks that fail to decode are logged and skipped.
func (p *CompletionProvider) CompleteStream(
	ctx context.Context,
	req llm.CompletionRequest,
) (<-chan llm.StreamChunk, <-chan error) {
	chunkChan := make(chan llm.StreamChunk)
	errChan := make(chan error, 1)

	go func() {
		defer close(chunkChan)
		defer close(errChan)

		resp, err := p.client.Post(ctx, "/chat/completions",
			p.buildRequest(req, true))
		if err != nil {
			errChan <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		decoder := sse.NewDecoder(resp.Body)
		for {
			payload, err := decoder.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				errChan <- llm.NewRequestError(providerName, err)
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal(payload, &chunk); err != nil {
				llm.SkipChunk(p.logger, providerName, payload, err)
				continue
			}

			out, ok := chunk.toLLM()
			if !ok {
				continue
			}
			if !llm.SendChunk(ctx, chunkChan, out) {
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return chunkChan, errChan
}

// toLLM converts a decoded chunk. It reports false when the chunk has no
// text to deliver.
func (c *streamChunk) toLLM() (llm.StreamChunk, bool) {
	if len(c.Choices) == 0 {
		return llm.StreamChunk{}, false
	}
	choice := c.Choices[0]
	if choice.Delta == nil || choice.Delta.Content == nil || *choice.Delta.Content == "" {
		return llm.StreamChunk{}, false
	}

	out := llm.StreamChunk{Content: *choice.Delta.Content}
	if choice.FinishReason != nil {
		out.FinishReason = *choice.FinishReason
	}
	if c.Usage != nil {
		u := c.Usage.toLLM()
		out.Usage = &u
	}
	return out, true
}

func (p *CompletionProvider) buildRequest(req llm.CompletionRequest, stream bool) chatRequest {
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	temperature := p.temperature
	if req.Temperature >= 0 {
		temperature = req.Temperature
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	return chatRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}
}

// ModelName returns the model name.
func (p *CompletionProvider) ModelName() string {
	return p.model
}

// Ensure CompletionProvider implements the interface.
var _ llm.CompletionProvider = (*CompletionProvider)(nil)
