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
	"bufio"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pgEdge/quill-rag-server/internal/llm"
)

// CompletionProvider implements the llm.CompletionProvider interface.
type CompletionProvider struct {
	client      *Client
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// NewCompletionProvider creates a new Ollama completion provider.
func NewCompletionProvider(opts ...CompletionOption) *CompletionProvider {
	p := &CompletionProvider{
		client:      NewClient(),
		model:       defaultChatModel,
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

// WithMaxTokens sets the default number of tokens to predict.
func WithMaxTokens(tokens int) CompletionOption {
	return func(p *CompletionProvider) {
		p.maxTokens = tokens
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

// chatMessage represents a message in Ollama's chat format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request format for the chat API.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

// chatOptions contains generation options.
type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// chatResponse is the response format from the chat API.
type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func (r *chatResponse) usage() *llm.TokenUsage {
	return &llm.TokenUsage{
		PromptTokens:     r.PromptEvalCount,
		CompletionTokens: r.EvalCount,
		TotalTokens:      r.PromptEvalCount + r.EvalCount,
	}
}

func (r *chatResponse) finishReason() string {
	if r.DoneReason != "" {
		return r.DoneReason
	}
	return "stop"
}

// Complete generates a non-streaming completion.
func (p *CompletionProvider) Complete(
	ctx context.Context,
	req llm.CompletionRequest,
) (*llm.CompletionResponse, error) {
	resp, err := p.client.Post(ctx, "/api/chat", p.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var chatResp chatResponse
	if err := p.client.DecodeJSON(resp, &chatResp); err != nil {
		return nil, err
	}
	if chatResp.Message.Content == "" {
		return nil, llm.NewEmptyCompletionError(providerName)
	}

	return &llm.CompletionResponse{
		Content:      chatResp.Message.Content,
		FinishReason: chatResp.finishReason(),
		Usage:        *chatResp.usage(),
	}, nil
}

// CompleteStream generates a streaming completion. Ollama streams one JSON
// object per line; lines that fail to decode are logged and skipped.
func (p *CompletionProvider) CompleteStream(
	ctx context.Context,
	req llm.CompletionRequest,
) (<-chan llm.StreamChunk, <-chan error) {
	chunkChan := make(chan llm.StreamChunk)
	errChan := make(chan error, 1)

	go func() {
		defer close(chunkChan)
		defer close(errChan)

		resp, err := p.client.Post(ctx, "/api/chat", p.buildRequest(req, true))
		if err != nil {
			errChan <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				llm.SkipChunk(p.logger, providerName, line, err)
				continue
			}
			if chunk.Error != "" {
				errChan <- &llm.ProviderError{
					Provider: providerName,
					Code:     llm.ErrCodeHTTPStatus,
					Message:  chunk.Error,
				}
				return
			}

			out := llm.StreamChunk{Content: chunk.Message.Content}
			if chunk.Done {
				out.FinishReason = chunk.finishReason()
				out.Usage = chunk.usage()
			}
			if out.Content == "" && !chunk.Done {
				continue
			}

			if !llm.SendChunk(ctx, chunkChan, out) {
				errChan <- ctx.Err()
				return
			}
			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			errChan <- llm.NewRequestError(providerName, err)
		}
	}()

	return chunkChan, errChan
}

func (p *CompletionProvider) buildRequest(req llm.CompletionRequest, stream bool) chatRequest {
	temperature := p.temperature
	if req.Temperature >= 0 {
		temperature = req.Temperature
	}

	numPredict := p.maxTokens
	if req.MaxTokens > 0 {
		numPredict = req.MaxTokens
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	return chatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   stream,
		Options: &chatOptions{
			Temperature: temperature,
			NumPredict:  numPredict,
		},
	}
}

// ModelName returns the model name.
func (p *CompletionProvider) ModelName() string {
	return p.model
}

// Ensure CompletionProvider implements the interface.
var _ llm.CompletionProvider = (*CompletionProvider)(nil)
