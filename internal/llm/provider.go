//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package llm provides interfaces and implementations for LLM providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// EmbeddingProvider generates vector embeddings from text.
type EmbeddingProvider interface {
	// Embed generates an embedding vector for the given text. The
	// returned vector always has Dimensions() components.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of embeddings produced.
	Dimensions() int

	// ModelName returns the name of the model being used.
	ModelName() string
}

// CompletionProvider generates text completions using an LLM.
type CompletionProvider interface {
	// Complete generates a completion for the given messages.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteStream generates a streaming completion.
	// The returned channel will receive response chunks until completion,
	// then be closed. Errors are returned via the error channel.
	CompleteStream(
		ctx context.Context,
		req CompletionRequest,
	) (<-chan StreamChunk, <-chan error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// Role identifies the author of a chat message.
type Role string

// Chat roles understood by every provider.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry of an assembled prompt.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest represents a request to an LLM for completion.
type CompletionRequest struct {
	// Messages is the assembled prompt, system message first.
	Messages []Message

	// MaxTokens is the maximum number of tokens to generate.
	// If 0, uses the provider's default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0+ = creative).
	// If negative, uses the provider's default.
	Temperature float64
}

// CompletionResponse represents a non-streaming completion response.
type CompletionResponse struct {
	Content      string
	FinishReason string
	Usage        TokenUsage
}

// StreamChunk represents a chunk of a streaming response.
type StreamChunk struct {
	Content      string
	FinishReason string // Empty until the final chunk
	Usage        *TokenUsage
}

// TokenUsage represents token consumption for a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Error codes carried by ProviderError.
const (
	ErrCodeRequestFailed     = "request_failed"
	ErrCodeHTTPStatus        = "http_status"
	ErrCodeMalformedResponse = "malformed_response"
	ErrCodeEmptyCompletion   = "empty_completion"
	ErrCodeEmptyEmbedding    = "empty_embedding"
)

// ProviderError reports a failed call to an embedding or completion
// service.
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Provider + ": " + e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same call may succeed if repeated later.
// The providers never retry on their own.
func (e *ProviderError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.Code == ErrCodeRequestFailed:
		return !errors.Is(e.Err, context.Canceled)
	}
	return false
}

// NewRequestError wraps a transport failure.
func NewRequestError(provider string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Code:     ErrCodeRequestFailed,
		Message:  "request failed",
		Err:      err,
	}
}

// NewStatusError reports a non-success HTTP status.
func NewStatusError(provider string, status int, message string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       ErrCodeHTTPStatus,
		Message:    message,
		StatusCode: status,
	}
}

// NewEmptyCompletionError reports a successful response that carried no
// completion text.
func NewEmptyCompletionError(provider string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Code:     ErrCodeEmptyCompletion,
		Message:  "response contained no completion",
	}
}

// NewMalformedError reports a response body that could not be decoded.
func NewMalformedError(provider string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Code:     ErrCodeMalformedResponse,
		Message:  "malformed response",
		Err:      err,
	}
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// HasCode reports whether err is a ProviderError with the given code.
func HasCode(err error, code string) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == code
}

// DimensionMismatchError is returned when an embedding does not have the
// size the store was created with.
type DimensionMismatchError struct {
	Model    string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding model %q returned %d dimensions, expected %d",
		e.Model, e.Actual, e.Expected)
}

// CheckDimensions verifies that an embedding has the expected size.
func CheckDimensions(model string, expected int, embedding []float32) error {
	if len(embedding) != expected {
		return &DimensionMismatchError{
			Model:    model,
			Expected: expected,
			Actual:   len(embedding),
		}
	}
	return nil
}
