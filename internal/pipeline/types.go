//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline provides the RAG pipeline execution and management.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/pgEdge/quill-rag-server/internal/conversation"
)

// Fixed answers returned without, or instead of, model output.
const (
	RefusalMessage  = "Sorry, I couldn't find a relevant match for your message."
	FallbackMessage = "No response from model."
)

// FinishNoMatch is the finish reason of the single chunk streamed when no
// document matched the query.
const FinishNoMatch = "no_match"

// Info contains basic pipeline information for listing.
type Info struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Store           string `json:"store"`
	EmbeddingModel  string `json:"embedding_model"`
	GenerationModel string `json:"generation_model"`
}

// QueryRequest represents a RAG query request. History may be given as
// structured Messages or as a flat marker transcript; Messages wins when
// both are present.
type QueryRequest struct {
	Query     string              `json:"query"`
	Messages  []conversation.Turn `json:"messages,omitempty"`
	History   string              `json:"history,omitempty"`
	Threshold float64             `json:"threshold,omitempty"` // cosine distance, 0 for the pipeline default
	Stream    bool                `json:"stream"`
}

// RequestError reports a query that cannot be executed as given.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return "invalid request: " + e.Message
}

// Validate checks the request fields that do not depend on the pipeline.
func (r QueryRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return &RequestError{Message: "query is required"}
	}
	if r.Threshold < 0 || r.Threshold > 2 {
		return &RequestError{Message: "threshold must be between 0 and 2"}
	}
	for i, m := range r.Messages {
		if !m.Role.Valid() {
			return &RequestError{
				Message: fmt.Sprintf("messages[%d]: role must be 'user' or 'assistant'", i),
			}
		}
	}
	return nil
}

// QueryResponse represents a non-streaming RAG query response.
type QueryResponse struct {
	Answer string `json:"answer"`

	// Grounded is false when no document cleared the threshold and Answer
	// is the refusal message.
	Grounded   bool    `json:"grounded"`
	DocumentID int64   `json:"document_id,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
	TokensUsed int     `json:"tokens_used"`
}

// StreamEvent represents a streaming response event.
type StreamEvent struct {
	Type         string `json:"type"`              // "chunk", "done", "error"
	Content      string `json:"content,omitempty"` // For "chunk" type
	FinishReason string `json:"finish_reason,omitempty"`
	Grounded     *bool  `json:"grounded,omitempty"` // For "done" type
	Error        string `json:"error,omitempty"`    // For "error" type
}

// StreamChunk represents a chunk of streaming response from the orchestrator.
type StreamChunk struct {
	Content      string `json:"content,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Grounded     bool   `json:"grounded"`
}
