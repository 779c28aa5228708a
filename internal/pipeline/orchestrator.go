//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pgEdge/quill-rag-server/internal/config"
	"github.com/pgEdge/quill-rag-server/internal/conversation"
	"github.com/pgEdge/quill-rag-server/internal/documents"
	"github.com/pgEdge/quill-rag-server/internal/llm"
	"github.com/pgEdge/quill-rag-server/internal/metrics"
	"github.com/pgEdge/quill-rag-server/internal/prompt"
)

// Retriever finds the stored document closest to a query.
type Retriever interface {
	FindClosest(ctx context.Context, query string, threshold float64) (documents.Result, error)
}

// Orchestrator coordinates the RAG pipeline execution.
type Orchestrator struct {
	name           string
	retriever      Retriever
	completionProv llm.CompletionProvider
	prompts        *prompt.Builder
	markers        conversation.Markers
	threshold      float64
	historyPairs   int
	logger         *slog.Logger
}

// OrchestratorConfig contains the configuration for creating an orchestrator.
type OrchestratorConfig struct {
	Name           string
	Retriever      Retriever
	CompletionProv llm.CompletionProvider
	Prompts        *prompt.Builder
	Markers        conversation.Markers
	Threshold      float64
	HistoryPairs   int
	Logger         *slog.Logger
}

// NewOrchestrator creates a new RAG pipeline orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prompts := cfg.Prompts
	if prompts == nil {
		prompts = prompt.NewBuilder("", nil)
	}
	markers := cfg.Markers
	if markers.User == "" || markers.Assistant == "" {
		markers = conversation.DefaultMarkers()
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = config.DefaultThreshold
	}

	return &Orchestrator{
		name:           cfg.Name,
		retriever:      cfg.Retriever,
		completionProv: cfg.CompletionProv,
		prompts:        prompts,
		markers:        markers,
		threshold:      threshold,
		historyPairs:   cfg.HistoryPairs,
		logger:         logger,
	}
}

// EnrichedQuery prefixes message with a summary of the most recent turns
// so retrieval leans toward the current topic.
func EnrichedQuery(turns []conversation.Turn, historyPairs int, message string) string {
	summary := conversation.SummarizeTurns(turns, historyPairs)
	if summary == "" {
		return message
	}
	return summary + "\n" + message
}

// Retrieve finds the grounding document for message. A threshold of zero
// or less selects the pipeline default.
func (o *Orchestrator) Retrieve(
	ctx context.Context,
	message string,
	turns []conversation.Turn,
	threshold float64,
) (documents.Result, error) {
	if threshold <= 0 {
		threshold = o.threshold
	}

	query := EnrichedQuery(turns, o.historyPairs, message)
	res, err := o.retriever.FindClosest(ctx, query, threshold)
	if err != nil {
		return documents.Result{}, fmt.Errorf("retrieval failed: %w", err)
	}

	o.logger.Debug("retrieval complete",
		"found", res.Found,
		"distance", res.Distance,
		"threshold", threshold,
	)
	return res, nil
}

// turns resolves the request history into turns.
func (o *Orchestrator) turns(req QueryRequest) []conversation.Turn {
	if len(req.Messages) > 0 {
		return req.Messages
	}
	if req.History == "" {
		return nil
	}

	parsed := conversation.ParseTranscript(req.History, o.markers)
	if parsed.Dropped > 0 {
		metrics.TranscriptLinesDropped.Add(float64(parsed.Dropped))
		o.logger.Debug("transcript lines without a role marker dropped",
			"count", parsed.Dropped,
		)
	}
	return parsed.Turns
}

// prepare runs retrieval and, when a document matched, assembles the
// completion request.
func (o *Orchestrator) prepare(
	ctx context.Context,
	req QueryRequest,
) (documents.Result, *llm.CompletionRequest, error) {
	if err := req.Validate(); err != nil {
		return documents.Result{}, nil, err
	}

	turns := o.turns(req)

	res, err := o.Retrieve(ctx, req.Query, turns, req.Threshold)
	if err != nil || !res.Found {
		return res, nil, err
	}

	persona := o.prompts.Build(req.Query)
	return res, &llm.CompletionRequest{
		Messages:    prompt.Assemble(res.Document.Text, turns, req.Query, persona),
		Temperature: -1,
	}, nil
}

// Execute runs the full RAG pipeline for a query.
func (o *Orchestrator) Execute(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	o.logger.Debug("executing RAG pipeline",
		"query_length", len(req.Query),
		"history_turns", len(req.Messages),
	)

	res, completionReq, err := o.prepare(ctx, req)
	if err != nil {
		o.recordFailure(err)
		return nil, err
	}

	if !res.Found {
		o.record(metrics.OutcomeRefused)
		return &QueryResponse{Answer: RefusalMessage}, nil
	}

	resp := &QueryResponse{
		Grounded:   true,
		DocumentID: res.Document.ID,
		Distance:   res.Distance,
	}

	completion, err := o.completionProv.Complete(ctx, *completionReq)
	switch {
	case llm.HasCode(err, llm.ErrCodeEmptyCompletion):
		o.recordProviderError(err)
		resp.Answer = FallbackMessage
		o.record(metrics.OutcomeFallback)
		return resp, nil
	case err != nil:
		o.recordFailure(err)
		return nil, fmt.Errorf("failed to generate completion: %w", err)
	}

	resp.TokensUsed = completion.Usage.TotalTokens
	resp.Answer = completion.Content
	if resp.Answer == "" {
		resp.Answer = FallbackMessage
		o.record(metrics.OutcomeFallback)
		return resp, nil
	}

	o.record(metrics.OutcomeMatched)
	return resp, nil
}

// ExecuteStream runs the RAG pipeline and returns a streaming response.
// When no document matches, the refusal is sent as a single chunk and the
// generation backend is not called.
func (o *Orchestrator) ExecuteStream(
	ctx context.Context,
	req QueryRequest,
) (<-chan StreamChunk, <-chan error) {
	chunkChan := make(chan StreamChunk)
	errChan := make(chan error, 1)

	go func() {
		defer close(chunkChan)
		defer close(errChan)

		res, completionReq, err := o.prepare(ctx, req)
		if err != nil {
			o.recordFailure(err)
			errChan <- err
			return
		}

		if !res.Found {
			o.record(metrics.OutcomeRefused)
			if !send(ctx, chunkChan, StreamChunk{
				Content:      RefusalMessage,
				FinishReason: FinishNoMatch,
			}) {
				errChan <- ctx.Err()
			}
			return
		}

		llmChunkChan, llmErrChan := o.completionProv.CompleteStream(ctx, *completionReq)

		produced := false
		finish := ""
		for chunk := range llmChunkChan {
			if chunk.FinishReason != "" {
				finish = chunk.FinishReason
			}
			if chunk.Content == "" {
				continue
			}
			produced = true
			if !send(ctx, chunkChan, StreamChunk{Content: chunk.Content, Grounded: true}) {
				errChan <- ctx.Err()
				return
			}
		}

		err = <-llmErrChan
		switch {
		case err != nil && !llm.HasCode(err, llm.ErrCodeEmptyCompletion):
			o.recordFailure(err)
			errChan <- err
			return
		case !produced:
			if err != nil {
				o.recordProviderError(err)
			}
			o.record(metrics.OutcomeFallback)
			if !send(ctx, chunkChan, StreamChunk{Content: FallbackMessage, Grounded: true}) {
				errChan <- ctx.Err()
				return
			}
		default:
			o.record(metrics.OutcomeMatched)
		}

		if finish == "" {
			finish = "stop"
		}
		if !send(ctx, chunkChan, StreamChunk{FinishReason: finish, Grounded: true}) {
			errChan <- ctx.Err()
		}
	}()

	return chunkChan, errChan
}

func send(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) record(outcome string) {
	metrics.QueriesTotal.WithLabelValues(o.name, outcome).Inc()
}

func (o *Orchestrator) recordFailure(err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) || errors.Is(err, context.Canceled) {
		return
	}
	o.recordProviderError(err)
	o.record(metrics.OutcomeError)
	o.logger.Error("query failed", "error", err)
}

func (o *Orchestrator) recordProviderError(err error) {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		metrics.ProviderErrors.WithLabelValues(pe.Provider, pe.Code).Inc()
	}
}
