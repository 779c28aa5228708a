//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pgEdge/quill-rag-server/internal/documents"
	"github.com/pgEdge/quill-rag-server/internal/llm"
	"github.com/pgEdge/quill-rag-server/internal/pipeline"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// PipelinesResponse is the response for the list pipelines endpoint.
type PipelinesResponse struct {
	Pipelines []pipeline.Info `json:"pipelines"`
}

// DocumentsRequest adds one document (Text) or several (Documents).
type DocumentsRequest struct {
	Text         string   `json:"text,omitempty"`
	Documents    []string `json:"documents,omitempty"`
	SkipExisting bool     `json:"skip_existing"`
}

// DocumentResponse reports a single insert. ID is zero when the text was
// already stored and skip_existing was set.
type DocumentResponse struct {
	ID       int64 `json:"id,omitempty"`
	Inserted bool  `json:"inserted"`
}

// CountResponse is the response for the document count endpoint.
type CountResponse struct {
	Count int `json:"count"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth handles the GET /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// handleListPipelines handles the GET /pipelines endpoint.
func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines := s.pipelines.List()
	s.respondJSON(w, http.StatusOK, PipelinesResponse{Pipelines: pipelines})
}

// lookupPipeline resolves the {name} path value, writing the error
// response itself when the pipeline does not exist.
func (s *Server) lookupPipeline(w http.ResponseWriter, r *http.Request) (Pipeline, bool) {
	name := r.PathValue("name")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "pipeline name required")
		return nil, false
	}

	p, err := s.pipelines.Get(name)
	if err != nil {
		if errors.Is(err, pipeline.ErrPipelineNotFound) {
			s.respondError(w, http.StatusNotFound, "PIPELINE_NOT_FOUND",
				"pipeline not found: "+name)
			return nil, false
		}
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return nil, false
	}
	if p == nil {
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"pipeline is nil")
		return nil, false
	}

	return p, true
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"invalid request body: "+err.Error())
		return false
	}
	return true
}

// handlePipeline handles the POST /pipelines/{name} endpoint.
func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupPipeline(w, r)
	if !ok {
		return
	}

	var req pipeline.QueryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		s.respondExecutionError(w, r, err)
		return
	}

	// Handle streaming vs non-streaming
	if req.Stream {
		s.handleStreamingQuery(w, r, p, req)
		return
	}

	resp, err := p.Execute(r.Context(), req)
	if err != nil {
		s.respondExecutionError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleStreamingQuery handles a streaming RAG query using Server-Sent Events.
func (s *Server) handleStreamingQuery(w http.ResponseWriter, r *http.Request,
	p Pipeline, req pipeline.QueryRequest) {
	// Check if the response writer supports flushing
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "STREAMING_ERROR",
			"streaming not supported")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	chunkChan, errChan := p.ExecuteStream(r.Context(), req)

	var (
		finish   string
		grounded bool
	)

	// Stream chunks to client
	for {
		select {
		case chunk, ok := <-chunkChan:
			if !ok {
				if err := <-errChan; err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					s.logger.Error("streaming query failed",
						"request_id", RequestID(r.Context()),
						"error", err)
					s.sendSSE(w, flusher, pipeline.StreamEvent{
						Type:  "error",
						Error: err.Error(),
					})
					return
				}
				s.sendSSE(w, flusher, pipeline.StreamEvent{
					Type:         "done",
					FinishReason: finish,
					Grounded:     &grounded,
				})
				return
			}

			grounded = chunk.Grounded
			if chunk.FinishReason != "" {
				finish = chunk.FinishReason
			}
			if chunk.Content != "" {
				s.sendSSE(w, flusher, pipeline.StreamEvent{
					Type:    "chunk",
					Content: chunk.Content,
				})
			}

		case <-r.Context().Done():
			// Client disconnected
			s.logger.Debug("client disconnected during streaming",
				"request_id", RequestID(r.Context()))
			return
		}
	}
}

// handleAddDocuments handles POST /pipelines/{name}/documents.
func (s *Server) handleAddDocuments(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupPipeline(w, r)
	if !ok {
		return
	}

	var req DocumentsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	switch {
	case req.Text != "" && len(req.Documents) > 0:
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"send either text or documents, not both")

	case len(req.Documents) > 0:
		stats, err := p.LoadDocuments(r.Context(), req.Documents, req.SkipExisting)
		if err != nil {
			s.respondExecutionError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, stats)

	default:
		id, inserted, err := p.AddDocument(r.Context(), req.Text, req.SkipExisting)
		if err != nil {
			s.respondExecutionError(w, r, err)
			return
		}
		status := http.StatusOK
		if inserted {
			status = http.StatusCreated
		}
		s.respondJSON(w, status, DocumentResponse{ID: id, Inserted: inserted})
	}
}

// handleCountDocuments handles GET /pipelines/{name}/documents/count.
func (s *Server) handleCountDocuments(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupPipeline(w, r)
	if !ok {
		return
	}

	n, err := p.CountDocuments(r.Context())
	if err != nil {
		s.respondExecutionError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, CountResponse{Count: n})
}

// respondExecutionError maps pipeline, store and provider errors to HTTP
// responses.
func (s *Server) respondExecutionError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr  *pipeline.RequestError
		docErr  *documents.ValidationError
		dimErr  *llm.DimensionMismatchError
		provErr *llm.ProviderError
	)

	switch {
	case errors.As(err, &reqErr), errors.As(err, &docErr):
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	case errors.Is(err, context.Canceled):
		s.logger.Debug("request cancelled", "request_id", RequestID(r.Context()))
		return
	}

	s.logger.Error("pipeline execution failed",
		"request_id", RequestID(r.Context()),
		"pipeline", r.PathValue("name"),
		"error", err)

	switch {
	case errors.As(err, &dimErr):
		s.respondError(w, http.StatusInternalServerError, "CONFIGURATION_ERROR", err.Error())
	case errors.As(err, &provErr) && provErr.Retryable():
		s.respondError(w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", err.Error())
	case errors.As(err, &provErr):
		s.respondError(w, http.StatusBadGateway, "PROVIDER_ERROR", err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, "EXECUTION_ERROR", err.Error())
	}
}

// sendSSE sends a Server-Sent Event.
func (s *Server) sendSSE(w http.ResponseWriter, flusher http.Flusher, event pipeline.StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal SSE event", "error", err)
		return
	}

	// SSE format: data: {json}\n\n
	if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		s.logger.Error("failed to write SSE event", "error", err)
		return
	}
	flusher.Flush()
}

// respondJSON sends a JSON response with RFC 8631 Link header for API discovery.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	// RFC 8631: Link header for API documentation discovery
	w.Header().Set("Link", `</v1/openapi.json>; rel="service-desc"`)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondError sends an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
