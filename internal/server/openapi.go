//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"net/http"
)

// OpenAPISpec represents the OpenAPI v3 specification.
type OpenAPISpec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       OpenAPIInfo            `json:"info"`
	Servers    []OpenAPIServer        `json:"servers"`
	Paths      map[string]OpenAPIPath `json:"paths"`
	Components OpenAPIComponents      `json:"components"`
}

// OpenAPIInfo contains API metadata.
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// OpenAPIServer describes a server.
type OpenAPIServer struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// OpenAPIPath contains operations for a path.
type OpenAPIPath struct {
	Get    *OpenAPIOperation `json:"get,omitempty"`
	Post   *OpenAPIOperation `json:"post,omitempty"`
}

// OpenAPIOperation describes an API operation.
type OpenAPIOperation struct {
	Summary     string                     `json:"summary"`
	Description string                     `json:"description,omitempty"`
	OperationID string                     `json:"operationId"`
	Tags        []string                   `json:"tags,omitempty"`
	Parameters  []OpenAPIParameter         `json:"parameters,omitempty"`
	RequestBody *OpenAPIRequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]OpenAPIResponse `json:"responses"`
}

// OpenAPIParameter describes a parameter.
type OpenAPIParameter struct {
	Name        string        `json:"name"`
	In          string        `json:"in"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required"`
	Schema      OpenAPISchema `json:"schema"`
}

// OpenAPIRequestBody describes a request body.
type OpenAPIRequestBody struct {
	Description string                      `json:"description,omitempty"`
	Required    bool                        `json:"required"`
	Content     map[string]OpenAPIMediaType `json:"content"`
}

// OpenAPIResponse describes a response.
type OpenAPIResponse struct {
	Description string                      `json:"description"`
	Content     map[string]OpenAPIMediaType `json:"content,omitempty"`
}

// OpenAPIMediaType describes a media type.
type OpenAPIMediaType struct {
	Schema OpenAPISchema `json:"schema"`
}

// OpenAPISchema describes a schema.
type OpenAPISchema struct {
	Type        string                   `json:"type,omitempty"`
	Format      string                   `json:"format,omitempty"`
	Description string                   `json:"description,omitempty"`
	Properties  map[string]OpenAPISchema `json:"properties,omitempty"`
	Items       *OpenAPISchema           `json:"items,omitempty"`
	Required    []string                 `json:"required,omitempty"`
	Default     any                      `json:"default,omitempty"`
	Enum        []string                 `json:"enum,omitempty"`
	Minimum     *float64                 `json:"minimum,omitempty"`
	Maximum     *float64                 `json:"maximum,omitempty"`
	Ref         string                   `json:"$ref,omitempty"`
}

// OpenAPIComponents contains reusable components.
type OpenAPIComponents struct {
	Schemas map[string]OpenAPISchema `json:"schemas"`
}

// handleOpenAPI handles the GET /v1/openapi.json endpoint.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	spec := BuildOpenAPISpec()
	s.respondJSON(w, http.StatusOK, spec)
}

func jsonContent(schema string) map[string]OpenAPIMediaType {
	return map[string]OpenAPIMediaType{
		"application/json": {
			Schema: OpenAPISchema{Ref: "#/components/schemas/" + schema},
		},
	}
}

func jsonResponse(description, schema string) OpenAPIResponse {
	return OpenAPIResponse{Description: description, Content: jsonContent(schema)}
}

func errorResponse(description string) OpenAPIResponse {
	return jsonResponse(description, "ErrorResponse")
}

func bound(v float64) *float64 { return &v }

var pipelineNameParam = OpenAPIParameter{
	Name:        "name",
	In:          "path",
	Description: "Pipeline name",
	Required:    true,
	Schema:      OpenAPISchema{Type: "string"},
}

// BuildOpenAPISpec constructs the OpenAPI v3 specification.
// This is exported so it can be used to generate static documentation.
func BuildOpenAPISpec() OpenAPISpec {
	return OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPIInfo{
			Title: "Quill RAG Server API",
			Description: "REST API for asking grounded questions of RAG pipelines " +
				"and managing their reference documents",
			Version: "1.0.0",
		},
		Servers: []OpenAPIServer{
			{
				URL:         "/v1",
				Description: "API v1",
			},
		},
		Paths: map[string]OpenAPIPath{
			"/health": {
				Get: &OpenAPIOperation{
					Summary:     "Health check",
					Description: "Check if the server is running and healthy",
					OperationID: "getHealth",
					Tags:        []string{"System"},
					Responses: map[string]OpenAPIResponse{
						"200": jsonResponse("Server is healthy", "HealthResponse"),
					},
				},
			},
			"/pipelines": {
				Get: &OpenAPIOperation{
					Summary:     "List pipelines",
					Description: "Get a list of all available RAG pipelines",
					OperationID: "listPipelines",
					Tags:        []string{"Pipelines"},
					Responses: map[string]OpenAPIResponse{
						"200": jsonResponse("List of pipelines", "PipelinesResponse"),
					},
				},
			},
			"/pipelines/{name}": {
				Post: &OpenAPIOperation{
					Summary: "Query pipeline",
					Description: "Find the closest reference document and answer from it. " +
						"When no document is close enough the fixed refusal text is " +
						"returned with grounded=false and no model is called.",
					OperationID: "queryPipeline",
					Tags:        []string{"Pipelines"},
					Parameters:  []OpenAPIParameter{pipelineNameParam},
					RequestBody: &OpenAPIRequestBody{
						Description: "Query request",
						Required:    true,
						Content:     jsonContent("QueryRequest"),
					},
					Responses: map[string]OpenAPIResponse{
						"200": {
							Description: "Query response",
							Content: map[string]OpenAPIMediaType{
								"application/json": {
									Schema: OpenAPISchema{
										Ref: "#/components/schemas/QueryResponse",
									},
								},
								"text/event-stream": {
									Schema: OpenAPISchema{
										Type:        "string",
										Description: "Server-Sent Events stream of StreamEvent objects",
									},
								},
							},
						},
						"400": errorResponse("Invalid request"),
						"404": errorResponse("Pipeline not found"),
						"500": errorResponse("Server or configuration error"),
						"502": errorResponse("Embedding or generation provider failed"),
						"503": errorResponse("Provider temporarily unavailable, retry later"),
					},
				},
			},
			"/pipelines/{name}/documents": {
				Post: &OpenAPIOperation{
					Summary:     "Add documents",
					Description: "Embed and store one document (text) or several (documents)",
					OperationID: "addDocuments",
					Tags:        []string{"Documents"},
					Parameters:  []OpenAPIParameter{pipelineNameParam},
					RequestBody: &OpenAPIRequestBody{
						Required: true,
						Content:  jsonContent("DocumentsRequest"),
					},
					Responses: map[string]OpenAPIResponse{
						"200": jsonResponse("Documents loaded, or text already stored", "LoadStats"),
						"201": jsonResponse("Document stored", "DocumentResponse"),
						"400": errorResponse("Blank or invalid document"),
						"404": errorResponse("Pipeline not found"),
						"502": errorResponse("Embedding provider failed"),
					},
				},
			},
			"/pipelines/{name}/documents/count": {
				Get: &OpenAPIOperation{
					Summary:     "Count documents",
					OperationID: "countDocuments",
					Tags:        []string{"Documents"},
					Parameters:  []OpenAPIParameter{pipelineNameParam},
					Responses: map[string]OpenAPIResponse{
						"200": jsonResponse("Number of stored documents", "CountResponse"),
						"404": errorResponse("Pipeline not found"),
					},
				},
			},
		},
		Components: OpenAPIComponents{
			Schemas: map[string]OpenAPISchema{
				"HealthResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"status": {Type: "string", Description: "Health status"},
					},
					Required: []string{"status"},
				},
				"PipelinesResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"pipelines": {
							Type:        "array",
							Description: "List of available pipelines",
							Items:       &OpenAPISchema{Ref: "#/components/schemas/PipelineInfo"},
						},
					},
					Required: []string{"pipelines"},
				},
				"PipelineInfo": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"name":             {Type: "string", Description: "Pipeline name"},
						"description":      {Type: "string", Description: "Pipeline description"},
						"store":            {Type: "string", Description: "Document store type (postgres or memory)"},
						"embedding_model":  {Type: "string"},
						"generation_model": {Type: "string"},
					},
					Required: []string{"name"},
				},
				"Message": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"role": {
							Type:        "string",
							Description: "Message role",
							Enum:        []string{"user", "assistant"},
						},
						"content": {Type: "string", Description: "Message content"},
					},
					Required: []string{"role", "content"},
				},
				"QueryRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"query": {Type: "string", Description: "The user's message"},
						"stream": {
							Type:        "boolean",
							Description: "Enable streaming response (SSE)",
							Default:     false,
						},
						"messages": {
							Type:        "array",
							Description: "Previous conversation turns; takes precedence over history",
							Items:       &OpenAPISchema{Ref: "#/components/schemas/Message"},
						},
						"history": {
							Type: "string",
							Description: "Previous conversation as a transcript with one " +
								"\"User:\" or \"<assistant name>:\" line per turn",
						},
						"threshold": {
							Type:        "number",
							Format:      "double",
							Description: "Maximum cosine distance (exclusive), default from the pipeline",
							Minimum:     bound(0),
							Maximum:     bound(2),
						},
					},
					Required: []string{"query"},
				},
				"QueryResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"answer":      {Type: "string", Description: "The generated answer or the refusal text"},
						"grounded":    {Type: "boolean", Description: "Whether a reference document was used"},
						"document_id": {Type: "integer", Format: "int64"},
						"distance":    {Type: "number", Format: "double", Description: "Cosine distance of the document"},
						"tokens_used": {Type: "integer", Description: "Total tokens consumed"},
					},
					Required: []string{"answer", "grounded", "tokens_used"},
				},
				"StreamEvent": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"type":          {Type: "string", Enum: []string{"chunk", "done", "error"}},
						"content":       {Type: "string"},
						"finish_reason": {Type: "string", Description: "Set on done; no_match for a refusal"},
						"grounded":      {Type: "boolean"},
						"error":         {Type: "string"},
					},
					Required: []string{"type"},
				},
				"DocumentsRequest": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"text": {Type: "string", Description: "A single document"},
						"documents": {
							Type:  "array",
							Items: &OpenAPISchema{Type: "string"},
						},
						"skip_existing": {
							Type:        "boolean",
							Description: "Do not store text that is already present",
							Default:     false,
						},
					},
				},
				"DocumentResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"id":       {Type: "integer", Format: "int64"},
						"inserted": {Type: "boolean"},
					},
					Required: []string{"inserted"},
				},
				"LoadStats": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"inserted": {Type: "integer"},
						"skipped":  {Type: "integer"},
					},
					Required: []string{"inserted", "skipped"},
				},
				"CountResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"count": {Type: "integer"},
					},
					Required: []string{"count"},
				},
				"ErrorResponse": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"error": {Ref: "#/components/schemas/ErrorDetail"},
					},
					Required: []string{"error"},
				},
				"ErrorDetail": {
					Type: "object",
					Properties: map[string]OpenAPISchema{
						"code":    {Type: "string", Description: "Error code"},
						"message": {Type: "string", Description: "Error message"},
					},
					Required: []string{"code", "message"},
				},
			},
		},
	}
}
