//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration loading and validation for the
// Quill RAG server.
package config

// Store types.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Default values applied when a pipeline leaves a field unset.
const (
	DefaultThreshold     = 0.85
	DefaultHistoryPairs  = 3
	DefaultCandidates    = 3
	DefaultTable         = "rag_documents"
	DefaultIDColumn      = "id"
	DefaultTextColumn    = "doc"
	DefaultVectorColumn  = "embedding"
	DefaultAssistantName = "Quill"
)

// Config is the root configuration structure for the server.
type Config struct {
	Server    ServerConfig  `yaml:"server"`
	APIKeys   APIKeysConfig `yaml:"api_keys"`
	Defaults  Defaults      `yaml:"defaults"`
	Pipelines []Pipeline    `yaml:"pipelines"`
}

// APIKeysConfig contains paths to files containing API keys for LLM providers.
// If not specified, keys are loaded from environment variables or default
// file locations (~/.anthropic-api-key, ~/.openai-api-key, ~/.voyage-api-key).
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"` // Path to file containing Anthropic API key
	OpenAI    string `yaml:"openai"`    // Path to file containing OpenAI API key
	Voyage    string `yaml:"voyage"`    // Path to file containing Voyage API key
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddress string     `yaml:"listen_address"`
	Port          int        `yaml:"port"`
	LogLevel      string     `yaml:"log_level"`
	TLS           TLSConfig  `yaml:"tls"`
	CORS          CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Origins to allow, or ["*"] for all
}

// TLSConfig contains TLS/HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Defaults contains default values that can be overridden per-pipeline.
type Defaults struct {
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	APIKeys    APIKeysConfig    `yaml:"api_keys"`
}

// Pipeline defines one assistant: a document store, the embedding and
// generation backends, and the persona used to answer.
type Pipeline struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Store       StoreConfig      `yaml:"store"`
	Embedding   EmbeddingConfig  `yaml:"embedding"`
	Generation  GenerationConfig `yaml:"generation"`
	Retrieval   RetrievalConfig  `yaml:"retrieval"`
	Prompt      PromptConfig     `yaml:"prompt"`
	APIKeys     APIKeysConfig    `yaml:"api_keys"` // Pipeline-specific API key paths
}

// StoreConfig selects where a pipeline's documents live.
type StoreConfig struct {
	Type     string         `yaml:"type"` // "postgres" (default) or "memory"
	Database DatabaseConfig `yaml:"database"`

	// Table layout, defaulting to rag_documents(id, doc, embedding).
	Table        string `yaml:"table"`
	IDColumn     string `yaml:"id_column"`
	TextColumn   string `yaml:"text_column"`
	VectorColumn string `yaml:"vector_column"`

	// Seed lists files loaded into a memory store at startup.
	Seed []string `yaml:"seed"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	// Certificate-based authentication
	SSLCert   string `yaml:"ssl_cert"`
	SSLKey    string `yaml:"ssl_key"`
	SSLRootCA string `yaml:"ssl_root_ca"`
}

// EmbeddingConfig contains settings for the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
	Timeout    int    `yaml:"timeout"` // seconds, 0 for none
}

// GenerationConfig contains settings for the completion provider.
type GenerationConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	Timeout     int      `yaml:"timeout"` // seconds, 0 for none
}

// RetrievalConfig controls the similarity gate and the history window used
// to enrich retrieval queries.
type RetrievalConfig struct {
	Threshold    float64 `yaml:"threshold"`     // cosine distance, exclusive
	HistoryPairs int     `yaml:"history_pairs"` // user/assistant pairs kept in the summary
	Candidates   int     `yaml:"candidates"`    // rows fetched from the index
}

// PromptConfig describes the persona sent as the system message.
type PromptConfig struct {
	// AssistantName is the transcript marker for assistant turns, e.g.
	// "Quill" for lines starting with "Quill:".
	AssistantName string `yaml:"assistant_name"`

	// SystemPrompt is the persona text. A {context} placeholder is replaced
	// by the matched document.
	SystemPrompt string `yaml:"system_prompt"`

	// TemplatesDir holds keyword-triggered fragments. When set, the base
	// persona is read from BaseTemplate inside it.
	TemplatesDir string       `yaml:"templates_dir"`
	BaseTemplate string       `yaml:"base_template"`
	Rules        []PromptRule `yaml:"rules"`
}

// PromptRule adds or substitutes a persona fragment when a message
// contains one of its keywords.
type PromptRule struct {
	Keywords []string `yaml:"keywords"`
	File     string   `yaml:"file"`
	Type     string   `yaml:"type"` // "append" (default) or "override"
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress: "0.0.0.0",
			Port:          8080,
			LogLevel:      "info",
		},
		Defaults: Defaults{
			Retrieval: RetrievalConfig{
				Threshold:    DefaultThreshold,
				HistoryPairs: DefaultHistoryPairs,
				Candidates:   DefaultCandidates,
			},
		},
	}
}

// IsMemory reports whether the store is held in process.
func (s StoreConfig) IsMemory() bool {
	return s.Type == StoreMemory
}
