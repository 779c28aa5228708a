//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package factory provides functions to create LLM providers from configuration.
package factory

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pgEdge/quill-rag-server/internal/config"
	"github.com/pgEdge/quill-rag-server/internal/llm"
	"github.com/pgEdge/quill-rag-server/internal/llm/anthropic"
	"github.com/pgEdge/quill-rag-server/internal/llm/ollama"
	"github.com/pgEdge/quill-rag-server/internal/llm/openai"
	"github.com/pgEdge/quill-rag-server/internal/llm/voyage"
)

// Provider constants for matching configuration values.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderVoyage    = "voyage"
	ProviderOllama    = "ollama"
)

// NewEmbeddingProvider creates an embedding provider based on configuration.
func NewEmbeddingProvider(
	cfg config.EmbeddingConfig,
	apiKeys *config.LoadedKeys,
) (llm.EmbeddingProvider, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be greater than zero")
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		if apiKeys.OpenAI == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		clientOpts := []openai.ClientOption{openai.WithTimeout(cfg.Timeout)}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
		}
		opts := []openai.EmbeddingOption{
			openai.WithEmbeddingClient(openai.NewClient(apiKeys.OpenAI, clientOpts...)),
			openai.WithDimensions(cfg.Dimensions),
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
		}
		return openai.NewEmbeddingProvider(apiKeys.OpenAI, opts...), nil

	case ProviderVoyage:
		if apiKeys.Voyage == "" {
			return nil, fmt.Errorf("Voyage API key not configured")
		}
		opts := []voyage.EmbeddingOption{
			voyage.WithDimensions(cfg.Dimensions),
			voyage.WithTimeout(cfg.Timeout),
		}
		if cfg.Model != "" {
			opts = append(opts, voyage.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, voyage.WithBaseURL(cfg.BaseURL))
		}
		return voyage.NewEmbeddingProvider(apiKeys.Voyage, opts...), nil

	case ProviderOllama:
		opts := []ollama.EmbeddingOption{
			ollama.WithEmbeddingClient(newOllamaClient(cfg.BaseURL, cfg.Timeout)),
			ollama.WithDimensions(cfg.Dimensions),
		}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithEmbeddingModel(cfg.Model))
		}
		return ollama.NewEmbeddingProvider(opts...), nil

	case ProviderAnthropic:
		return nil, fmt.Errorf("Anthropic does not provide an embedding API")

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// NewCompletionProvider creates a completion provider based on configuration.
func NewCompletionProvider(
	cfg config.GenerationConfig,
	apiKeys *config.LoadedKeys,
	logger *slog.Logger,
) (llm.CompletionProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		if apiKeys.OpenAI == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		clientOpts := []openai.ClientOption{openai.WithTimeout(cfg.Timeout)}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
		}
		opts := []openai.CompletionOption{
			openai.WithCompletionClient(openai.NewClient(apiKeys.OpenAI, clientOpts...)),
			openai.WithLogger(logger),
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithCompletionModel(cfg.Model))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, openai.WithMaxTokens(cfg.MaxTokens))
		}
		if cfg.Temperature != nil {
			opts = append(opts, openai.WithTemperature(*cfg.Temperature))
		}
		return openai.NewCompletionProvider(apiKeys.OpenAI, opts...), nil

	case ProviderAnthropic:
		if apiKeys.Anthropic == "" {
			return nil, fmt.Errorf("Anthropic API key not configured")
		}
		clientOpts := []anthropic.ClientOption{anthropic.WithTimeout(cfg.Timeout)}
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		opts := []anthropic.CompletionOption{
			anthropic.WithCompletionClient(anthropic.NewClient(apiKeys.Anthropic, clientOpts...)),
			anthropic.WithLogger(logger),
		}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithCompletionModel(cfg.Model))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(cfg.MaxTokens))
		}
		if cfg.Temperature != nil {
			opts = append(opts, anthropic.WithTemperature(*cfg.Temperature))
		}
		return anthropic.NewCompletionProvider(apiKeys.Anthropic, opts...), nil

	case ProviderOllama:
		opts := []ollama.CompletionOption{
			ollama.WithCompletionClient(newOllamaClient(cfg.BaseURL, cfg.Timeout)),
			ollama.WithLogger(logger),
		}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithCompletionModel(cfg.Model))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, ollama.WithMaxTokens(cfg.MaxTokens))
		}
		if cfg.Temperature != nil {
			opts = append(opts, ollama.WithTemperature(*cfg.Temperature))
		}
		return ollama.NewCompletionProvider(opts...), nil

	case ProviderVoyage:
		return nil, fmt.Errorf("Voyage does not provide a completion API")

	default:
		return nil, fmt.Errorf("unknown completion provider: %s", cfg.Provider)
	}
}

func newOllamaClient(baseURL string, timeout int) *ollama.Client {
	opts := []ollama.ClientOption{ollama.WithTimeout(timeout)}
	if baseURL != "" {
		opts = append(opts, ollama.WithBaseURL(baseURL))
	}
	return ollama.NewClient(opts...)
}
