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
	"slices"
	"strings"
	"sync"

	"github.com/pgEdge/quill-rag-server/internal/config"
	"github.com/pgEdge/quill-rag-server/internal/conversation"
	"github.com/pgEdge/quill-rag-server/internal/database"
	"github.com/pgEdge/quill-rag-server/internal/documents"
	"github.com/pgEdge/quill-rag-server/internal/llm"
	"github.com/pgEdge/quill-rag-server/internal/llm/factory"
	"github.com/pgEdge/quill-rag-server/internal/prompt"
)

// ErrPipelineNotFound is returned when a requested pipeline does not exist.
var ErrPipelineNotFound = errors.New("pipeline not found")

// Manager manages the lifecycle of RAG pipelines.
type Manager struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
	config    *config.Config
	logger    *slog.Logger
}

// Pipeline is one assistant: a document store, an embedding model, a
// generation model and a persona.
type Pipeline struct {
	name           string
	description    string
	config         config.Pipeline
	dbPool         *database.Pool
	store          *documents.Store
	embeddingProv  llm.EmbeddingProvider
	completionProv llm.CompletionProvider
	orchestrator   *Orchestrator
	logger         *slog.Logger
}

// ManagerConfig contains configuration for creating a Manager.
type ManagerConfig struct {
	Config *config.Config
	Logger *slog.Logger
}

// NewManager creates a new pipeline manager from configuration.
func NewManager(cfg *config.Config) (*Manager, error) {
	return NewManagerWithLogger(ManagerConfig{
		Config: cfg,
		Logger: slog.Default(),
	})
}

// NewManagerWithLogger creates a new pipeline manager with a custom logger.
func NewManagerWithLogger(cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		pipelines: make(map[string]*Pipeline),
		config:    cfg.Config,
		logger:    logger,
	}

	ctx := context.Background()
	for _, pCfg := range cfg.Config.Pipelines {
		p, err := m.createPipeline(ctx, pCfg)
		if err != nil {
			// Clean up any already created pipelines
			for _, existing := range m.pipelines {
				existing.Close()
			}
			return nil, fmt.Errorf("failed to create pipeline %s: %w", pCfg.Name, err)
		}
		m.pipelines[pCfg.Name] = p
		logger.Info("pipeline created",
			"name", pCfg.Name,
			"store", pCfg.Store.Type,
			"embedding_provider", pCfg.Embedding.Provider,
			"generation_provider", pCfg.Generation.Provider,
		)
	}

	return m, nil
}

// createPipeline creates a single pipeline with all providers initialized.
func (m *Manager) createPipeline(ctx context.Context, pCfg config.Pipeline) (*Pipeline, error) {
	pipelineLogger := m.logger.With("pipeline", pCfg.Name)

	// Load API keys from config file paths, environment variables, or defaults
	apiKeys, err := config.NewAPIKeyLoader(pCfg.APIKeys).LoadKeysForPipeline(pCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load API keys: %w", err)
	}

	embeddingProv, err := factory.NewEmbeddingProvider(pCfg.Embedding, apiKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	completionProv, err := factory.NewCompletionProvider(pCfg.Generation, apiKeys, pipelineLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion provider: %w", err)
	}

	prompts, err := prompt.LoadBuilder(pCfg.Prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	p := &Pipeline{
		name:           pCfg.Name,
		description:    pCfg.Description,
		config:         pCfg,
		embeddingProv:  embeddingProv,
		completionProv: completionProv,
		logger:         pipelineLogger,
	}

	backend, err := p.openBackend(ctx)
	if err != nil {
		p.Close()
		return nil, err
	}

	p.store = documents.NewStore(documents.StoreConfig{
		Pipeline:   pCfg.Name,
		Backend:    backend,
		Embedder:   embeddingProv,
		Dimensions: pCfg.Embedding.Dimensions,
		Candidates: pCfg.Retrieval.Candidates,
		Logger:     pipelineLogger,
	})

	if pCfg.Store.IsMemory() && len(pCfg.Store.Seed) > 0 {
		seeds := make([]string, len(pCfg.Store.Seed))
		for i, s := range pCfg.Store.Seed {
			seeds[i] = config.ExpandPath(s)
		}
		if _, err := p.store.LoadFiles(ctx, seeds); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to seed document store: %w", err)
		}
	}

	p.orchestrator = NewOrchestrator(OrchestratorConfig{
		Name:           pCfg.Name,
		Retriever:      p.store,
		CompletionProv: completionProv,
		Prompts:        prompts,
		Markers:        conversation.NewMarkers(pCfg.Prompt.AssistantName),
		Threshold:      pCfg.Retrieval.Threshold,
		HistoryPairs:   pCfg.Retrieval.HistoryPairs,
		Logger:         pipelineLogger,
	})

	return p, nil
}

// openBackend connects the configured document backend. A postgres table
// whose vector column disagrees with the embedding dimensions is a fatal
// configuration error.
func (p *Pipeline) openBackend(ctx context.Context) (documents.Backend, error) {
	if p.config.Store.IsMemory() {
		backend, err := documents.NewMemoryBackend()
		if err != nil {
			return nil, fmt.Errorf("failed to create memory store: %w", err)
		}
		return backend, nil
	}

	dbPool, err := database.NewPool(ctx, p.config.Store.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	p.dbPool = dbPool

	table := database.NewDocumentTable(dbPool, p.config.Store)
	if err := table.CheckDimensions(ctx, p.embeddingProv.ModelName(), p.config.Embedding.Dimensions); err != nil {
		return nil, fmt.Errorf("document table check failed: %w", err)
	}
	return table, nil
}

// List returns information about all available pipelines, sorted by name.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		infos = append(infos, p.Info())
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return strings.Compare(a.Name, b.Name)
	})

	return infos
}

// Get retrieves a pipeline by name.
func (m *Manager) Get(name string) (*Pipeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pipelines[name]
	if !ok {
		return nil, ErrPipelineNotFound
	}

	return p, nil
}

// Execute runs a RAG query on the pipeline.
func (p *Pipeline) Execute(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	req.Stream = false
	return p.orchestrator.Execute(ctx, req)
}

// ExecuteStream runs a RAG query and returns a streaming response.
func (p *Pipeline) ExecuteStream(
	ctx context.Context,
	req QueryRequest,
) (<-chan StreamChunk, <-chan error) {
	req.Stream = true
	return p.orchestrator.ExecuteStream(ctx, req)
}

// AddDocument stores text. With skipExisting set, text that is already
// stored is not inserted again and inserted is false.
func (p *Pipeline) AddDocument(
	ctx context.Context,
	text string,
	skipExisting bool,
) (id int64, inserted bool, err error) {
	if skipExisting {
		ok, err := p.store.Exists(ctx, text)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return 0, false, nil
		}
	}
	id, err = p.store.Insert(ctx, text)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// LoadDocuments stores several texts, see documents.Store.LoadTexts.
func (p *Pipeline) LoadDocuments(
	ctx context.Context,
	texts []string,
	skipExisting bool,
) (documents.LoadStats, error) {
	return p.store.LoadTexts(ctx, texts, skipExisting)
}

// CountDocuments returns the number of stored documents.
func (p *Pipeline) CountDocuments(ctx context.Context) (int, error) {
	return p.store.Count(ctx)
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// Description returns the pipeline description.
func (p *Pipeline) Description() string {
	return p.description
}

// Info describes the pipeline for listings.
func (p *Pipeline) Info() Info {
	info := Info{
		Name:        p.name,
		Description: p.description,
		Store:       p.config.Store.Type,
	}
	if p.embeddingProv != nil {
		info.EmbeddingModel = p.embeddingProv.ModelName()
	}
	if p.completionProv != nil {
		info.GenerationModel = p.completionProv.ModelName()
	}
	return info
}

// Close releases resources associated with the pipeline.
func (p *Pipeline) Close() {
	if p.dbPool != nil {
		p.dbPool.Close()
	}
}

// Close shuts down the manager and releases resources.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pipelines {
		p.Close()
	}
	m.pipelines = nil

	return nil
}
