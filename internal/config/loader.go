//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "quill-server.yaml"

	// SystemConfigPath is the system-wide configuration path.
	SystemConfigPath = "/etc/pgedge/" + ConfigFileName
)

// Load loads the configuration from the specified path, or searches
// default locations if path is empty.
//
// Search order:
//  1. Explicit path (if provided)
//  2. /etc/pgedge/quill-server.yaml
//  3. quill-server.yaml in the binary's directory
func Load(path string) (*Config, error) {
	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}

	return loadFromFile(configPath)
}

// findConfigFile finds the configuration file using the search order.
func findConfigFile(explicitPath string) (string, error) {
	// If explicit path provided, use it
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Search order for config file
	searchPaths := []string{
		SystemConfigPath,
		getBinaryDirConfigPath(),
	}

	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no configuration file found; searched: %v", searchPaths)
}

// getBinaryDirConfigPath returns the path to config file in the binary's
// directory.
func getBinaryDirConfigPath() string {
	executable, err := os.Executable()
	if err != nil {
		return ""
	}

	// Resolve symlinks to get the actual binary location
	executable, err = filepath.EvalSymlinks(executable)
	if err != nil {
		return ""
	}

	return filepath.Join(filepath.Dir(executable), ConfigFileName)
}

// loadFromFile loads and parses the configuration from a YAML file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply defaults to pipelines
	applyDefaults(cfg)

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults applies default values to pipelines where not specified.
func applyDefaults(cfg *Config) {
	d := cfg.Defaults
	for i := range cfg.Pipelines {
		p := &cfg.Pipelines[i]

		applyStoreDefaults(&p.Store, d.Database)

		if p.Embedding.Provider == "" {
			p.Embedding.Provider = d.Embedding.Provider
		}
		if p.Embedding.Model == "" {
			p.Embedding.Model = d.Embedding.Model
		}
		if p.Embedding.BaseURL == "" {
			p.Embedding.BaseURL = d.Embedding.BaseURL
		}
		if p.Embedding.Dimensions == 0 {
			p.Embedding.Dimensions = d.Embedding.Dimensions
		}
		if p.Embedding.Timeout == 0 {
			p.Embedding.Timeout = d.Embedding.Timeout
		}

		if p.Generation.Provider == "" {
			p.Generation.Provider = d.Generation.Provider
		}
		if p.Generation.Model == "" {
			p.Generation.Model = d.Generation.Model
		}
		if p.Generation.BaseURL == "" {
			p.Generation.BaseURL = d.Generation.BaseURL
		}
		if p.Generation.MaxTokens == 0 {
			p.Generation.MaxTokens = d.Generation.MaxTokens
		}
		if p.Generation.Temperature == nil {
			p.Generation.Temperature = d.Generation.Temperature
		}
		if p.Generation.Timeout == 0 {
			p.Generation.Timeout = d.Generation.Timeout
		}

		if p.Retrieval.Threshold == 0 {
			p.Retrieval.Threshold = d.Retrieval.Threshold
		}
		if p.Retrieval.HistoryPairs == 0 {
			p.Retrieval.HistoryPairs = d.Retrieval.HistoryPairs
		}
		if p.Retrieval.Candidates == 0 {
			p.Retrieval.Candidates = d.Retrieval.Candidates
		}

		if p.Prompt.AssistantName == "" {
			p.Prompt.AssistantName = DefaultAssistantName
		}
		if p.Prompt.TemplatesDir != "" && p.Prompt.BaseTemplate == "" {
			p.Prompt.BaseTemplate = "BasePrompt.txt"
		}
		for j := range p.Prompt.Rules {
			if p.Prompt.Rules[j].Type == "" {
				p.Prompt.Rules[j].Type = "append"
			}
		}

		// Apply API key defaults (cascade: pipeline -> defaults -> global)
		p.APIKeys.Anthropic = firstNonEmpty(p.APIKeys.Anthropic,
			d.APIKeys.Anthropic, cfg.APIKeys.Anthropic)
		p.APIKeys.OpenAI = firstNonEmpty(p.APIKeys.OpenAI,
			d.APIKeys.OpenAI, cfg.APIKeys.OpenAI)
		p.APIKeys.Voyage = firstNonEmpty(p.APIKeys.Voyage,
			d.APIKeys.Voyage, cfg.APIKeys.Voyage)
	}
}

// applyStoreDefaults fills the store table layout and, for postgres
// stores, the connection settings inherited from the defaults section.
func applyStoreDefaults(s *StoreConfig, db DatabaseConfig) {
	if s.Type == "" {
		s.Type = StorePostgres
	}
	if s.Table == "" {
		s.Table = DefaultTable
	}
	if s.IDColumn == "" {
		s.IDColumn = DefaultIDColumn
	}
	if s.TextColumn == "" {
		s.TextColumn = DefaultTextColumn
	}
	if s.VectorColumn == "" {
		s.VectorColumn = DefaultVectorColumn
	}

	if s.IsMemory() {
		return
	}

	d := &s.Database
	d.Host = firstNonEmpty(d.Host, db.Host)
	d.Database = firstNonEmpty(d.Database, db.Database)
	d.Username = firstNonEmpty(d.Username, db.Username)
	d.Password = firstNonEmpty(d.Password, db.Password)
	d.SSLMode = firstNonEmpty(d.SSLMode, db.SSLMode, "prefer")
	d.SSLCert = firstNonEmpty(d.SSLCert, db.SSLCert)
	d.SSLKey = firstNonEmpty(d.SSLKey, db.SSLKey)
	d.SSLRootCA = firstNonEmpty(d.SSLRootCA, db.SSLRootCA)
	if d.Port == 0 {
		d.Port = db.Port
	}
	if d.Port == 0 {
		d.Port = 5432
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
