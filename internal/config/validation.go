//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Portions copyright (c) 2025, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns all validation
// errors found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	// Validate server config
	errs = append(errs, c.validateServer()...)

	// Validate defaults
	errs = append(errs, c.validateDefaults()...)

	// Validate pipelines
	errs = append(errs, c.validatePipelines()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateServer validates server configuration.
func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			errs = append(errs, ValidationError{
				Field:   "server.tls.cert_file",
				Message: "required when TLS is enabled",
			})
		} else if _, err := os.Stat(ExpandPath(c.Server.TLS.CertFile)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.tls.cert_file",
				Message: fmt.Sprintf("file not found: %s", c.Server.TLS.CertFile),
			})
		}

		if c.Server.TLS.KeyFile == "" {
			errs = append(errs, ValidationError{
				Field:   "server.tls.key_file",
				Message: "required when TLS is enabled",
			})
		} else if _, err := os.Stat(ExpandPath(c.Server.TLS.KeyFile)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.tls.key_file",
				Message: fmt.Sprintf("file not found: %s", c.Server.TLS.KeyFile),
			})
		}
	}

	return errs
}

// Providers accepted for each role.
var (
	embeddingProviders  = []string{"openai", "voyage", "ollama"}
	generationProviders = []string{"anthropic", "openai", "ollama"}
)

// validateDefaults validates the defaults configuration.
func (c *Config) validateDefaults() ValidationErrors {
	var errs ValidationErrors

	if c.Defaults.Embedding.Provider != "" {
		errs = append(errs, validateProviderOptional("defaults.embedding",
			c.Defaults.Embedding.Provider, c.Defaults.Embedding.Model, embeddingProviders)...)
	}
	if c.Defaults.Generation.Provider != "" {
		errs = append(errs, validateProviderOptional("defaults.generation",
			c.Defaults.Generation.Provider, c.Defaults.Generation.Model, generationProviders)...)
	}

	return errs
}

// validatePipelines validates all pipeline configurations.
func (c *Config) validatePipelines() ValidationErrors {
	var errs ValidationErrors

	if len(c.Pipelines) == 0 {
		errs = append(errs, ValidationError{
			Field:   "pipelines",
			Message: "at least one pipeline must be configured",
		})
		return errs
	}

	// Check for duplicate pipeline names
	names := make(map[string]bool)
	for i, p := range c.Pipelines {
		if names[p.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pipelines[%d].name", i),
				Message: fmt.Sprintf("duplicate pipeline name: %s", p.Name),
			})
		}
		names[p.Name] = true

		errs = append(errs, c.validatePipeline(i, p)...)
	}

	return errs
}

// validatePipeline validates a single pipeline configuration.
func (c *Config) validatePipeline(index int, p Pipeline) ValidationErrors {
	var errs ValidationErrors
	prefix := fmt.Sprintf("pipelines[%d]", index)

	if p.Name == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".name",
			Message: "required",
		})
	}

	errs = append(errs, validateStore(prefix+".store", p.Store)...)

	errs = append(errs, validateProvider(prefix+".embedding",
		p.Embedding.Provider, p.Embedding.Model, embeddingProviders)...)
	if p.Embedding.Dimensions <= 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".embedding.dimensions",
			Message: "must be greater than zero",
		})
	}

	errs = append(errs, validateProvider(prefix+".generation",
		p.Generation.Provider, p.Generation.Model, generationProviders)...)
	if p.Generation.MaxTokens < 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".generation.max_tokens",
			Message: "must be non-negative",
		})
	}
	if t := p.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".generation.temperature",
			Message: "must be between 0 and 2",
		})
	}

	// Cosine distance lies in [0, 2].
	if p.Retrieval.Threshold <= 0 || p.Retrieval.Threshold > 2 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".retrieval.threshold",
			Message: "must be greater than 0 and at most 2",
		})
	}
	if p.Retrieval.HistoryPairs < 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".retrieval.history_pairs",
			Message: "must be non-negative",
		})
	}
	if p.Retrieval.Candidates < 1 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".retrieval.candidates",
			Message: "must be at least 1",
		})
	}

	errs = append(errs, validatePrompt(prefix+".prompt", p.Prompt)...)

	return errs
}

// validateStore validates a document store configuration.
func validateStore(prefix string, s StoreConfig) ValidationErrors {
	var errs ValidationErrors

	switch s.Type {
	case StoreMemory:
		for i, f := range s.Seed {
			if _, err := os.Stat(ExpandPath(f)); err != nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.seed[%d]", prefix, i),
					Message: fmt.Sprintf("file not found: %s", f),
				})
			}
		}
	case StorePostgres:
		errs = append(errs, validateDatabase(prefix+".database", s.Database)...)
		if len(s.Seed) > 0 {
			errs = append(errs, ValidationError{
				Field:   prefix + ".seed",
				Message: "only supported for memory stores",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   prefix + ".type",
			Message: "must be one of: postgres, memory",
		})
	}

	return errs
}

// validateDatabase validates database configuration.
func validateDatabase(prefix string, db DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if db.Host == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".host",
			Message: "required",
		})
	}

	if db.Database == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".database",
			Message: "required",
		})
	}

	if db.Port < 1 || db.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".port",
			Message: "must be between 1 and 65535",
		})
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"allow":       true,
		"prefer":      true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if db.SSLMode != "" && !validSSLModes[db.SSLMode] {
		errs = append(errs, ValidationError{
			Field:   prefix + ".ssl_mode",
			Message: "must be one of: disable, allow, prefer, require, verify-ca, verify-full",
		})
	}

	return errs
}

// validatePrompt validates persona settings.
func validatePrompt(prefix string, p PromptConfig) ValidationErrors {
	var errs ValidationErrors

	if strings.ContainsAny(p.AssistantName, ":\n") {
		errs = append(errs, ValidationError{
			Field:   prefix + ".assistant_name",
			Message: "must not contain a colon or newline",
		})
	}

	if p.TemplatesDir == "" {
		if len(p.Rules) > 0 {
			errs = append(errs, ValidationError{
				Field:   prefix + ".rules",
				Message: "templates_dir is required when rules are configured",
			})
		}
		return errs
	}

	dir := ExpandPath(p.TemplatesDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		errs = append(errs, ValidationError{
			Field:   prefix + ".templates_dir",
			Message: fmt.Sprintf("directory not found: %s", p.TemplatesDir),
		})
		return errs
	}

	if _, err := os.Stat(filepath.Join(dir, p.BaseTemplate)); err != nil {
		errs = append(errs, ValidationError{
			Field:   prefix + ".base_template",
			Message: fmt.Sprintf("file not found: %s", p.BaseTemplate),
		})
	}

	for i, r := range p.Rules {
		field := fmt.Sprintf("%s.rules[%d]", prefix, i)
		if len(r.Keywords) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".keywords",
				Message: "at least one keyword is required",
			})
		}
		if r.File == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".file",
				Message: "required",
			})
		} else if _, err := os.Stat(filepath.Join(dir, r.File)); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".file",
				Message: fmt.Sprintf("file not found: %s", r.File),
			})
		}
		if t := strings.ToLower(r.Type); t != "append" && t != "override" {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: "must be one of: append, override",
			})
		}
	}

	return errs
}

// validateProvider validates a provider section (required fields).
func validateProvider(prefix, provider, model string, validProviders []string) ValidationErrors {
	var errs ValidationErrors

	if provider == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".provider",
			Message: "required",
		})
	} else if !slices.Contains(validProviders, strings.ToLower(provider)) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".provider",
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validProviders, ", ")),
		})
	}

	if model == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".model",
			Message: "required",
		})
	}

	return errs
}

// validateProviderOptional validates a provider section when the provider
// is set. The model is then required as well.
func validateProviderOptional(prefix, provider, model string, validProviders []string) ValidationErrors {
	if provider == "" {
		return nil
	}
	return validateProvider(prefix, provider, model, validProviders)
}
