//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pgEdge/quill-rag-server/internal/config"
)

// Rule adds a fragment to the persona when a message mentions one of its
// keywords. An override rule replaces the persona entirely.
type Rule struct {
	Keywords []string
	Fragment string
	Override bool
}

// matches reports whether message contains any keyword, ignoring case.
func (r Rule) matches(lowerMessage string) bool {
	for _, k := range r.Keywords {
		if k != "" && strings.Contains(lowerMessage, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// Builder produces the persona for a message from a base text and keyword
// rules. It is safe for concurrent use.
type Builder struct {
	base  string
	rules []Rule
}

// NewBuilder creates a builder. An empty base selects DefaultPersona.
func NewBuilder(base string, rules []Rule) *Builder {
	if base == "" {
		base = DefaultPersona
	}
	return &Builder{base: base, rules: rules}
}

// LoadBuilder creates a builder from pipeline configuration. Fragments
// and the base template are read from TemplatesDir; an inline
// SystemPrompt takes precedence over the base template.
func LoadBuilder(cfg config.PromptConfig) (*Builder, error) {
	if cfg.TemplatesDir == "" {
		return NewBuilder(cfg.SystemPrompt, nil), nil
	}

	dir := config.ExpandPath(cfg.TemplatesDir)

	base := cfg.SystemPrompt
	if base == "" && cfg.BaseTemplate != "" {
		text, err := readTemplate(dir, cfg.BaseTemplate)
		if err != nil {
			return nil, err
		}
		base = text
	}

	rules := make([]Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		text, err := readTemplate(dir, r.File)
		if err != nil {
			return nil, err
		}
		rules = append(rules, Rule{
			Keywords: r.Keywords,
			Fragment: text,
			Override: strings.EqualFold(r.Type, "override"),
		})
	}

	return NewBuilder(base, rules), nil
}

func readTemplate(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to read prompt template %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Build returns the persona for message. Rules are applied in order; the
// first matching override rule wins outright.
func (b *Builder) Build(message string) string {
	lower := strings.ToLower(message)
	persona := b.base

	for _, r := range b.rules {
		if !r.matches(lower) {
			continue
		}
		if r.Override {
			return r.Fragment
		}
		persona += "\n\n" + r.Fragment
	}

	return persona
}
