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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/quill-rag-server/internal/config"
)

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder("Base.", []Rule{
		{Keywords: []string{"potion", "brew"}, Fragment: "Mention safety."},
		{Keywords: []string{"schedule"}, Fragment: "Use exact dates."},
		{Keywords: []string{"quiet"}, Fragment: "One sentence only.", Override: true},
	})

	tests := []struct {
		message string
		want    string
	}{
		{"hello there", "Base."},
		{"Which POTION is easiest?", "Base.\n\nMention safety."},
		{"brew a potion for the schedule", "Base.\n\nMention safety.\n\nUse exact dates."},
		{"potion, but keep it quiet", "One sentence only."},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Build(tt.message))
		})
	}
}

func TestNewBuilder_DefaultPersona(t *testing.T) {
	assert.Equal(t, DefaultPersona, NewBuilder("", nil).Build("anything"))
}

func TestLoadBuilder_Templates(t *testing.T) {
	cfg := config.PromptConfig{
		TemplatesDir: "../../testdata/prompts",
		BaseTemplate: "BasePrompt.txt",
		Rules: []config.PromptRule{
			{Keywords: []string{"potion"}, File: "Potions.txt", Type: "append"},
			{Keywords: []string{"quiet"}, File: "Quiet.txt", Type: "Override"},
		},
	}

	b, err := LoadBuilder(cfg)
	require.NoError(t, err)

	assert.Equal(t, "You are Buster, a cheerful assistant for Hogwarts students.", b.Build("hi"))
	assert.Equal(t,
		"You are Buster, a cheerful assistant for Hogwarts students.\n\n"+
			"When asked about potions, always mention safety precautions.",
		b.Build("potion help"))
	assert.Equal(t, "Answer in one short sentence.", b.Build("be quiet"))
}

func TestLoadBuilder_InlinePromptWins(t *testing.T) {
	b, err := LoadBuilder(config.PromptConfig{
		SystemPrompt: "Inline {context}",
		TemplatesDir: "../../testdata/prompts",
		BaseTemplate: "BasePrompt.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, "Inline {context}", b.Build("hi"))
}

func TestLoadBuilder_NoTemplates(t *testing.T) {
	b, err := LoadBuilder(config.PromptConfig{SystemPrompt: "Persona"})
	require.NoError(t, err)
	assert.Equal(t, "Persona", b.Build("potion"))
}

func TestLoadBuilder_MissingFragment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Base.txt"), []byte("base"), 0o600))

	_, err := LoadBuilder(config.PromptConfig{
		TemplatesDir: dir,
		BaseTemplate: "Base.txt",
		Rules:        []config.PromptRule{{Keywords: []string{"x"}, File: "gone.txt"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone.txt")
}
