//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package documents

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"blank", " \n\n\t\n", nil},
		{"single", "apple", []string{"apple"}},
		{"two", "apple\n\nbanana", []string{"apple", "banana"}},
		{"multi-line", "line one\nline two\n\n\n  banana  \n", []string{"line one\nline two", "banana"}},
		{"crlf", "apple\r\n\r\nbanana\r\n", []string{"apple", "banana"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitParagraphs(tt.in))
		})
	}
}

func TestStore_LoadTexts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, fruitEmbedder())

	stats, err := s.LoadTexts(ctx, []string{"apple", "banana", "apple"}, true)
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Inserted: 2, Skipped: 1}, stats)

	stats, err = s.LoadTexts(ctx, []string{"apple"}, false)
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Inserted: 1}, stats)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_LoadFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, fruitEmbedder())

	path := filepath.Join(t.TempDir(), "fruit.txt")
	require.NoError(t, os.WriteFile(path, []byte("apple\n\nbanana\n"), 0o600))

	stats, err := s.LoadFiles(ctx, []string{path, path})
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Inserted: 2, Skipped: 2}, stats)

	_, err = s.LoadFiles(ctx, []string{filepath.Join(t.TempDir(), "missing.txt")})
	require.Error(t, err)
}
