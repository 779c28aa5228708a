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
	"fmt"
	"os"
	"strings"
)

// SplitParagraphs splits text into documents separated by blank lines.
// Each paragraph is trimmed; empty paragraphs are dropped.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		docs    []string
		current []string
	)
	flush := func() {
		if p := strings.TrimSpace(strings.Join(current, "\n")); p != "" {
			docs = append(docs, p)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return docs
}

// LoadStats summarises a bulk load.
type LoadStats struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// LoadTexts inserts every text, skipping ones already stored when
// skipExisting is set.
func (s *Store) LoadTexts(ctx context.Context, texts []string, skipExisting bool) (LoadStats, error) {
	var stats LoadStats
	for _, text := range texts {
		if skipExisting {
			ok, err := s.Exists(ctx, text)
			if err != nil {
				return stats, err
			}
			if ok {
				stats.Skipped++
				continue
			}
		}
		if _, err := s.Insert(ctx, text); err != nil {
			return stats, err
		}
		stats.Inserted++
	}
	return stats, nil
}

// LoadFiles splits each file into paragraphs and loads them, skipping
// paragraphs that are already stored.
func (s *Store) LoadFiles(ctx context.Context, paths []string) (LoadStats, error) {
	var total LoadStats
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return total, fmt.Errorf("failed to read %s: %w", path, err)
		}
		stats, err := s.LoadTexts(ctx, SplitParagraphs(string(data)), true)
		total.Inserted += stats.Inserted
		total.Skipped += stats.Skipped
		if err != nil {
			return total, fmt.Errorf("failed to load %s: %w", path, err)
		}
		s.logger.Info("documents loaded",
			"file", path,
			"inserted", stats.Inserted,
			"skipped", stats.Skipped,
		)
	}
	return total, nil
}
