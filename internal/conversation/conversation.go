//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package conversation turns chat history into ordered turns and produces
// the bounded summaries used to enrich retrieval queries.
package conversation

import (
	"strings"
)

// Role is the author of a turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-labelled message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Markers are the line prefixes that identify the author of each line in
// a flat transcript.
type Markers struct {
	User      string
	Assistant string
}

// DefaultMarkers returns the markers used when no assistant name is
// configured.
func DefaultMarkers() Markers {
	return NewMarkers("Quill")
}

// NewMarkers returns markers for an assistant with the given name.
func NewMarkers(assistantName string) Markers {
	return Markers{
		User:      "User:",
		Assistant: assistantName + ":",
	}
}

// ParseResult holds the turns recognised in a transcript.
type ParseResult struct {
	Turns []Turn

	// Dropped counts non-blank lines that carried no recognised marker.
	Dropped int
}

// ParseTranscript splits a transcript into turns, one per line. Lines
// without a recognised marker are skipped and counted in Dropped; blank
// lines are ignored.
func ParseTranscript(transcript string, m Markers) ParseResult {
	var res ParseResult

	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, m.User):
			res.Turns = append(res.Turns, Turn{
				Role:    RoleUser,
				Content: strings.TrimSpace(strings.TrimPrefix(line, m.User)),
			})
		case strings.HasPrefix(line, m.Assistant):
			res.Turns = append(res.Turns, Turn{
				Role:    RoleAssistant,
				Content: strings.TrimSpace(strings.TrimPrefix(line, m.Assistant)),
			})
		default:
			res.Dropped++
		}
	}

	return res
}

// Summarize parses transcript with the default markers and returns the
// last maxTurns user/assistant pairs, see SummarizeTurns.
func Summarize(transcript string, maxTurns int) string {
	return SummarizeTurns(ParseTranscript(transcript, DefaultMarkers()).Turns, maxTurns)
}

// SummarizeTurns keeps at most the last 2*maxTurns turns and renders each
// as a "role: content" line in original order. It returns "" when there
// is nothing to keep.
func SummarizeTurns(turns []Turn, maxTurns int) string {
	if maxTurns <= 0 || len(turns) == 0 {
		return ""
	}

	if keep := 2 * maxTurns; len(turns) > keep {
		turns = turns[len(turns)-keep:]
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, strings.TrimSpace(string(t.Role)+": "+t.Content))
	}
	return strings.Join(lines, "\n")
}

// Render writes turns back as a marker transcript, the inverse of
// ParseTranscript for single-line turns.
func Render(turns []Turn, m Markers) string {
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		marker := m.User
		if t.Role == RoleAssistant {
			marker = m.Assistant
		}
		sb.WriteString(marker)
		sb.WriteByte(' ')
		sb.WriteString(t.Content)
	}
	return sb.String()
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}
