//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package prompt builds the message lists sent to completion providers.
package prompt

import (
	"strings"

	"github.com/pgEdge/quill-rag-server/internal/conversation"
	"github.com/pgEdge/quill-rag-server/internal/llm"
)

// ContextPlaceholder marks where the matched document goes in a persona.
const ContextPlaceholder = "{context}"

// DefaultPersona is used when a pipeline configures no persona.
const DefaultPersona = "You are a helpful assistant. Answer the user's question " +
	"using only the information in the following context. If the context " +
	"does not contain the answer, say so.\n\n" + ContextPlaceholder

// SystemMessage interpolates document into persona. When the persona has
// no placeholder the document is appended after a blank line.
func SystemMessage(persona, document string) string {
	if persona == "" {
		persona = DefaultPersona
	}
	if strings.Contains(persona, ContextPlaceholder) {
		return strings.ReplaceAll(persona, ContextPlaceholder, document)
	}
	return strings.TrimRight(persona, "\n") + "\n\n" + document
}

// Assemble returns the system message, then every history turn in order,
// then message as the final user turn.
func Assemble(document string, turns []conversation.Turn, message, persona string) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns)+2)
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleSystem,
		Content: SystemMessage(persona, document),
	})

	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == conversation.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}

	return append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
}

// AssembleTranscript is Assemble for a flat marker transcript. It also
// returns the number of transcript lines that were dropped.
func AssembleTranscript(
	document, transcript string,
	markers conversation.Markers,
	message, persona string,
) ([]llm.Message, int) {
	parsed := conversation.ParseTranscript(transcript, markers)
	return Assemble(document, parsed.Turns, message, persona), parsed.Dropped
}
