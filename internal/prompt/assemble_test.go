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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/quill-rag-server/internal/conversation"
	"github.com/pgEdge/quill-rag-server/internal/llm"
)

func TestAssembleTranscript_OrderAndRoles(t *testing.T) {
	msgs, dropped := AssembleTranscript(
		"Potions is on Monday at 9.",
		"User: Hi\nQuill: Hello\nUser: Bye",
		conversation.DefaultMarkers(),
		"Thanks",
		"Context:\n{context}",
	)

	require.Len(t, msgs, 5)
	assert.Zero(t, dropped)

	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: "Context:\nPotions is on Monday at 9."}, msgs[0])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Hi"}, msgs[1])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "Hello"}, msgs[2])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Bye"}, msgs[3])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Thanks"}, msgs[4])
}

func TestAssembleTranscript_DropsUnmarkedLines(t *testing.T) {
	msgs, dropped := AssembleTranscript("doc", "User: Hi\n???\nQuill: Hello",
		conversation.DefaultMarkers(), "Next", "")

	assert.Len(t, msgs, 4)
	assert.Equal(t, 1, dropped)
}

func TestAssemble_Shape(t *testing.T) {
	histories := [][]conversation.Turn{
		nil,
		{{Role: conversation.RoleAssistant, Content: "Welcome"}},
		{
			{Role: conversation.RoleUser, Content: "a"},
			{Role: conversation.RoleAssistant, Content: "b"},
			{Role: conversation.RoleUser, Content: "c"},
		},
	}

	for _, turns := range histories {
		msgs := Assemble("doc", turns, "question", "persona {context}")

		require.Len(t, msgs, len(turns)+2)
		assert.Equal(t, llm.RoleSystem, msgs[0].Role)
		assert.Equal(t, llm.RoleUser, msgs[len(msgs)-1].Role)
		assert.Equal(t, "question", msgs[len(msgs)-1].Content)

		systems := 0
		for _, m := range msgs {
			if m.Role == llm.RoleSystem {
				systems++
			}
		}
		assert.Equal(t, 1, systems)
	}
}

func TestSystemMessage(t *testing.T) {
	tests := []struct {
		name     string
		persona  string
		document string
		want     string
	}{
		{"placeholder", "Use this: {context}. Be brief.", "DOC", "Use this: DOC. Be brief."},
		{"no placeholder", "You are Quill.\n", "DOC", "You are Quill.\n\nDOC"},
		{"repeated placeholder", "{context} / {context}", "X", "X / X"},
		{"default persona", "", "DOC", DefaultPersona[:len(DefaultPersona)-len(ContextPlaceholder)] + "DOC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SystemMessage(tt.persona, tt.document))
		})
	}
}
