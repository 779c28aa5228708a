//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package conversation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fivePairs() string {
	var lines []string
	for i := 1; i <= 5; i++ {
		lines = append(lines, fmt.Sprintf("User: question %d", i))
		lines = append(lines, fmt.Sprintf("Quill: answer %d", i))
	}
	return strings.Join(lines, "\n")
}

func TestParseTranscript(t *testing.T) {
	res := ParseTranscript("User: Hi\nQuill: Hello\n\nnoise line\n  User:   Bye  \n", DefaultMarkers())

	require.Len(t, res.Turns, 3)
	assert.Equal(t, Turn{Role: RoleUser, Content: "Hi"}, res.Turns[0])
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "Hello"}, res.Turns[1])
	assert.Equal(t, Turn{Role: RoleUser, Content: "Bye"}, res.Turns[2])
	assert.Equal(t, 1, res.Dropped)
}

func TestParseTranscript_CustomAssistant(t *testing.T) {
	res := ParseTranscript("User: Hi\nBuster: Hey\nQuill: not me", NewMarkers("Buster"))

	require.Len(t, res.Turns, 2)
	assert.Equal(t, RoleAssistant, res.Turns[1].Role)
	assert.Equal(t, "Hey", res.Turns[1].Content)
	assert.Equal(t, 1, res.Dropped)
}

func TestParseTranscript_Blank(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\t\n"} {
		res := ParseTranscript(in, DefaultMarkers())
		assert.Empty(t, res.Turns)
		assert.Zero(t, res.Dropped)
	}
}

func TestSummarize_LastPairs(t *testing.T) {
	got := Summarize(fivePairs(), 2)

	assert.Equal(t, "user: question 4\nassistant: answer 4\nuser: question 5\nassistant: answer 5", got)
	assert.Len(t, strings.Split(got, "\n"), 4)
}

func TestSummarize_FewerTurnsThanWindow(t *testing.T) {
	assert.Equal(t, "user: Hi\nassistant: Hello", Summarize("User: Hi\nQuill: Hello", 3))
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, "", Summarize("", 2))
	assert.Equal(t, "", Summarize("   \n ", 2))
	assert.Equal(t, "", Summarize("unmarked text only", 2))
}

func TestSummarizeTurns_NonPositiveWindow(t *testing.T) {
	turns := []Turn{{Role: RoleUser, Content: "Hi"}}
	assert.Equal(t, "", SummarizeTurns(turns, 0))
	assert.Equal(t, "", SummarizeTurns(turns, -1))
}

func TestSummarizeTurns_OddCount(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
	}
	assert.Equal(t, "assistant: b\nuser: c", SummarizeTurns(turns, 1))
}

func TestRender_RoundTrip(t *testing.T) {
	m := NewMarkers("Gemma")
	turns := []Turn{
		{Role: RoleUser, Content: "Hi"},
		{Role: RoleAssistant, Content: "Hello"},
	}

	transcript := Render(turns, m)
	assert.Equal(t, "User: Hi\nGemma: Hello", transcript)
	assert.Equal(t, turns, ParseTranscript(transcript, m).Turns)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("system").Valid())
}
