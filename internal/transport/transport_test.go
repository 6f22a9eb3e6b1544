package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffortParams(t *testing.T) {
	tests := []struct {
		effort     string
		wantQuery  int
		wantLoops  int
	}{
		{"low", 1, 1},
		{"medium", 3, 3},
		{"high", 5, 10},
		// Unrecognized levels clamp to medium instead of (0, 0).
		{"", 3, 3},
		{"extreme", 3, 3},
	}
	for _, tt := range tests {
		q, l := EffortParams(tt.effort)
		assert.Equal(t, tt.wantQuery, q, "effort %q query count", tt.effort)
		assert.Equal(t, tt.wantLoops, l, "effort %q loop count", tt.effort)
	}
}

func TestConfirmedQueriesRoundTrip(t *testing.T) {
	content := EncodeConfirmedQueries([]string{"quantum computing basics", "qubit error rates"})
	assert.Equal(t, "[queries confirmed] quantum computing basics | qubit error rates", content)

	queries, ok := DecodeConfirmedQueries(content)
	assert.True(t, ok)
	assert.Equal(t, []string{"quantum computing basics", "qubit error rates"}, queries)
}

func TestDecodeConfirmedQueries_PlainMessage(t *testing.T) {
	queries, ok := DecodeConfirmedQueries("what is quantum entanglement?")
	assert.False(t, ok)
	assert.Nil(t, queries)
}

func TestDecodeConfirmedQueries_SkipsEmptySegments(t *testing.T) {
	queries, ok := DecodeConfirmedQueries("[queries confirmed] a || b | ")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, queries)
}

func TestResearchTopic(t *testing.T) {
	single := []Message{{ID: "1", Type: RoleHuman, Content: "why is the sky blue?"}}
	assert.Equal(t, "why is the sky blue?", ResearchTopic(single))

	multi := []Message{
		{ID: "1", Type: RoleHuman, Content: "why is the sky blue?"},
		{ID: "2", Type: RoleAI, Content: "Rayleigh scattering."},
		{ID: "3", Type: RoleHuman, Content: EncodeConfirmedQueries([]string{"rayleigh scattering"})},
	}
	topic := ResearchTopic(multi)
	assert.Contains(t, topic, "User: why is the sky blue?")
	assert.Contains(t, topic, "Assistant: Rayleigh scattering.")
	// Sentinel messages are bookkeeping, not topic material.
	assert.NotContains(t, topic, ConfirmedQueriesPrefix)
}

func TestLastMessages(t *testing.T) {
	msgs := []Message{
		{ID: "1", Type: RoleHuman, Content: "q1"},
		{ID: "2", Type: RoleAI, Content: "a1"},
		{ID: "3", Type: RoleHuman, Content: "q2"},
	}

	h, ok := LastHumanMessage(msgs)
	assert.True(t, ok)
	assert.Equal(t, "q2", h.Content)

	a, ok := LastAIMessage(msgs)
	assert.True(t, ok)
	assert.Equal(t, "a1", a.Content)

	_, ok = LastAIMessage(nil)
	assert.False(t, ok)
}
