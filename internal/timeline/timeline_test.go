package timeline

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepscout/internal/transport"
)

func entry(id, title string) Entry {
	return Entry{ID: id, Title: title, Summary: "s", CreatedAt: time.Now(), Status: StatusCompleted}
}

func TestStore_AppendKeepsArrivalOrder(t *testing.T) {
	s := NewStore()
	gen := s.NextGeneration()

	assert.True(t, s.Append(gen, entry("1", "Generating Search Queries")))
	assert.True(t, s.Append(gen, entry("2", "Web Research")))
	assert.True(t, s.Append(gen, entry("3", "Web Research")))

	live := s.Live()
	require.Len(t, live, 3)
	assert.Equal(t, "Generating Search Queries", live[0].Title)
	assert.Equal(t, "Web Research", live[1].Title)
	assert.Equal(t, "Web Research", live[2].Title)
}

func TestStore_DropsStaleGenerations(t *testing.T) {
	s := NewStore()
	old := s.NextGeneration()
	s.Append(old, entry("1", "Web Research"))

	s.NextGeneration()

	// An event from the abandoned stream arrives late.
	assert.False(t, s.Append(old, entry("2", "Reflection")))
	assert.Empty(t, s.Live())
}

func TestStore_TryFreezePreconditions(t *testing.T) {
	msgs := []transport.Message{
		{ID: "h1", Type: transport.RoleHuman, Content: "q"},
		{ID: "a1", Type: transport.RoleAI, Content: "answer"},
	}

	t.Run("no finalize flag", func(t *testing.T) {
		s := NewStore()
		s.Append(s.NextGeneration(), entry("1", "Web Research"))
		_, ok := s.TryFreeze(msgs, false)
		assert.False(t, ok)
	})

	t.Run("still loading", func(t *testing.T) {
		s := NewStore()
		s.Append(s.NextGeneration(), entry("1", "Web Research"))
		s.MarkFinalized()
		_, ok := s.TryFreeze(msgs, true)
		assert.False(t, ok)
		// Flag survives the failed attempt.
		assert.True(t, s.Finalized())
	})

	t.Run("last message not agent-authored", func(t *testing.T) {
		s := NewStore()
		s.Append(s.NextGeneration(), entry("1", "Web Research"))
		s.MarkFinalized()
		human := []transport.Message{{ID: "h1", Type: transport.RoleHuman, Content: "q"}}
		_, ok := s.TryFreeze(human, false)
		assert.False(t, ok)
		assert.True(t, s.Finalized())
	})

	t.Run("last message missing id", func(t *testing.T) {
		s := NewStore()
		s.MarkFinalized()
		noID := []transport.Message{{Type: transport.RoleAI, Content: "answer"}}
		_, ok := s.TryFreeze(noID, false)
		assert.False(t, ok)
	})

	t.Run("all preconditions met", func(t *testing.T) {
		s := NewStore()
		gen := s.NextGeneration()
		s.Append(gen, entry("1", "Web Research"))
		s.Append(gen, entry("2", "Finalizing Answer"))
		s.MarkFinalized()

		id, ok := s.TryFreeze(msgs, false)
		require.True(t, ok)
		assert.Equal(t, "a1", id)
		assert.False(t, s.Finalized(), "flag is one-shot")

		hist, found := s.History("a1")
		require.True(t, found)
		assert.Len(t, hist, 2)

		// A second attempt without a new finalize is a no-op.
		_, ok = s.TryFreeze(msgs, false)
		assert.False(t, ok)
	})
}

func TestStore_AbortFinalizeClearsFlag(t *testing.T) {
	s := NewStore()
	s.MarkFinalized()
	s.AbortFinalize()
	assert.False(t, s.Finalized())
}

func TestStore_SnapshotsAreIndependent(t *testing.T) {
	s := NewStore()
	gen := s.NextGeneration()
	s.Append(gen, entry("1", "Web Research"))
	s.MarkFinalized()

	msgs := []transport.Message{{ID: "a1", Type: transport.RoleAI, Content: "answer"}}
	_, ok := s.TryFreeze(msgs, false)
	require.True(t, ok)

	before, _ := s.History("a1")

	// Mutating the live buffer after the freeze must not leak into the
	// frozen snapshot.
	s.Append(gen, entry("2", "Reflection"))
	s.ClearLive()

	after, _ := s.History("a1")
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("frozen timeline changed (-before +after):\n%s", diff)
	}

	// Callers mutating a returned copy must not corrupt the store either.
	after[0].Title = "tampered"
	fresh, _ := s.History("a1")
	assert.Equal(t, "Web Research", fresh[0].Title)
}

func TestStore_RestoreHistoryReplacesMap(t *testing.T) {
	s := NewStore()
	gen := s.NextGeneration()
	s.Append(gen, entry("1", "Web Research"))
	s.MarkFinalized()
	msgs := []transport.Message{{ID: "old", Type: transport.RoleAI, Content: "a"}}
	_, ok := s.TryFreeze(msgs, false)
	require.True(t, ok)

	s.RestoreHistory(map[string][]Entry{
		"restored": {entry("9", "Finalizing Answer")},
	})

	_, found := s.History("old")
	assert.False(t, found)
	hist, found := s.History("restored")
	require.True(t, found)
	assert.Equal(t, "Finalizing Answer", hist[0].Title)
}

func TestStore_ResetClearsEverythingAndInvalidates(t *testing.T) {
	s := NewStore()
	gen := s.NextGeneration()
	s.Append(gen, entry("1", "Web Research"))
	s.MarkFinalized()

	s.Reset()

	assert.Empty(t, s.Live())
	assert.Empty(t, s.Snapshot())
	assert.False(t, s.Finalized())
	assert.False(t, s.Append(gen, entry("2", "Reflection")), "pre-reset generation is stale")
}
