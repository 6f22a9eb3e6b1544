// Package timeline keeps the activity timeline for the exchange that is
// currently streaming (the live buffer) and the frozen timelines of
// finished exchanges, keyed by the agent message that finalized them.
package timeline

import (
	"sync"
	"time"

	"deepscout/internal/logging"
	"deepscout/internal/transport"
)

// Entry statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Entry is one classified, human-readable pipeline step. Entries are
// immutable once created; the store only ever replaces whole buffers.
type Entry struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary"`
	CreatedAt time.Time      `json:"created_at"`
	Status    string         `json:"status"`
	Raw       map[string]any `json:"raw,omitempty"`
}

// Store owns the live buffer and the historical snapshots, plus the
// one-shot finalization flag and the stream generation counter.
type Store struct {
	mu         sync.Mutex
	live       []Entry
	historical map[string][]Entry
	finalized  bool
	generation uint64
}

// NewStore returns an empty timeline store at generation zero.
func NewStore() *Store {
	return &Store{historical: make(map[string][]Entry)}
}

// Generation returns the current stream generation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// NextGeneration starts a new exchange: bumps the generation counter so
// in-flight events from the previous stream are dropped, clears the live
// buffer, and resets the finalization flag. Returns the new generation.
func (s *Store) NextGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.live = nil
	s.finalized = false
	logging.Get(logging.CategoryStream).Debug("advanced to generation %d", s.generation)
	return s.generation
}

// Append adds an entry to the live buffer in arrival order. Entries
// tagged with a stale generation are dropped. Repeated stage titles are
// kept as-is; a stage may legitimately recur across research loops.
func (s *Store) Append(generation uint64, e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		logging.Get(logging.CategoryStream).Debug(
			"dropped stale entry %q (gen %d, current %d)", e.Title, generation, s.generation)
		return false
	}
	s.live = append(s.live, e)
	return true
}

// Live returns a copy of the live buffer.
func (s *Store) Live() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyEntries(s.live)
}

// ClearLive empties the live buffer without touching history or the
// generation counter.
func (s *Store) ClearLive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = nil
}

// MarkFinalized sets the one-shot finalization flag. The flag stays set
// until a freeze succeeds or the stream is aborted, so a freeze attempt
// that races the transport's idle flip can be retried.
func (s *Store) MarkFinalized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = true
}

// Finalized reports whether the finalization flag is set.
func (s *Store) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

// AbortFinalize clears the finalization flag without freezing. Called on
// stream errors so the sticky flag cannot outlive a stream that will
// never report idle.
func (s *Store) AbortFinalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = false
}

// TryFreeze snapshots the live buffer under the last message's id when
// every precondition holds: the finalization flag is set, the transport
// is idle, and the most recent message is agent-authored with an id.
// Otherwise it is a no-op and the flag stays set for a later retry.
// On success the flag is cleared and the frozen message id returned;
// the caller clears the live buffer when it is done rendering.
func (s *Store) TryFreeze(messages []transport.Message, isLoading bool) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finalized || isLoading || len(messages) == 0 {
		return "", false
	}
	last := messages[len(messages)-1]
	if last.Type != transport.RoleAI || last.ID == "" {
		return "", false
	}

	s.historical[last.ID] = copyEntries(s.live)
	s.finalized = false
	logging.Get(logging.CategoryStream).Info(
		"froze %d timeline entries under message %s", len(s.live), last.ID)
	return last.ID, true
}

// History returns the frozen timeline for a message id, if any.
func (s *Store) History(messageID string) ([]Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.historical[messageID]
	if !ok {
		return nil, false
	}
	return copyEntries(entries), true
}

// Snapshot returns a copy of the full historical map.
func (s *Store) Snapshot() map[string][]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]Entry, len(s.historical))
	for id, entries := range s.historical {
		out[id] = copyEntries(entries)
	}
	return out
}

// RestoreHistory replaces the historical map, used when a persisted
// conversation is selected. Passing nil installs an empty map.
func (s *Store) RestoreHistory(historical map[string][]Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historical = make(map[string][]Entry, len(historical))
	for id, entries := range historical {
		s.historical[id] = copyEntries(entries)
	}
}

// Reset clears live buffer, history, and the finalization flag, and
// bumps the generation. Used when the active conversation is deleted.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.live = nil
	s.historical = make(map[string][]Entry)
	s.finalized = false
}

func copyEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
