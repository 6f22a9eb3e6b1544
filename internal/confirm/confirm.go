// Package confirm implements the query confirmation handshake: when the
// engine proposes search queries, the exchange pauses until the user
// confirms, edits, or cancels them.
package confirm

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"deepscout/internal/logging"
	"deepscout/internal/timeline"
	"deepscout/internal/transport"
)

// ErrNoQueries is returned by Modify when the edited set is empty after
// trimming.
var ErrNoQueries = errors.New("confirm: at least one non-empty query is required")

// Coordinator state.
const (
	StateIdle     = "idle"
	StateAwaiting = "awaiting_confirmation"
)

// Loop budget for a confirmed resubmission. The user already vetted the
// queries, so the follow-up budget is fixed rather than effort-derived.
const confirmedMaxLoops = 3

// Coordinator drives the pause/resume handshake. It is only touched from
// the client's single update goroutine, so it carries no lock.
type Coordinator struct {
	transport      transport.Transport
	store          *timeline.Store
	reasoningModel string

	state   string
	queries []string
}

// NewCoordinator returns an idle coordinator. Confirmed resubmissions
// always run under reasoningModel.
func NewCoordinator(t transport.Transport, store *timeline.Store, reasoningModel string) *Coordinator {
	return &Coordinator{
		transport:      t,
		store:          store,
		reasoningModel: reasoningModel,
		state:          StateIdle,
	}
}

// State returns the current handshake state.
func (c *Coordinator) State() string { return c.state }

// Awaiting reports whether a confirmation is pending.
func (c *Coordinator) Awaiting() bool { return c.state == StateAwaiting }

// Queries returns the proposed query set.
func (c *Coordinator) Queries() []string {
	out := make([]string, len(c.queries))
	copy(out, c.queries)
	return out
}

// Propose moves to AwaitingConfirmation with the engine's proposed
// queries. While a confirmation is already pending, later proposals are
// ignored; the pipeline re-emits the stage on every loop.
func (c *Coordinator) Propose(queries []string) bool {
	if c.state == StateAwaiting {
		return false
	}
	c.state = StateAwaiting
	c.queries = append([]string(nil), queries...)
	logging.Get(logging.CategoryConfirm).Info("proposed %d queries for confirmation", len(queries))
	return true
}

// Confirm accepts the proposed queries as-is and resumes research.
func (c *Coordinator) Confirm() {
	if c.state != StateAwaiting {
		return
	}
	c.resume(c.queries)
}

// Modify replaces the proposed queries with the user's edited set and
// resumes research. Entries are trimmed; an empty result leaves the
// handshake in place and returns ErrNoQueries.
func (c *Coordinator) Modify(queries []string) error {
	if c.state != StateAwaiting {
		return nil
	}
	var final []string
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			final = append(final, q)
		}
	}
	if len(final) == 0 {
		return ErrNoQueries
	}
	c.resume(final)
	return nil
}

// Cancel abandons the proposed queries and stops the stream. Nothing is
// resubmitted; the conversation stays where it is.
func (c *Coordinator) Cancel() {
	if c.state != StateAwaiting {
		return
	}
	c.transport.Stop()
	c.state = StateIdle
	c.queries = nil
	logging.Get(logging.CategoryConfirm).Info("confirmation cancelled")
}

// resume stops the paused stream, invalidates its pending events, and
// resubmits with the confirmed queries carried in a sentinel message.
// The return to Idle is optimistic: the resubmission's outcome arrives
// later as ordinary stream events.
func (c *Coordinator) resume(final []string) {
	c.transport.Stop()
	gen := c.store.NextGeneration()

	msgs := append(c.transport.Messages(), transport.Message{
		ID:      uuid.NewString(),
		Type:    transport.RoleHuman,
		Content: transport.EncodeConfirmedQueries(final),
	})
	c.transport.Submit(transport.Request{
		Generation:        gen,
		Messages:          msgs,
		InitialQueryCount: len(final),
		MaxResearchLoops:  confirmedMaxLoops,
		ReasoningModel:    c.reasoningModel,
	})

	c.state = StateIdle
	c.queries = nil
	logging.Get(logging.CategoryConfirm).Info("resumed research with %d confirmed queries", len(final))
}
