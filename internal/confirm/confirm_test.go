package confirm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepscout/internal/timeline"
	"deepscout/internal/transport"
)

type fakeTransport struct {
	messages  []transport.Message
	stops     int
	submitted []transport.Request
}

func (f *fakeTransport) Submit(req transport.Request)            { f.submitted = append(f.submitted, req) }
func (f *fakeTransport) Stop()                                   { f.stops++ }
func (f *fakeTransport) Initialize(msgs []transport.Message)     { f.messages = msgs }
func (f *fakeTransport) Messages() []transport.Message           { return f.messages }
func (f *fakeTransport) IsLoading() bool                         { return false }
func (f *fakeTransport) Events() <-chan transport.Event          { return nil }
func (f *fakeTransport) Errors() <-chan transport.StreamError    { return nil }

func newTestCoordinator() (*Coordinator, *fakeTransport, *timeline.Store) {
	ft := &fakeTransport{messages: []transport.Message{
		{ID: "h1", Type: transport.RoleHuman, Content: "how do rockets land?"},
	}}
	store := timeline.NewStore()
	return NewCoordinator(ft, store, "gemini-2.5-pro"), ft, store
}

func TestCoordinator_ProposeIsOneShot(t *testing.T) {
	c, _, _ := newTestCoordinator()

	assert.True(t, c.Propose([]string{"q1", "q2"}))
	assert.True(t, c.Awaiting())

	// The pipeline re-emits the stage each loop; later proposals are noise.
	assert.False(t, c.Propose([]string{"other"}))
	assert.Equal(t, []string{"q1", "q2"}, c.Queries())
}

func TestCoordinator_ConfirmResubmitsSentinel(t *testing.T) {
	c, ft, store := newTestCoordinator()
	gen := store.Generation()

	c.Propose([]string{"rocket landing burn", "grid fins"})
	c.Confirm()

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, ft.stops)
	require.Len(t, ft.submitted, 1)

	req := ft.submitted[0]
	assert.Equal(t, store.Generation(), req.Generation, "resubmission tagged with the fresh generation")
	assert.Equal(t, 2, req.InitialQueryCount)
	assert.Equal(t, 3, req.MaxResearchLoops)
	assert.Equal(t, "gemini-2.5-pro", req.ReasoningModel)

	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, transport.RoleHuman, last.Type)
	assert.Equal(t, "[queries confirmed] rocket landing burn | grid fins", last.Content)
	assert.NotEmpty(t, last.ID)

	// Pending events from the paused stream are invalidated.
	assert.Greater(t, store.Generation(), gen)
}

func TestCoordinator_ModifyTrimsAndValidates(t *testing.T) {
	c, ft, _ := newTestCoordinator()
	c.Propose([]string{"q1"})

	// All-blank edits keep the handshake open.
	err := c.Modify([]string{"  ", ""})
	assert.ErrorIs(t, err, ErrNoQueries)
	assert.True(t, c.Awaiting())
	assert.Empty(t, ft.submitted)

	require.NoError(t, c.Modify([]string{" falcon 9 reuse ", "", "starship booster catch"}))
	assert.Equal(t, StateIdle, c.State())
	require.Len(t, ft.submitted, 1)

	req := ft.submitted[0]
	assert.Equal(t, 2, req.InitialQueryCount)
	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, "[queries confirmed] falcon 9 reuse | starship booster catch", last.Content)
}

func TestCoordinator_CancelStopsOnly(t *testing.T) {
	c, ft, _ := newTestCoordinator()
	c.Propose([]string{"q1"})

	c.Cancel()

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, ft.stops)
	assert.Empty(t, ft.submitted)
	assert.Empty(t, c.Queries())
}

func TestCoordinator_ActionsIgnoredWhenIdle(t *testing.T) {
	c, ft, _ := newTestCoordinator()

	c.Confirm()
	assert.NoError(t, c.Modify([]string{"q"}))
	c.Cancel()

	assert.Zero(t, ft.stops)
	assert.Empty(t, ft.submitted)
}
