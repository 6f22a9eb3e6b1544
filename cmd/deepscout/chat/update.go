package chat

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"

	"deepscout/internal/classify"
	"deepscout/internal/confirm"
	"deepscout/internal/export"
	"deepscout/internal/logging"
	"deepscout/internal/transport"
)

// viewportSurface adapts the viewport for the scroll reconciler.
type viewportSurface struct {
	vp *viewport.Model
}

func (s viewportSurface) DistanceFromBottom() int {
	return s.vp.TotalLineCount() - (s.vp.YOffset + s.vp.Height)
}

func (s viewportSurface) GotoBottom() { s.vp.GotoBottom() }

// Update is the single dispatch point for all client state changes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.viewMode == ChatView {
			m.viewport, vpCmd = m.viewport.Update(msg)
			m.scroll.OnUserScroll(viewportSurface{&m.viewport})
		}
		return m, vpCmd

	case spinner.TickMsg:
		if m.cfg.Transport.IsLoading() {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}
		return m, nil

	case streamEventMsg:
		return m.handleStreamEvent(transport.Event(msg))

	case streamErrorMsg:
		serr := transport.StreamError(msg)
		if serr.Generation == m.cfg.Timeline.Generation() {
			m.streamErr = serr.Err
			// The stream will never report idle; drop the sticky flag so
			// a later freeze cannot deadlock on it.
			m.cfg.Timeline.AbortFinalize()
			logging.Get(logging.CategoryStream).Error("stream failed: %v", serr.Err)
		}
		return m, m.listenErrors()
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	footer := m.textarea.Height() + 2
	m.viewport.Width = w
	m.viewport.Height = h - footer
	m.textarea.SetWidth(w)
	m.sessionList.SetSize(w, h-2)
	if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(max(w-4, 20))); err == nil {
		m.renderer = r
	}
	m.ready = true
	m.refreshViewport()
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.Close()
		return m, tea.Quit
	}

	// A dismissible notice clears on the next keypress.
	m.notice = ""

	switch m.viewMode {
	case SessionsView:
		return m.handleSessionsKey(msg)
	case ConfirmView:
		return m.handleConfirmKey(msg)
	case ConfirmEditView:
		return m.handleConfirmEditKey(msg)
	}

	switch msg.String() {
	case "esc":
		m.Close()
		return m, tea.Quit
	case "ctrl+s":
		m.syncSessionList()
		m.viewMode = SessionsView
		return m, nil
	case "ctrl+n":
		m.startNewConversation()
		return m, nil
	case "enter":
		return m.handleSubmit()
	}

	var tiCmd, vpCmd tea.Cmd
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	m.scroll.OnUserScroll(viewportSurface{&m.viewport})
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m Model) handleSessionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.viewMode = ChatView
		return m, nil
	case "enter":
		if item, ok := m.sessionList.SelectedItem().(sessionItem); ok {
			m.selectConversation(item.id)
		}
		m.viewMode = ChatView
		return m, nil
	case "d":
		if item, ok := m.sessionList.SelectedItem().(sessionItem); ok {
			m.deleteConversation(item.id)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.sessionList, cmd = m.sessionList.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.cfg.Confirm.Confirm()
		m.viewMode = ChatView
	case "e":
		m.textarea.SetValue(strings.Join(m.cfg.Confirm.Queries(), " | "))
		m.viewMode = ConfirmEditView
	case "n", "esc":
		m.cfg.Confirm.Cancel()
		m.viewMode = ChatView
	}
	return m, nil
}

func (m Model) handleConfirmEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		queries := strings.Split(m.textarea.Value(), "|")
		if err := m.cfg.Confirm.Modify(queries); err != nil {
			if errors.Is(err, confirm.ErrNoQueries) {
				m.notice = "At least one query is required"
				return m, nil
			}
			m.streamErr = err
		}
		m.textarea.Reset()
		m.viewMode = ChatView
		return m, nil
	case "esc":
		m.textarea.Reset()
		m.viewMode = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// =============================================================================
// SUBMIT & SESSION ACTIONS
// =============================================================================

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/export") {
		m.handleExport(text)
		m.textarea.Reset()
		return m, nil
	}
	if m.streamErr != nil {
		// The stream is in a terminal error state; only an explicit reset
		// starts a new exchange.
		m.notice = "Stream failed; press ctrl+n to start over"
		return m, nil
	}

	if m.cfg.Sessions.CurrentID() == "" {
		if _, err := m.cfg.Sessions.CreateFromFirstMessage(text); err != nil {
			m.notice = "Could not persist conversation: " + err.Error()
		}
		m.syncSessionList()
	}

	gen := m.cfg.Timeline.NextGeneration()
	msgs := append(m.cfg.Transport.Messages(), transport.Message{
		ID:      uuid.NewString(),
		Type:    transport.RoleHuman,
		Content: text,
	})
	queryCount, maxLoops := transport.EffortParams(m.cfg.Effort)
	m.cfg.Transport.Submit(transport.Request{
		Generation:        gen,
		Messages:          msgs,
		InitialQueryCount: queryCount,
		MaxResearchLoops:  maxLoops,
		ReasoningModel:    m.cfg.Model,
	})

	m.textarea.Reset()
	m.refreshViewport()
	return m, m.spinner.Tick
}

func (m *Model) startNewConversation() {
	m.cfg.Sessions.Deselect(m.cfg.Transport.Messages(), m.cfg.Timeline.Snapshot())
	m.cfg.Transport.Stop()
	m.cfg.Transport.Initialize(nil)
	m.cfg.Timeline.Reset()
	m.streamErr = nil
	m.pendingQueries = nil
	m.viewMode = ChatView
	m.syncSessionList()
	m.refreshViewport()
}

func (m *Model) selectConversation(id string) {
	conv, ok := m.cfg.Sessions.Select(id, m.cfg.Transport.Messages(), m.cfg.Timeline.Snapshot())
	if !ok {
		return
	}
	// Consume the one-shot handoff the selection recorded.
	m.cfg.Sessions.TakeSelected()

	m.cfg.Transport.Stop()
	m.cfg.Timeline.NextGeneration()
	m.cfg.Timeline.RestoreHistory(conv.Activities)
	m.cfg.Transport.Initialize(conv.Messages)
	m.streamErr = nil
	m.pendingQueries = nil
	m.syncSessionList()
	m.refreshViewport()
}

func (m *Model) deleteConversation(id string) {
	wasCurrent := m.cfg.Sessions.CurrentID() == id
	if err := m.cfg.Sessions.Delete(id); err != nil {
		m.notice = "Delete failed: " + err.Error()
		return
	}
	if wasCurrent {
		m.cfg.Transport.Stop()
		m.cfg.Transport.Initialize(nil)
		m.cfg.Timeline.Reset()
		m.streamErr = nil
	}
	m.syncSessionList()
	m.refreshViewport()
}

// handleExport renders the current answer to a file in the working
// directory. Failures surface as a dismissible notice and never touch
// session state.
func (m *Model) handleExport(command string) {
	opts := export.FromMessages(m.cfg.Transport.Messages())
	fields := strings.Fields(command)
	if len(fields) > 1 {
		opts.Format = fields[1]
	}

	art, err := export.Render(opts)
	if err != nil {
		m.notice = "Export failed: " + err.Error()
		return
	}
	if err := os.WriteFile(art.Filename, art.Data, 0o644); err != nil {
		m.notice = "Export failed: " + err.Error()
		return
	}
	m.notice = "Exported " + art.Filename
}

// =============================================================================
// STREAM HANDLING
// =============================================================================

func (m Model) handleStreamEvent(ev transport.Event) (tea.Model, tea.Cmd) {
	cmd := m.listenEvents()

	if ev.Generation != m.cfg.Timeline.Generation() {
		logging.Get(logging.CategoryStream).Debug(
			"dropped event from generation %d (current %d)", ev.Generation, m.cfg.Timeline.Generation())
		return m, cmd
	}

	out := classify.Classify(ev.Payload)
	if out.Entry != nil {
		m.cfg.Timeline.Append(ev.Generation, *out.Entry)
	}
	if len(out.Queries) > 0 {
		m.pendingQueries = out.Queries
	}
	if out.AwaitingConfirmation {
		queries := out.Queries
		if len(queries) == 0 {
			queries = m.pendingQueries
		}
		if len(queries) > 0 && m.cfg.Confirm.Propose(queries) {
			m.viewMode = ConfirmView
		}
	}
	if out.Finalized {
		m.cfg.Timeline.MarkFinalized()
	}

	m.refreshViewport()
	m.tryFreeze()
	return m, cmd
}

// tryFreeze attempts the finalization freeze and, when it lands, records
// the finished exchange on the current conversation.
func (m *Model) tryFreeze() {
	msgs := m.cfg.Transport.Messages()
	id, ok := m.cfg.Timeline.TryFreeze(msgs, m.cfg.Transport.IsLoading())
	if !ok {
		return
	}
	entries, _ := m.cfg.Timeline.History(id)
	if err := m.cfg.Sessions.FinalizeExchange(msgs, id, entries); err != nil {
		m.notice = "Could not persist exchange: " + err.Error()
	}
	m.cfg.Timeline.ClearLive()
	m.syncSessionList()
	m.refreshViewport()
}
