// Package chat implements the interactive research client: a terminal
// chat over the research agent with a live activity timeline, persisted
// conversations, and the query confirmation handshake.
package chat

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"deepscout/cmd/deepscout/ui"
	"deepscout/internal/confirm"
	"deepscout/internal/logging"
	"deepscout/internal/session"
	"deepscout/internal/timeline"
	"deepscout/internal/transport"
)

// =============================================================================
// CONFIGURATION & MODES
// =============================================================================

// Config wires the client's collaborators.
type Config struct {
	Transport transport.Transport
	Sessions  *session.Manager
	Timeline  *timeline.Store
	Confirm   *confirm.Coordinator
	Effort    string
	Model     string // reasoning model carried on every request
}

// ViewMode selects which surface has the keyboard.
type ViewMode int

const (
	ChatView ViewMode = iota
	SessionsView
	ConfirmView
	ConfirmEditView
)

// sessionItem adapts a conversation for the bubbles list.
type sessionItem struct {
	id    string
	title string
	last  string
}

func (i sessionItem) Title() string       { return i.title }
func (i sessionItem) Description() string { return i.last }
func (i sessionItem) FilterValue() string { return i.title + " " + i.last }

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model for the chat client.
type Model struct {
	cfg Config

	textarea    textarea.Model
	viewport    viewport.Model
	spinner     spinner.Model
	sessionList list.Model
	renderer    *glamour.TermRenderer
	scroll      *ui.ScrollReconciler

	viewMode       ViewMode
	pendingQueries []string
	streamErr      error
	notice         string
	width, height  int
	ready          bool
}

// Messages for tea updates.
type (
	streamEventMsg transport.Event
	streamErrorMsg transport.StreamError
)

// New builds the chat model, loading persisted conversations and
// resuming the previously selected one if a handoff is recorded.
func New(cfg Config) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a research question..."
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ui.TitleStyle

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = ui.SidebarSelectedStyle
	sl := list.New(nil, delegate, 0, 0)
	sl.Title = "Conversations"
	sl.SetShowStatusBar(false)

	m := Model{
		cfg:         cfg,
		textarea:    ta,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
		sessionList: sl,
		scroll:      ui.NewScrollReconciler(),
	}

	cfg.Sessions.Load()
	if id, ok := cfg.Sessions.TakeSelected(); ok {
		if conv, found := cfg.Sessions.Activate(id); found {
			cfg.Transport.Initialize(conv.Messages)
			cfg.Timeline.RestoreHistory(conv.Activities)
			logging.Get(logging.CategorySession).Info("resumed conversation %s", id)
		}
	}
	m.syncSessionList()
	return m
}

// Init starts the stream listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.listenEvents(),
		m.listenErrors(),
	)
}

// listenEvents waits for the next stream event.
func (m Model) listenEvents() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.cfg.Transport.Events()
		if !ok {
			return nil
		}
		return streamEventMsg(ev)
	}
}

// listenErrors waits for the next stream error.
func (m Model) listenErrors() tea.Cmd {
	return func() tea.Msg {
		serr, ok := <-m.cfg.Transport.Errors()
		if !ok {
			return nil
		}
		return streamErrorMsg(serr)
	}
}

// syncSessionList mirrors the session manager into the sidebar list.
func (m *Model) syncSessionList() {
	convs := m.cfg.Sessions.Conversations()
	items := make([]list.Item, len(convs))
	for i, c := range convs {
		items[i] = sessionItem{id: c.ID, title: c.Title, last: c.LastMessage}
	}
	m.sessionList.SetItems(items)
}

// Close releases timers before the program exits.
func (m *Model) Close() {
	m.scroll.Close()
	m.cfg.Transport.Stop()
}

// RunInteractiveChat runs the chat UI until the user quits.
func RunInteractiveChat(cfg Config) error {
	m := New(cfg)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat ui: %w", err)
	}
	return nil
}
