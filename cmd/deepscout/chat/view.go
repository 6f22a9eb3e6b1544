package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"deepscout/cmd/deepscout/ui"
	"deepscout/internal/timeline"
	"deepscout/internal/transport"
)

// refreshViewport rebuilds the transcript: each exchange's messages with
// the frozen timeline above its answer, plus the live timeline while a
// stream is running.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for _, msg := range m.cfg.Transport.Messages() {
		switch msg.Type {
		case transport.RoleHuman:
			if _, confirmed := transport.DecodeConfirmedQueries(msg.Content); confirmed {
				b.WriteString(ui.MutedStyle.Render("(confirmed search queries)") + "\n\n")
				continue
			}
			b.WriteString(ui.UserLabelStyle.Render("You") + "\n")
			b.WriteString(ui.MessageStyle.Render(msg.Content) + "\n\n")
		case transport.RoleAI:
			if entries, ok := m.cfg.Timeline.History(msg.ID); ok {
				b.WriteString(m.renderTimeline(entries))
			}
			b.WriteString(ui.AgentLabelStyle.Render("DeepScout") + "\n")
			b.WriteString(m.renderMarkdown(msg.Content) + "\n\n")
		}
	}

	if live := m.cfg.Timeline.Live(); len(live) > 0 {
		b.WriteString(m.renderTimeline(live))
	}

	m.viewport.SetContent(b.String())
	m.scroll.OnContentGrowth(viewportSurface{&m.viewport})
}

func (m *Model) renderTimeline(entries []timeline.Entry) string {
	var b strings.Builder
	b.WriteString(ui.TimelineTitleStyle.Render("Research activity") + "\n")
	for _, e := range entries {
		marker := ui.TimelineDoneStyle.Render("●")
		if e.Status == timeline.StatusPending {
			marker = ui.TimelinePendingStyle.Render("◌")
		}
		b.WriteString(fmt.Sprintf("%s %s\n", marker, e.Title))
		if e.Summary != "" {
			b.WriteString(ui.TimelineSummaryStyle.Render(e.Summary) + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// View renders the active surface.
func (m Model) View() string {
	if !m.ready {
		return "initializing..."
	}

	switch m.viewMode {
	case SessionsView:
		return ui.SidebarStyle.Render(m.sessionList.View()) + "\n" +
			ui.HelpStyle.Render("enter: open · d: delete · esc: back")
	case ConfirmView:
		return m.confirmOverlay()
	case ConfirmEditView:
		return m.confirmEditOverlay()
	}

	if m.streamErr != nil {
		return m.errorView()
	}

	var body string
	if len(m.cfg.Transport.Messages()) == 0 && !m.cfg.Transport.IsLoading() {
		body = m.welcomeView()
	} else {
		body = m.viewport.View()
	}

	return body + "\n" + m.footerView()
}

func (m Model) footerView() string {
	status := ""
	switch {
	case m.notice != "":
		status = ui.MutedStyle.Render(m.notice)
	case m.cfg.Transport.IsLoading():
		status = m.spinner.View() + ui.MutedStyle.Render(" researching...")
	default:
		status = ui.HelpStyle.Render("enter: send · ctrl+s: conversations · ctrl+n: new · /export [md|html|json] · esc: quit")
	}
	return m.textarea.View() + "\n" + status
}

func (m Model) welcomeView() string {
	welcome := ui.TitleStyle.Render("DeepScout") + "\n\n" +
		"Ask anything. The agent plans search queries, researches the web,\n" +
		"verifies what it finds, and reports back with cited sources.\n\n" +
		ui.MutedStyle.Render("Effort: "+m.cfg.Effort)
	return lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, welcome)
}

func (m Model) errorView() string {
	body := ui.ErrorStyle.Render("Research stream failed") + "\n\n" +
		m.streamErr.Error() + "\n\n" +
		ui.HelpStyle.Render("ctrl+n: start a new conversation · esc: quit")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m Model) confirmOverlay() string {
	var b strings.Builder
	b.WriteString(ui.OverlayTitleStyle.Render("Confirm search queries") + "\n\n")
	for i, q := range m.cfg.Confirm.Queries() {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, q))
	}
	b.WriteString("\n" + ui.HelpStyle.Render("y: confirm · e: edit · n: cancel"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		ui.OverlayStyle.Render(b.String()))
}

func (m Model) confirmEditOverlay() string {
	body := ui.OverlayTitleStyle.Render("Edit search queries") + "\n\n" +
		"Separate queries with | and press enter.\n\n" +
		m.textarea.View() + "\n\n" +
		ui.HelpStyle.Render("enter: run · esc: back")
	if m.notice != "" {
		body += "\n" + ui.ErrorStyle.Render(m.notice)
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		ui.OverlayStyle.Render(body))
}
