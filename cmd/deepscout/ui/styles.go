package ui

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	colorAccent  = lipgloss.Color("39")  // blue
	colorUser    = lipgloss.Color("212") // pink
	colorAgent   = lipgloss.Color("252") // light gray
	colorMuted   = lipgloss.Color("241")
	colorError   = lipgloss.Color("196")
	colorPending = lipgloss.Color("220") // yellow
	colorDone    = lipgloss.Color("42")  // green
)

// Chat styles.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	UserLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorUser)

	AgentLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	MessageStyle = lipgloss.NewStyle().
			Foreground(colorAgent)

	MutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorError)

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)
)

// Timeline styles.
var (
	TimelineTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent)

	TimelinePendingStyle = lipgloss.NewStyle().
				Foreground(colorPending)

	TimelineDoneStyle = lipgloss.NewStyle().
				Foreground(colorDone)

	TimelineSummaryStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				PaddingLeft(2)
)

// Overlay styles.
var (
	OverlayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)

	OverlayTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPending)
)

// Sidebar styles.
var (
	SidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(colorMuted).
			Padding(0, 1)

	SidebarSelectedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent)
)
