package widget

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.Color("#2563EB")
	muted   = lipgloss.Color("#6B7280")
	danger  = lipgloss.Color("#DC2626")

	launcherStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primary).
			Padding(0, 2).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primary).
			Padding(0, 1).
			Bold(true)

	windowStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary)

	userStyle      = lipgloss.NewStyle().Foreground(primary).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#111827")).Bold(true)
	timeStyle      = lipgloss.NewStyle().Foreground(muted)
	typingStyle    = lipgloss.NewStyle().Foreground(muted).Italic(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(danger).Bold(true)
	helpStyle      = lipgloss.NewStyle().Foreground(muted)
)
