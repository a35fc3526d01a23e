// Package widget renders a chat session in the terminal.
package widget

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wuwenbin0122/webhook-chat/internal/chat"
	"github.com/wuwenbin0122/webhook-chat/internal/models"
)

const (
	typingLabel = "Assistant is typing..."
	title       = "Admin Assistant"
	placeholder = "Type your message..."
)

// Model is the bubbletea model of one mounted widget.
type Model struct {
	session *chat.Session
	relay   *Relay

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	notice string
	width  int
	height int
}

// NewModel mounts the view for session. relay must be the listener the session
// was created with.
func NewModel(session *chat.Session, relay *Relay) Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = typingStyle

	vp := viewport.New(80, 20)

	m := Model{
		session:  session,
		relay:    relay,
		input:    ti,
		spinner:  sp,
		viewport: vp,
		width:    80,
		height:   24,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.relay.Next())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case EventMsg:
		return m.handleEvent(chat.Event(msg))

	case spinner.TickMsg:
		if !m.session.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleEvent(e chat.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.relay.Next()}

	switch e.Type {
	case chat.EventNotice:
		m.notice = e.Notice
	case chat.EventBusy:
		if e.Busy {
			cmds = append(cmds, m.spinner.Tick)
		}
	case chat.EventDiscarded:
		return m, tea.Quit
	}

	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.session.Discard()
		return m, tea.Quit
	case "ctrl+o":
		m.session.Toggle()
		m.refresh()
		return m, nil
	}

	if !m.session.IsOpen() {
		if msg.String() == "q" {
			m.session.Discard()
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.session.SetOpen(false)
		return m, nil
	case "enter":
		return m.submit()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// input is locked while an exchange is pending
	if m.session.Busy() {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.session.SetDraft(m.input.Value())
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	m.session.SetDraft(m.input.Value())
	if _, ok := m.session.SubmitDraft(context.Background()); !ok {
		return m, nil
	}

	m.notice = ""
	m.input.Reset()
	m.refresh()
	return m, m.spinner.Tick
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	// border, header, typing line, notice line, input, help
	m.viewport.Width = max(width-2, 10)
	m.viewport.Height = max(height-8, 3)
	m.input.Width = max(width-6, 10)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderMessages(m.session.Messages(), m.viewport.Width))
	m.viewport.GotoBottom()
}

func renderMessages(messages []models.Message, width int) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}

		label := assistantStyle.Render(msg.Role.DisplayName())
		if msg.IsUser() {
			label = userStyle.Render(msg.Role.DisplayName())
		}

		b.WriteString(label + " " + timeStyle.Render(msg.Clock()) + "\n")
		b.WriteString(lipgloss.NewStyle().Width(max(width-2, 1)).Render(msg.Content))
	}
	return b.String()
}

func (m Model) View() string {
	if !m.session.IsOpen() {
		return launcherStyle.Render("Chat with "+title) + "\n" +
			helpStyle.Render("ctrl+o open • q quit")
	}

	sections := []string{
		headerStyle.Width(max(m.width-2, 10)).Render(title),
		m.viewport.View(),
	}

	if m.session.Busy() {
		sections = append(sections, m.spinner.View()+" "+typingStyle.Render(typingLabel))
	} else {
		sections = append(sections, "")
	}

	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	} else {
		sections = append(sections, "")
	}

	sections = append(sections, m.input.View())

	return windowStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...)) + "\n" +
		helpStyle.Render("enter send • esc minimize • ctrl+o toggle • ctrl+c quit")
}
