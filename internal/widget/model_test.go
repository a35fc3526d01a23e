package widget

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuwenbin0122/webhook-chat/internal/chat"
)

type scriptedExchanger struct {
	release chan struct{}
	reply   string
	err     error
}

func (s *scriptedExchanger) Exchange(ctx context.Context, text, conversationID string) (string, error) {
	<-s.release
	return s.reply, s.err
}

func newTestModel(t *testing.T, exchanger *scriptedExchanger) (Model, *chat.Session, *Relay) {
	t.Helper()
	relay := NewRelay(nil)
	session := chat.NewSession(chat.NewCoordinator(exchanger, nil), chat.Options{
		Greeting: chat.DefaultGreeting,
		Listener: relay,
	})
	t.Cleanup(session.Discard)
	return NewModel(session, relay), session, relay
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// drain feeds buffered session events into the model until an idle event of
// type until has been handled.
func drain(t *testing.T, m Model, relay *Relay, until chat.EventType) Model {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-relay.events:
			m = update(t, m, EventMsg(e))
			if e.Type == until && !e.Busy {
				return m
			}
		case <-deadline:
			t.Fatal("session did not settle")
		}
	}
}

func TestLauncherWhenClosed(t *testing.T) {
	m, session, _ := newTestModel(t, &scriptedExchanger{release: make(chan struct{})})

	assert.False(t, session.IsOpen())
	assert.Contains(t, m.View(), "Chat with "+title)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.True(t, session.IsOpen())
	assert.Contains(t, m.View(), chat.DefaultGreeting)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, session.IsOpen())
}

func TestTypingUpdatesDraft(t *testing.T) {
	m, session, _ := newTestModel(t, &scriptedExchanger{release: make(chan struct{})})
	session.SetOpen(true)

	typeText(t, m, "hello")

	assert.Equal(t, "hello", session.Draft())
}

func TestKeysIgnoredWhileClosed(t *testing.T) {
	m, session, _ := newTestModel(t, &scriptedExchanger{release: make(chan struct{})})

	typeText(t, m, "hello")

	assert.Empty(t, session.Draft())
}

func TestSubmitShowsTypingThenReply(t *testing.T) {
	exchanger := &scriptedExchanger{release: make(chan struct{}), reply: "Hi there"}
	m, session, relay := newTestModel(t, exchanger)
	session.SetOpen(true)

	m = typeText(t, m, "hello")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.True(t, session.Busy())
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), typingLabel)

	// input is locked while busy
	m = typeText(t, m, "more")
	assert.Empty(t, session.Draft())

	close(exchanger.release)
	m = drain(t, m, relay, chat.EventBusy)

	messages := session.Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, "Hi there", messages[2].Content)
	assert.NotContains(t, m.View(), typingLabel)
	assert.Contains(t, m.View(), "Hi there")
}

func TestFailureShowsNotice(t *testing.T) {
	exchanger := &scriptedExchanger{release: make(chan struct{}), err: errors.New("boom")}
	close(exchanger.release)
	m, session, relay := newTestModel(t, exchanger)
	session.SetOpen(true)

	m = typeText(t, m, "hello")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = drain(t, m, relay, chat.EventNotice)

	assert.Equal(t, chat.FailureNotice, m.notice)
	assert.Len(t, session.Messages(), 2)

	m = typeText(t, m, "again")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.notice)
	drain(t, m, relay, chat.EventNotice)
}

func TestBlankEnterIsNoop(t *testing.T) {
	m, session, _ := newTestModel(t, &scriptedExchanger{release: make(chan struct{})})
	session.SetOpen(true)

	m = typeText(t, m, "   ")
	update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, session.Busy())
	assert.Len(t, session.Messages(), 1)
}

func TestQuitDiscardsSession(t *testing.T) {
	m, session, _ := newTestModel(t, &scriptedExchanger{release: make(chan struct{})})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.True(t, session.Discarded())
}
