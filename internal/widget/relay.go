package widget

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/webhook-chat/internal/chat"
)

const relayBuffer = 64

// EventMsg carries a session event into the bubbletea update loop.
type EventMsg chat.Event

// Relay implements chat.Listener by buffering events for the update loop. Publish
// never blocks: the session publishes from inside Update as well as from the
// exchange goroutine.
type Relay struct {
	events chan chat.Event
	logger *zap.SugaredLogger

	mu     sync.Mutex
	notice *chat.Event
}

func NewRelay(logger *zap.SugaredLogger) *Relay {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Relay{events: make(chan chat.Event, relayBuffer), logger: logger}
}

// Publish drops other events when the buffer is full; the view renders from the
// session snapshot, so it catches up on the next event. A notice that does not
// fit is held back and handed out by the next Next.
func (r *Relay) Publish(e chat.Event) {
	select {
	case r.events <- e:
		return
	default:
	}

	if e.Type == chat.EventNotice {
		r.mu.Lock()
		r.notice = &e
		r.mu.Unlock()
		r.logger.Warnw("widget event buffer full, holding notice", "session_id", e.SessionID, "seq", e.Seq)
		return
	}

	r.logger.Warnw("widget event buffer full, dropping event", "session_id", e.SessionID, "type", e.Type, "seq", e.Seq)
}

// Next returns a command that waits for the next event.
func (r *Relay) Next() tea.Cmd {
	return func() tea.Msg {
		r.mu.Lock()
		held := r.notice
		r.notice = nil
		r.mu.Unlock()

		if held != nil {
			return EventMsg(*held)
		}
		return EventMsg(<-r.events)
	}
}
