package chat

import "github.com/wuwenbin0122/webhook-chat/internal/models"

// EventType names a session mutation.
type EventType string

const (
	EventMessage   EventType = "message"
	EventBusy      EventType = "busy"
	EventOpen      EventType = "open"
	EventDraft     EventType = "draft"
	EventNotice    EventType = "notice"
	EventDiscarded EventType = "discarded"
)

// Event is published after every session mutation. Busy and Open always carry the
// flags as they were right after the mutation. Seq increases by one per event of
// a session and listeners receive events in Seq order.
type Event struct {
	Seq       uint64          `json:"seq"`
	Type      EventType       `json:"type"`
	SessionID string          `json:"sessionId"`
	Busy      bool            `json:"busy"`
	Open      bool            `json:"open"`
	Message   *models.Message `json:"message,omitempty"`
	Draft     string          `json:"draft,omitempty"`
	Notice    string          `json:"notice,omitempty"`
}

// Listener receives session events. Publish is called without the session lock
// held, so implementations may read the session state. Publish runs on
// whichever goroutine is flushing the session's events.
type Listener interface {
	Publish(Event)
}
