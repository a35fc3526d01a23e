package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wuwenbin0122/webhook-chat/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultIDPrefix = "admin-session-"
	DefaultGreeting = "Hello! I'm your admin assistant. How can I help you today?"
)

// Options configures a new session.
type Options struct {
	// IDPrefix is prepended to the generated session id.
	IDPrefix string
	// Greeting seeds the log with an assistant message. Empty means no greeting.
	Greeting string
	Listener Listener
	Logger   *zap.SugaredLogger
}

// State is a point-in-time copy of a session. Seq is the Seq of the last event
// emitted before the snapshot was taken.
type State struct {
	ID       string           `json:"id"`
	Seq      uint64           `json:"seq"`
	Open     bool             `json:"open"`
	Draft    string           `json:"draft"`
	Busy     bool             `json:"busy"`
	Messages []models.Message `json:"messages"`
}

// Session holds the state of one mounted chat view: the message log, the draft,
// the busy flag and the open/closed flag. At most one exchange is in flight at a
// time; submissions made while one is pending are rejected, not queued.
type Session struct {
	id          string
	coordinator *Coordinator
	listener    Listener
	logger      *zap.SugaredLogger

	mu        sync.Mutex
	open      bool
	busy      bool
	discarded bool
	draft     string
	messages  []models.Message
	pending   chan struct{}

	// events leave through the outbox in sequence order, one flusher at a time
	seq      uint64
	outbox   []outboxEntry
	flushing bool
}

type outboxEntry struct {
	event Event
	done  chan struct{}
}

// NewSession mounts a view. The session id is generated here and stays the same
// for every exchange of the session.
func NewSession(coordinator *Coordinator, opts Options) *Session {
	prefix := opts.IDPrefix
	if prefix == "" {
		prefix = DefaultIDPrefix
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if coordinator == nil {
		coordinator = NewCoordinator(nil, logger)
	}

	s := &Session{
		id:          prefix + uuid.NewString(),
		coordinator: coordinator,
		listener:    opts.Listener,
		logger:      logger,
		messages:    make([]models.Message, 0, 8),
	}

	if greeting := strings.TrimSpace(opts.Greeting); greeting != "" {
		s.messages = append(s.messages, models.NewAssistantMessage(opts.Greeting))
	}

	return s
}

// ID returns the conversation id sent with every exchange.
func (s *Session) ID() string {
	return s.id
}

// Submit appends text as a user message and starts an exchange. It is a no-op
// returning false when text is blank, an exchange is already pending or the
// session has been discarded. The returned channel is closed once the turn has
// been resolved by OnResult or OnFailure.
//
// The exchange does not inherit ctx's cancellation: a pending turn can't be aborted.
func (s *Session) Submit(ctx context.Context, text string) (<-chan struct{}, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	s.mu.Lock()
	if s.busy || s.discarded {
		s.mu.Unlock()
		return nil, false
	}

	msg := models.NewUserMessage(text)
	s.messages = append(s.messages, msg)
	s.draft = ""
	s.busy = true
	done := make(chan struct{})
	s.pending = done
	s.enqueueLocked(
		s.eventLocked(EventMessage, func(e *Event) { e.Message = &msg }),
		s.eventLocked(EventDraft, nil),
		s.eventLocked(EventBusy, nil),
	)
	s.flushLocked()

	if ctx == nil {
		ctx = context.Background()
	}
	go s.coordinator.run(context.WithoutCancel(ctx), s, text)

	return done, true
}

// SubmitDraft submits the current composition buffer.
func (s *Session) SubmitDraft(ctx context.Context) (<-chan struct{}, bool) {
	return s.Submit(ctx, s.Draft())
}

// OnResult resolves the pending exchange with an assistant reply. Calls made
// while no exchange is pending are ignored.
func (s *Session) OnResult(content string) {
	s.mu.Lock()
	done, ok := s.resolveLocked()
	if !ok {
		s.mu.Unlock()
		s.logger.Warnw("dropping reply without pending exchange", "session_id", s.id)
		return
	}
	if s.discarded {
		s.mu.Unlock()
		close(done)
		s.logger.Infow("dropping reply for discarded session", "session_id", s.id)
		return
	}

	msg := models.NewAssistantMessage(content)
	s.messages = append(s.messages, msg)
	s.enqueueLocked(
		s.eventLocked(EventMessage, func(e *Event) { e.Message = &msg }),
		s.eventLocked(EventBusy, nil),
	)
	s.outbox = append(s.outbox, outboxEntry{done: done})
	s.flushLocked()
}

// OnFailure resolves the pending exchange without appending a message and
// publishes the failure notice.
func (s *Session) OnFailure(err error) {
	s.mu.Lock()
	done, ok := s.resolveLocked()
	if !ok {
		s.mu.Unlock()
		s.logger.Warnw("dropping failure without pending exchange", "session_id", s.id, "error", err)
		return
	}
	if s.discarded {
		s.mu.Unlock()
		close(done)
		return
	}

	s.enqueueLocked(
		s.eventLocked(EventBusy, nil),
		s.eventLocked(EventNotice, func(e *Event) { e.Notice = FailureNotice }),
	)
	s.outbox = append(s.outbox, outboxEntry{done: done})
	s.flushLocked()
}

func (s *Session) resolveLocked() (chan struct{}, bool) {
	if !s.busy {
		return nil, false
	}
	done := s.pending
	s.busy = false
	s.pending = nil
	return done, true
}

// SetDraft replaces the composition buffer. It is ignored while an exchange is
// pending or after the session was discarded.
func (s *Session) SetDraft(text string) bool {
	s.mu.Lock()
	if s.busy || s.discarded {
		s.mu.Unlock()
		return false
	}
	s.draft = text
	s.enqueueLocked(s.eventLocked(EventDraft, nil))
	s.flushLocked()
	return true
}

// Draft returns the composition buffer.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetOpen shows or hides the chat window.
func (s *Session) SetOpen(open bool) {
	s.mu.Lock()
	if s.open == open {
		s.mu.Unlock()
		return
	}
	s.open = open
	s.enqueueLocked(s.eventLocked(EventOpen, nil))
	s.flushLocked()
}

// Toggle flips the open flag and returns the new value.
func (s *Session) Toggle() bool {
	s.mu.Lock()
	s.open = !s.open
	open := s.open
	s.enqueueLocked(s.eventLocked(EventOpen, nil))
	s.flushLocked()
	return open
}

// IsOpen reports whether the chat window is shown.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Busy reports whether an exchange is pending.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Messages returns a copy of the message log.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyMessagesLocked()
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:       s.id,
		Seq:      s.seq,
		Open:     s.open,
		Draft:    s.draft,
		Busy:     s.busy,
		Messages: s.copyMessagesLocked(),
	}
}

// Discard unmounts the view. Later submissions are rejected and the outcome of
// a pending exchange is dropped.
func (s *Session) Discard() {
	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return
	}
	s.discarded = true
	s.enqueueLocked(s.eventLocked(EventDiscarded, nil))
	s.flushLocked()
}

// Discarded reports whether Discard was called.
func (s *Session) Discarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

func (s *Session) copyMessagesLocked() []models.Message {
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) eventLocked(typ EventType, fill func(*Event)) Event {
	s.seq++
	e := Event{
		Seq:       s.seq,
		Type:      typ,
		SessionID: s.id,
		Busy:      s.busy,
		Open:      s.open,
		Draft:     s.draft,
	}
	if fill != nil {
		fill(&e)
	}
	return e
}

func (s *Session) enqueueLocked(events ...Event) {
	for _, e := range events {
		s.outbox = append(s.outbox, outboxEntry{event: e})
	}
}

// flushLocked delivers the outbox and releases s.mu. Listeners run without the
// lock held; a concurrent caller that finds a flush in progress leaves its
// entries to that flusher, so events reach listeners in Seq order.
func (s *Session) flushLocked() {
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true

	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()

		for _, entry := range batch {
			if entry.done != nil {
				close(entry.done)
				continue
			}
			s.publish(entry.event)
		}

		s.mu.Lock()
	}

	s.flushing = false
	s.mu.Unlock()
}

func (s *Session) publish(e Event) {
	if s.listener == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("session listener panicked", "session_id", s.id, "event", e.Type, "panic", r)
		}
	}()
	s.listener.Publish(e)
}
