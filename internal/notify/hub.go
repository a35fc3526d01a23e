// Package notify pushes widget session events to the browser over websockets.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/webhook-chat/internal/chat"
)

const writeTimeout = 5 * time.Second

type subscriber struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
}

func (s *subscriber) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writeLocked(payload)
}

func (s *subscriber) writeLocked(payload []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *subscriber) close(code int, reason string) {
	s.once.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeTimeout))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}

type stateFrame struct {
	Type  string     `json:"type"`
	State chat.State `json:"state"`
}

// Hub is the notification collaborator of the HTTP service. It implements
// chat.Listener and forwards every event, failure notices included, to the
// websocket connections watching that session.
type Hub struct {
	logger *zap.SugaredLogger

	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
}

// NewHub builds an empty Hub.
func NewHub(logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		logger:      logger,
		subscribers: make(map[string]map[*subscriber]struct{}),
	}
}

// Publish implements chat.Listener.
func (h *Hub) Publish(e chat.Event) {
	if e.Type == chat.EventNotice {
		h.logger.Warnw("chat failure notice", "session_id", e.SessionID, "notice", e.Notice)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Errorw("marshal session event failed", "session_id", e.SessionID, "error", err)
		return
	}

	for _, sub := range h.snapshot(e.SessionID) {
		if err := sub.write(payload); err != nil {
			h.logger.Debugw("drop websocket subscriber", "session_id", e.SessionID, "error", err)
			h.remove(e.SessionID, sub)
			sub.close(websocket.CloseInternalServerErr, "write failed")
		}
	}

	if e.Type == chat.EventDiscarded {
		h.closeSession(e.SessionID)
	}
}

// StateSource is the session a connection watches. *chat.Session satisfies it.
type StateSource interface {
	ID() string
	State() chat.State
	Discarded() bool
}

// Serve registers conn as a subscriber of source, sends the current state and
// blocks until the peer disconnects or the session is discarded. The snapshot is
// taken after subscribing with the connection's write lock held, so every event
// published afterwards is written after the state frame.
func (h *Hub) Serve(conn *websocket.Conn, source StateSource) error {
	sessionID := source.ID()
	sub := &subscriber{conn: conn}

	sub.writeMu.Lock()
	h.add(sessionID, sub)
	state := source.State()
	discarded := source.Discarded()
	payload, err := json.Marshal(stateFrame{Type: "state", State: state})
	if err == nil {
		err = sub.writeLocked(payload)
	}
	sub.writeMu.Unlock()

	defer func() {
		h.remove(sessionID, sub)
		sub.close(websocket.CloseNormalClosure, "")
	}()

	if err != nil {
		return err
	}

	if discarded {
		// a discard published before add never reached this subscriber
		h.remove(sessionID, sub)
		sub.close(websocket.CloseGoingAway, "session discarded")
		return nil
	}

	for {
		// client frames carry no commands; reading keeps control frames flowing
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debugw("widget websocket closed", "session_id", sessionID, "error", err)
			}
			return nil
		}
	}
}

// Subscribers returns how many connections watch sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[sessionID])
}

func (h *Hub) add(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[sessionID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.subscribers[sessionID] = subs
	}
	subs[sub] = struct{}{}
}

func (h *Hub) remove(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[sessionID]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subscribers, sessionID)
	}
}

func (h *Hub) snapshot(sessionID string) []*subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := h.subscribers[sessionID]
	out := make([]*subscriber, 0, len(subs))
	for sub := range subs {
		out = append(out, sub)
	}
	return out
}

func (h *Hub) closeSession(sessionID string) {
	h.mu.Lock()
	subs := h.subscribers[sessionID]
	delete(h.subscribers, sessionID)
	h.mu.Unlock()

	for sub := range subs {
		sub.close(websocket.CloseGoingAway, "session discarded")
	}
}
