package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuwenbin0122/webhook-chat/internal/chat"
	"github.com/wuwenbin0122/webhook-chat/internal/models"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type fakeSource struct {
	id        string
	discarded bool
	onState   func()
}

func (f *fakeSource) ID() string { return f.id }

func (f *fakeSource) State() chat.State {
	if f.onState != nil {
		f.onState()
	}
	return chat.State{ID: f.id, Messages: []models.Message{}}
}

func (f *fakeSource) Discarded() bool { return f.discarded }

func dialSource(t *testing.T, hub *Hub, source StateSource) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = hub.Serve(conn, source)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	frame := readFrame(t, conn)
	require.Equal(t, "state", frame["type"])

	return conn
}

func dialHub(t *testing.T, hub *Hub, sessionID string) *websocket.Conn {
	t.Helper()
	return dialSource(t, hub, &fakeSource{id: sessionID})
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(payload, &frame))
	return frame
}

func TestHubForwardsEventsToSessionSubscribers(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub, "s-1")
	other := dialHub(t, hub, "s-2")

	assert.Equal(t, 1, hub.Subscribers("s-1"))

	msg := models.NewUserMessage("hello")
	hub.Publish(chat.Event{Type: chat.EventMessage, SessionID: "s-1", Busy: true, Message: &msg})

	frame := readFrame(t, conn)
	assert.Equal(t, "message", frame["type"])
	assert.Equal(t, true, frame["busy"])
	assert.Equal(t, "hello", frame["message"].(map[string]any)["content"])

	hub.Publish(chat.Event{Type: chat.EventNotice, SessionID: "s-2", Notice: chat.FailureNotice})
	frame = readFrame(t, other)
	assert.Equal(t, "notice", frame["type"])
	assert.Equal(t, chat.FailureNotice, frame["notice"])
}

func TestHubClosesSubscribersOnDiscard(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub, "s-1")

	hub.Publish(chat.Event{Type: chat.EventDiscarded, SessionID: "s-1"})

	frame := readFrame(t, conn)
	assert.Equal(t, "discarded", frame["type"])

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
	assert.Zero(t, hub.Subscribers("s-1"))
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil)
	assert.NotPanics(t, func() {
		hub.Publish(chat.Event{Type: chat.EventBusy, SessionID: "nobody"})
	})
}

func TestHubDeliversEventsPublishedWhileSnapshotting(t *testing.T) {
	hub := NewHub(nil)
	msg := models.NewAssistantMessage("late reply")
	published := make(chan struct{})

	source := &fakeSource{id: "s-1"}
	source.onState = func() {
		// the reply lands while the state frame is being built
		go func() {
			hub.Publish(chat.Event{Type: chat.EventMessage, SessionID: "s-1", Message: &msg})
			close(published)
		}()
	}

	conn := dialSource(t, hub, source)

	frame := readFrame(t, conn)
	assert.Equal(t, "message", frame["type"])
	assert.Equal(t, "late reply", frame["message"].(map[string]any)["content"])
	<-published
}

func TestHubClosesSubscriberOfDiscardedSession(t *testing.T) {
	hub := NewHub(nil)
	conn := dialSource(t, hub, &fakeSource{id: "s-1", discarded: true})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
	assert.Eventually(t, func() bool { return hub.Subscribers("s-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
