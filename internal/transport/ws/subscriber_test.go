package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/pulse-messenger/internal/logger"
	"nhooyr.io/websocket"
)

type staticToken string

func (t staticToken) Token() string { return string(t) }

// hubServer plays the server side of the JSON hub protocol: it reads the
// handshake, answers it, then writes the configured frames and records
// whatever the client sends afterwards.
type hubServer struct {
	tokens     chan string
	handshakes chan string
	received   chan string

	response  string
	inline    string
	frames    []string
	dropFirst bool
	conns     atomic.Int32
}

func newHubServer(frames ...string) *hubServer {
	return &hubServer{
		tokens:     make(chan string, 16),
		handshakes: make(chan string, 16),
		received:   make(chan string, 16),
		response:   "{}",
		frames:     frames,
	}
}

func offer(ch chan string, v string) {
	select {
	case ch <- v:
	default:
	}
}

func (h *hubServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := h.conns.Add(1)
	offer(h.tokens, r.URL.Query().Get("access_token"))

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	_, hs, err := c.Read(ctx)
	if err != nil {
		return
	}
	offer(h.handshakes, string(hs))

	if err := c.Write(ctx, websocket.MessageText, []byte(records(h.response)+h.inline)); err != nil {
		return
	}
	if h.response != "{}" {
		return
	}
	if h.dropFirst && n == 1 {
		c.Close(websocket.StatusGoingAway, "restart")
		return
	}

	for _, f := range h.frames {
		if err := c.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
			return
		}
	}
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		offer(h.received, string(data))
	}
}

// records terminates each JSON message with the record separator.
func records(msgs ...string) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m)
		b.WriteByte(recordSeparator)
	}
	return b.String()
}

func invocation(target string, args ...any) string {
	raw, _ := json.Marshal(map[string]any{"type": 1, "target": target, "arguments": args})
	return string(raw)
}

func newTestSubscriber(t *testing.T, srv *httptest.Server) *Subscriber {
	t.Helper()
	sub, err := NewSubscriber(staticToken("tok-1"), Options{
		URL:        srv.URL + "/chatHub",
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 50 * time.Millisecond,
		Logger:     logger.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })
	return sub
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting")
		var zero T
		return zero
	}
}

func TestSubscribeDeliversHubInvocations(t *testing.T) {
	chatID, otherChat := uuid.New(), uuid.New()
	hub := newHubServer(records(
		invocation("UserTyping", map[string]string{"chatId": chatID.String()}),
		invocation(TargetReceiveMessage, map[string]string{"chatId": otherChat.String()}),
		invocation(TargetReceiveDocument),
	))
	hub.inline = records(invocation(TargetReceiveMessage, map[string]any{"ChatId": chatID.String(), "content": "hi"}))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	got := make(chan Event, 8)
	sub := newTestSubscriber(t, srv)
	_, err := sub.Subscribe(chatID, FeedEvents, func(e Event) { got <- e })
	require.NoError(t, err)

	assert.Equal(t, "tok-1", receive(t, hub.tokens))
	assert.Equal(t, `{"protocol":"json","version":1}`+"\x1e", receive(t, hub.handshakes))

	assert.Equal(t, EventTypeConnected, receive(t, got).Type)

	msg := receive(t, got)
	assert.Equal(t, TargetReceiveMessage, msg.Type)
	require.NotNil(t, msg.ChatID)
	assert.Equal(t, chatID, *msg.ChatID)

	doc := receive(t, got)
	assert.Equal(t, TargetReceiveDocument, doc.Type)
	assert.Nil(t, doc.ChatID)
}

func TestServerPingIsAnswered(t *testing.T) {
	hub := newHubServer(records(`{"type":6}`))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	sub := newTestSubscriber(t, srv)
	_, err := sub.Subscribe(uuid.New(), nil, func(Event) {})
	require.NoError(t, err)

	assert.Equal(t, string(pingRecord), receive(t, hub.received))
}

func TestSubscriberReconnectsAndAnnouncesIt(t *testing.T) {
	hub := newHubServer(records(invocation(TargetReceiveMessage)))
	hub.dropFirst = true
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	got := make(chan Event, 8)
	sub := newTestSubscriber(t, srv)
	_, err := sub.Subscribe(uuid.New(), nil, func(e Event) { got <- e })
	require.NoError(t, err)

	assert.Equal(t, EventTypeConnected, receive(t, got).Type)
	assert.Equal(t, EventTypeConnected, receive(t, got).Type)
	assert.Equal(t, TargetReceiveMessage, receive(t, got).Type)
	assert.GreaterOrEqual(t, hub.conns.Load(), int32(2))
}

func TestRejectedHandshakeIsRetried(t *testing.T) {
	hub := newHubServer()
	hub.response = `{"error":"Requested protocol 'json' is not available."}`
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	got := make(chan Event, 8)
	sub := newTestSubscriber(t, srv)
	_, err := sub.Subscribe(uuid.New(), nil, func(e Event) { got <- e })
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.conns.Load() >= 3 }, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, got)
}

func TestCloseMessageEndsConnection(t *testing.T) {
	hub := newHubServer(records(`{"type":7,"error":"Server is shutting down.","allowReconnect":true}`))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	sub := newTestSubscriber(t, srv)
	_, err := sub.Subscribe(uuid.New(), nil, func(Event) {})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.conns.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestCancelStopsDelivery(t *testing.T) {
	sub, err := NewSubscriber(staticToken(""), Options{URL: "ws://localhost:1/chatHub", Logger: logger.Discard()})
	require.NoError(t, err)
	defer sub.Close()

	chatID := uuid.New()
	var calls atomic.Int32
	cancel, err := sub.Subscribe(chatID, nil, func(Event) { calls.Add(1) })
	require.NoError(t, err)

	sub.dispatch(Event{Type: TargetReceiveMessage, ChatID: &chatID})
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	cancel()
	sub.dispatch(Event{Type: TargetReceiveMessage, ChatID: &chatID})
	sub.dispatch(Event{Type: EventTypeConnected})
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubscribeAfterClose(t *testing.T) {
	sub, err := NewSubscriber(staticToken(""), Options{URL: "ws://localhost:1/chatHub"})
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	_, err = sub.Subscribe(uuid.New(), nil, func(Event) {})
	assert.Error(t, err)
}

func TestBackoffIsCapped(t *testing.T) {
	sub, err := NewSubscriber(staticToken(""), Options{
		URL:        "ws://localhost:1/chatHub",
		MinBackoff: 100 * time.Millisecond,
		MaxBackoff: time.Second,
	})
	require.NoError(t, err)
	defer sub.Close()

	assert.GreaterOrEqual(t, sub.backoff(1), 100*time.Millisecond)
	assert.Less(t, sub.backoff(1), 151*time.Millisecond)
	for attempt := 1; attempt < 40; attempt++ {
		assert.LessOrEqual(t, sub.backoff(attempt), 1500*time.Millisecond)
	}
}

func TestURLFromAPI(t *testing.T) {
	got, err := URLFromAPI("https://chat.example.com/api")
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/chatHub", got)

	got, err = URLFromAPI("http://localhost:5056/api/")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:5056/chatHub", got)
}

func TestSplitRecords(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    []string
		wantErr bool
	}{
		{"single", records(`{}`), []string{`{}`}, false},
		{"several", records(`{"type":6}`, `{"type":1}`), []string{`{"type":6}`, `{"type":1}`}, false},
		{"empty records skipped", "\x1e" + records(`{}`), []string{`{}`}, false},
		{"unterminated tail", records(`{}`) + `{"type":6}`, []string{`{}`}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitRecords([]byte(tt.frame))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			var strs []string
			for _, r := range got {
				strs = append(strs, string(r))
			}
			assert.Equal(t, tt.want, strs)
		})
	}
}

func TestChatIDOf(t *testing.T) {
	id := uuid.New()
	arg := func(s string) []json.RawMessage { return []json.RawMessage{json.RawMessage(s)} }

	got := chatIDOf(arg(fmt.Sprintf(`{"chatId":%q}`, id)))
	require.NotNil(t, got)
	assert.Equal(t, id, *got)

	got = chatIDOf(arg(fmt.Sprintf(`{"CHATID":%q}`, id)))
	require.NotNil(t, got)
	assert.Equal(t, id, *got)

	assert.Nil(t, chatIDOf(nil))
	assert.Nil(t, chatIDOf(arg(`"just text"`)))
	assert.Nil(t, chatIDOf(arg(`{"chatId":"not-a-uuid"}`)))
}
