package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestNewWebSocketValidatesURL(t *testing.T) {
	tests := []string{
		"",
		"http://bot.local/ws",
		"ws://",
		"://bad",
	}
	for _, u := range tests {
		if _, err := NewWebSocket(Config{URL: u}); err == nil {
			t.Errorf("NewWebSocket(%q) error = nil, want error", u)
		}
	}
}

func TestWebSocketLifecycle(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 4)
	var conns atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)

		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"AuthStatus":true}`))

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)

		if n == 1 {
			// Drop the first connection to force a reconnect.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ws, err := NewWebSocket(Config{
		URL:     wsURL(srv),
		Backoff: BackoffConfig{Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewWebSocket() error = %v", err)
	}

	if err := ws.Send([]byte("early")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() before connect error = %v, want ErrNotConnected", err)
	}

	if err := ws.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := ws.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil")
	}

	open := nextEvent(t, ws.Events())
	if open.Kind != EventOpen || open.ConnID == "" {
		t.Fatalf("first event = %+v, want open", open)
	}

	msg := nextEvent(t, ws.Events())
	if msg.Kind != EventMessage || string(msg.Data) != `{"AuthStatus":true}` {
		t.Fatalf("second event = %v %q, want text message", msg.Kind, msg.Data)
	}
	if msg.ConnID != open.ConnID {
		t.Errorf("message ConnID = %s, want %s", msg.ConnID, open.ConnID)
	}

	if err := ws.Send([]byte("hello")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case got := <-received:
		if got != "hello" {
			t.Errorf("server received %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive frame")
	}

	closed := nextEvent(t, ws.Events())
	if closed.Kind != EventClose || closed.ConnID != open.ConnID {
		t.Fatalf("third event = %+v, want close of first connection", closed)
	}

	reopen := nextEvent(t, ws.Events())
	if reopen.Kind != EventOpen {
		t.Fatalf("fourth event = %+v, want open", reopen)
	}
	if reopen.ConnID == open.ConnID {
		t.Error("reconnect reused ConnID")
	}

	if err := ws.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_ = ws.Close()

	// Drain; the channel must be closed.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ws.Events():
			if !ok {
				if err := ws.Send([]byte("late")); !errors.Is(err, ErrClosed) {
					t.Errorf("Send() after Close error = %v, want ErrClosed", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed after Close")
		}
	}
}

func TestWebSocketRetriesUntilServerUp(t *testing.T) {
	var attempts atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ws, err := NewWebSocket(Config{
		URL:     wsURL(srv),
		Backoff: BackoffConfig{Initial: 5 * time.Millisecond, Max: 10 * time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ws.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if ev := nextEvent(t, ws.Events()); ev.Kind != EventOpen {
		t.Fatalf("event = %+v, want open", ev)
	}
	if n := attempts.Load(); n < 3 {
		t.Errorf("attempts = %d, want >= 3", n)
	}
	if ws.ConnID() == "" {
		t.Error("ConnID() empty while connected")
	}
}

func TestWebSocketCloseBeforeStart(t *testing.T) {
	ws, err := NewWebSocket(Config{URL: "ws://127.0.0.1:1/ws"})
	if err != nil {
		t.Fatal(err)
	}
	ws.Close()

	if _, ok := <-ws.Events(); ok {
		t.Error("events channel open after Close")
	}
	if err := ws.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Close error = %v, want ErrClosed", err)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory(8)

	if err := m.Send([]byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() before open error = %v", err)
	}

	id, err := m.Open()
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Deliver([]byte("frame")); err != nil {
		t.Fatal(err)
	}
	if err := m.Send([]byte("out")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	m.SetSendError(errors.New("broken pipe"))
	if err := m.Send([]byte("out2")); err == nil {
		t.Error("Send() with injected error = nil")
	}
	m.Drop(nil)

	kinds := []EventKind{EventOpen, EventMessage, EventClose}
	for _, want := range kinds {
		ev := <-m.Events()
		if ev.Kind != want || ev.ConnID != id {
			t.Errorf("event = %v/%s, want %v/%s", ev.Kind, ev.ConnID, want, id)
		}
	}
	if sent := m.Sent(); len(sent) != 1 || string(sent[0]) != "out" {
		t.Errorf("Sent() = %q", sent)
	}

	m.Close()
	m.Close()
	if err := m.Deliver([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("Deliver() after Close error = %v", err)
	}
	if _, ok := <-m.Events(); ok {
		t.Error("events channel open after Close")
	}
}

func TestEventKindString(t *testing.T) {
	for kind, want := range map[EventKind]string{
		EventOpen:    "open",
		EventMessage: "message",
		EventClose:   "close",
		EventKind(0): "unknown",
	} {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
