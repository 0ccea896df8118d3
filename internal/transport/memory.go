package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBufferFull is returned by Memory when its event buffer is full.
var ErrBufferFull = errors.New("event buffer full")

// Memory is a Transport whose events are injected by the caller.
type Memory struct {
	mu        sync.Mutex
	events    chan Event
	connected bool
	connID    string
	closed    bool
	sendErr   error
	sent      [][]byte
}

// NewMemory creates a Memory transport buffering up to capacity events.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultEventBuffer
	}
	return &Memory{events: make(chan Event, capacity)}
}

// Start implements Transport.
func (m *Memory) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Events implements Transport.
func (m *Memory) Events() <-chan Event {
	return m.events
}

// Open simulates a new connection and returns its id.
func (m *Memory) Open() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	m.connID = uuid.NewString()
	return m.connID, m.push(Event{Kind: EventOpen, ConnID: m.connID})
}

// Deliver simulates a received text frame.
func (m *Memory) Deliver(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.push(Event{Kind: EventMessage, ConnID: m.connID, Data: data})
}

// Drop simulates losing the connection.
func (m *Memory) Drop(cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.connID
	m.connected = false
	m.connID = ""
	return m.push(Event{Kind: EventClose, ConnID: id, Err: cause})
}

func (m *Memory) push(ev Event) error {
	if m.closed {
		return ErrClosed
	}
	ev.Time = time.Now()
	select {
	case m.events <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

// SetSendError makes every later Send fail with err. Nil restores sends.
func (m *Memory) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Send implements Transport.
func (m *Memory) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return ErrClosed
	case !m.connected:
		return ErrNotConnected
	case m.sendErr != nil:
		return m.sendErr
	}
	m.sent = append(m.sent, append([]byte(nil), data...))
	return nil
}

// Sent returns copies of every frame sent so far.
func (m *Memory) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Closed reports whether Close has been called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close implements Transport. It is idempotent.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.events)
	return nil
}
