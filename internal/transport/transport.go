package transport

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConnected is returned by Send while no connection is up.
	ErrNotConnected = errors.New("transport not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport closed")
)

// EventKind is the type of a transport event.
type EventKind int

const (
	EventOpen EventKind = iota + 1
	EventMessage
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one transport lifecycle event.
type Event struct {
	Kind   EventKind
	ConnID string
	Data   []byte
	Err    error
	Time   time.Time
}

// Transport is a reconnecting duplex message channel.
type Transport interface {
	// Start begins connecting. Events are delivered until ctx is done or
	// Close is called.
	Start(ctx context.Context) error

	// Events returns the event stream. It is closed when the transport
	// stops.
	Events() <-chan Event

	// Send writes one text frame on the current connection.
	Send(data []byte) error

	// Close stops the transport and closes the current connection.
	Close() error
}
