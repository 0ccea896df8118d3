package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/tucoflyer/botclient/internal/logging"
	"github.com/tucoflyer/botclient/internal/transport"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("recorder closed")

// Record is one captured transport event.
type Record struct {
	Received time.Time `cbor:"received"`
	Kind     string    `cbor:"kind"`
	ConnID   string    `cbor:"conn_id"`
	Frame    []byte    `cbor:"frame,omitempty"`
}

// NewRecord converts a transport event. A zero event time becomes now.
func NewRecord(ev transport.Event) Record {
	received := ev.Time
	if received.IsZero() {
		received = time.Now()
	}
	return Record{
		Received: received.UTC(),
		Kind:     ev.Kind.String(),
		ConnID:   ev.ConnID,
		Frame:    ev.Data,
	}
}

// Event converts the record back to a transport event.
func (r Record) Event() transport.Event {
	ev := transport.Event{ConnID: r.ConnID, Data: r.Frame, Time: r.Received}
	switch r.Kind {
	case transport.EventOpen.String():
		ev.Kind = transport.EventOpen
	case transport.EventClose.String():
		ev.Kind = transport.EventClose
	default:
		ev.Kind = transport.EventMessage
	}
	return ev
}

// Writer appends records to a capture.
type Writer struct {
	mu      sync.Mutex
	w       io.WriteCloser
	encoder *cbor.Encoder
	path    string
	count   int
	closed  bool
}

// NewWriter writes records to w.
func NewWriter(w io.WriteCloser) *Writer {
	return &Writer{w: w, encoder: newEncoder(w)}
}

// FileName returns the capture file name for a start time.
func FileName(t time.Time) string {
	return fmt.Sprintf("capture-%s.cbor", t.Format("20060102-150405"))
}

// Create opens a new capture file in dir, creating dir if needed.
func Create(dir string, now time.Time) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating capture directory: %w", err)
	}
	path := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}

	logging.Info("Capturing transport events", zap.String("path", path))

	w := NewWriter(f)
	w.path = path
	return w, nil
}

// Record appends one transport event.
func (w *Writer) Record(ev transport.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := w.encoder.Encode(NewRecord(ev)); err != nil {
		return fmt.Errorf("encoding capture record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Path returns the capture file path, empty for writers not made by Create.
func (w *Writer) Path() string {
	return w.path
}

// Close closes the underlying writer. It is idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.path != "" {
		logging.Info("Capture closed", zap.String("path", w.path), zap.Int("records", w.count))
	}
	return w.w.Close()
}
