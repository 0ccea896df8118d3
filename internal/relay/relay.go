package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/tucoflyer/botclient/internal/logging"
	"github.com/tucoflyer/botclient/internal/protocol"
	"github.com/tucoflyer/botclient/internal/session"
)

const (
	// DefaultSubject is the subject prefix used when none is configured.
	DefaultSubject = "botclient"

	// DefaultDrainTimeout bounds how long Close waits for pending
	// publishes to flush.
	DefaultDrainTimeout = 5 * time.Second
)

// ErrDrainTimeout is returned by Close when the drain did not finish in
// time. The connection is closed anyway.
var ErrDrainTimeout = errors.New("nats drain timed out")

// drainer is the part of *nats.Conn that Close needs.
type drainer interface {
	Drain() error
	Close()
}

// Publisher sends data on a subject. Implemented by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Source is the notification surface a Relay attaches to. Implemented by
// *client.Client.
type Source interface {
	OnMessages(fn func([]*protocol.Message)) (func(), error)
	OnAuth(fn func(session.Status)) (func(), error)
	OnLog(fn func(*protocol.Envelope)) (func(), error)
}

// Relay publishes notifications under one subject prefix.
type Relay struct {
	pub     Publisher
	subject string
	conn    drainer
	closed  chan struct{}

	drainTimeout time.Duration

	published atomic.Int64
	failed    atomic.Int64
}

// New creates a Relay on pub. An empty subject means DefaultSubject.
func New(pub Publisher, subject string) *Relay {
	subject = strings.Trim(subject, ".")
	if subject == "" {
		subject = DefaultSubject
	}
	return &Relay{pub: pub, subject: subject, drainTimeout: DefaultDrainTimeout}
}

// Connect dials a NATS server and returns a Relay owning the connection.
func Connect(url, subject string, opts ...nats.Option) (*Relay, error) {
	defaults := []nats.Option{
		nats.Name("botclient"),
		nats.Timeout(5 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	}
	closed := make(chan struct{})
	opts = append(append(defaults, opts...), nats.ClosedHandler(func(*nats.Conn) {
		close(closed)
	}))
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", url, err)
	}
	r := New(conn, subject)
	r.own(conn, closed)
	logging.Info("Relay connected", zap.String("url", conn.ConnectedUrl()), zap.String("subject", r.subject))
	return r, nil
}

// Subject returns the full subject for a suffix.
func (r *Relay) Subject(suffix string) string {
	return r.subject + "." + suffix
}

// Attach subscribes the relay to src. The returned func detaches it.
func (r *Relay) Attach(src Source) (func(), error) {
	var detach []func()
	undo := func() {
		for _, fn := range detach {
			fn()
		}
	}

	unsub, err := src.OnMessages(r.PublishBurst)
	if err != nil {
		return nil, fmt.Errorf("attaching to messages: %w", err)
	}
	detach = append(detach, unsub)

	unsub, err = src.OnAuth(r.PublishAuth)
	if err != nil {
		undo()
		return nil, fmt.Errorf("attaching to auth: %w", err)
	}
	detach = append(detach, unsub)

	unsub, err = src.OnLog(r.PublishLog)
	if err != nil {
		undo()
		return nil, fmt.Errorf("attaching to log: %w", err)
	}
	detach = append(detach, unsub)

	return undo, nil
}

// PublishBurst publishes each message on its kind subject.
func (r *Relay) PublishBurst(msgs []*protocol.Message) {
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			r.failed.Add(1)
			logging.Warn("Failed to encode message for relay", zap.Error(err))
			continue
		}
		r.publish(r.Subject(msg.Kind().String()), data)
	}
}

// PublishAuth publishes the session status on authentication.
func (r *Relay) PublishAuth(status session.Status) {
	data, err := json.Marshal(status)
	if err != nil {
		r.failed.Add(1)
		return
	}
	r.publish(r.Subject("session.auth"), data)
}

// PublishLog publishes a control envelope as received.
func (r *Relay) PublishLog(env *protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		r.failed.Add(1)
		return
	}
	r.publish(r.Subject("session.log"), data)
}

func (r *Relay) publish(subject string, data []byte) {
	if err := r.pub.Publish(subject, data); err != nil {
		r.failed.Add(1)
		logging.Warn("Relay publish failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	r.published.Add(1)
}

// Stats returns the number of successful and failed publishes.
func (r *Relay) Stats() (published, failed int64) {
	return r.published.Load(), r.failed.Load()
}

// own makes the relay responsible for conn. closed must be closed once
// the connection has fully shut down.
func (r *Relay) own(conn drainer, closed chan struct{}) {
	r.conn = conn
	r.closed = closed
}

// Close drains the connection when the relay owns one and waits until
// pending publishes are flushed or the drain timeout expires.
func (r *Relay) Close() error {
	if r.conn == nil {
		return nil
	}
	if err := r.conn.Drain(); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		return fmt.Errorf("draining nats connection: %w", err)
	}

	select {
	case <-r.closed:
		return nil
	case <-time.After(r.drainTimeout):
		logging.Warn("NATS drain did not finish, closing", zap.Duration("timeout", r.drainTimeout))
		r.conn.Close()
		return ErrDrainTimeout
	}
}
