package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tucoflyer/botclient/internal/dispatch"
	"github.com/tucoflyer/botclient/internal/events"
	"github.com/tucoflyer/botclient/internal/logging"
	"github.com/tucoflyer/botclient/internal/model"
	"github.com/tucoflyer/botclient/internal/protocol"
	"github.com/tucoflyer/botclient/internal/scheduler"
	"github.com/tucoflyer/botclient/internal/session"
	"github.com/tucoflyer/botclient/internal/transport"
)

var (
	// ErrDestroyed is returned by operations on a destroyed client.
	ErrDestroyed = errors.New("client destroyed")

	// ErrTransportStopped is returned by Run when the transport stops on
	// its own.
	ErrTransportStopped = errors.New("transport stopped")
)

// Recorder receives every transport event before it is processed.
// Implemented by *recorder.Writer.
type Recorder interface {
	Record(ev transport.Event) error
}

type options struct {
	key            string
	keySource      session.KeySource
	sched          scheduler.Scheduler
	recorder       Recorder
	now            func() time.Time
	maxSubscribers int
}

// Option configures a Client.
type Option func(*options)

// WithKey sets the authentication key.
func WithKey(key string) Option {
	return func(o *options) { o.key = key }
}

// WithKeySource sets a key source consulted on every connect.
func WithKeySource(src session.KeySource) Option {
	return func(o *options) { o.keySource = src }
}

// WithScheduler enables frame notifications. Without it the client is
// headless.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(o *options) { o.sched = s }
}

// WithRecorder captures every transport event.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithClock sets the local clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMaxSubscribers sets the per-topic subscriber limit; zero means
// unbounded.
func WithMaxSubscribers(n int) Option {
	return func(o *options) { o.maxSubscribers = n }
}

// Client is a bot client bound to one transport.
type Client struct {
	transport  transport.Transport
	registry   *events.Registry
	session    *session.Controller
	dispatcher *dispatch.Dispatcher
	ticks      <-chan func()
	recorder   Recorder

	now       func() time.Time
	replaying bool
	replayAt  time.Time

	status    atomic.Pointer[session.Status]
	cmds      chan func()
	done      chan struct{}
	destroyed atomic.Bool
	once      sync.Once
}

// New creates a client on t. The transport is started by Run.
func New(t transport.Transport, opts ...Option) *Client {
	o := options{now: time.Now, maxSubscribers: events.DefaultMaxSubscribers}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		transport: t,
		registry:  events.NewRegistryWithLimit(o.maxSubscribers),
		recorder:  o.recorder,
		now:       o.now,
		cmds:      make(chan func(), 16),
		done:      make(chan struct{}),
	}

	sessOpts := []session.Option{session.WithKey(o.key), session.WithStatusHook(c.storeStatus)}
	if o.keySource != nil {
		sessOpts = append(sessOpts, session.WithKeySource(o.keySource))
	}
	c.session = session.NewController(senderFunc(c.send), c.registry, sessOpts...)

	dispOpts := []dispatch.Option{dispatch.WithClock(c.clock)}
	if o.sched != nil {
		dispOpts = append(dispOpts, dispatch.WithScheduler(o.sched))
		if src, ok := o.sched.(scheduler.TickSource); ok {
			c.ticks = src.Ticks()
		}
	}
	c.dispatcher = dispatch.New(c.session, c.registry, dispOpts...)

	c.storeStatus(c.session.Status())
	return c
}

type senderFunc func([]byte) error

func (f senderFunc) Send(data []byte) error { return f(data) }

func (c *Client) send(data []byte) error {
	if c.replaying {
		return nil
	}
	return c.transport.Send(data)
}

func (c *Client) clock() time.Time {
	if c.replaying {
		return c.replayAt
	}
	return c.now()
}

// Run starts the transport and processes its events until Destroy, ctx
// cancellation or a server error.
func (c *Client) Run(ctx context.Context) error {
	if c.destroyed.Load() {
		return ErrDestroyed
	}
	if err := c.transport.Start(ctx); err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}

	incoming := c.transport.Events()
	for {
		select {
		case <-c.done:
			return nil

		case <-ctx.Done():
			c.Destroy()
			return ctx.Err()

		case fn := <-c.ticks:
			if !c.destroyed.Load() {
				fn()
			}

		case fn := <-c.cmds:
			if !c.destroyed.Load() {
				fn()
			}

		case ev, ok := <-incoming:
			if !ok {
				if c.destroyed.Load() {
					return nil
				}
				return ErrTransportStopped
			}
			if err := c.handleEvent(ev); err != nil {
				return err
			}
		}
	}
}

func (c *Client) handleEvent(ev transport.Event) error {
	if c.destroyed.Load() {
		return nil
	}

	if c.recorder != nil && !c.replaying {
		if err := c.recorder.Record(ev); err != nil {
			logging.Warn("Failed to record transport event", zap.Error(err))
		}
	}

	switch ev.Kind {
	case transport.EventOpen:
		logging.Info("Connected to bot", zap.String("conn_id", ev.ConnID))
		if err := c.session.HandleOpen(); err != nil {
			logging.Warn("Session open incomplete", zap.String("conn_id", ev.ConnID), zap.Error(err))
		}

	case transport.EventClose:
		logging.Info("Disconnected from bot", zap.String("conn_id", ev.ConnID), zap.Error(ev.Err))
		c.session.HandleClose()

	case transport.EventMessage:
		return c.dispatcher.HandleFrame(ev.Data)
	}
	return nil
}

func (c *Client) storeStatus(s session.Status) {
	if c.destroyed.Load() {
		s = session.Status{}
	}
	c.status.Store(&s)
}

// Status returns the session state. Inside a notification handler it
// already reflects the transition being notified.
func (c *Client) Status() session.Status {
	return *c.status.Load()
}

// Snapshot returns a copy of the current model.
func (c *Client) Snapshot() *model.Model {
	return c.dispatcher.Snapshot()
}

// Send JSON-encodes v and sends it on the current connection.
func (c *Client) Send(v any) error {
	if c.destroyed.Load() {
		return ErrDestroyed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding outbound message: %w", err)
	}
	return c.transport.Send(data)
}

// SetKey replaces the authentication key. It takes effect on the event
// loop and answers a pending challenge if there is one.
func (c *Client) SetKey(key string) error {
	return c.post(func() {
		if err := c.session.SetKey(key); err != nil {
			logging.Warn("Auth response after key update failed", zap.Error(err))
		}
	})
}

func (c *Client) post(fn func()) error {
	if c.destroyed.Load() {
		return ErrDestroyed
	}
	select {
	case c.cmds <- fn:
		return nil
	case <-c.done:
		return ErrDestroyed
	}
}

// Destroy detaches every subscriber, cancels a pending frame tick, stops
// Run and closes the transport. It is idempotent.
func (c *Client) Destroy() {
	c.once.Do(func() {
		c.destroyed.Store(true)
		c.storeStatus(session.Status{})
		c.registry.Close()
		c.dispatcher.Destroy()
		close(c.done)
		if err := c.transport.Close(); err != nil {
			logging.Warn("Closing transport failed", zap.Error(err))
		}
		logging.Debug("Client destroyed")
	})
}

// Destroyed reports whether Destroy has been called.
func (c *Client) Destroyed() bool {
	return c.destroyed.Load()
}

// On subscribes a raw handler to topic.
func (c *Client) On(topic events.Topic, h events.Handler) (func(), error) {
	return c.registry.Subscribe(topic, h)
}

// OnLog receives every control or unrecognized envelope.
func (c *Client) OnLog(fn func(*protocol.Envelope)) (func(), error) {
	return c.On(events.TopicLog, func(p any) { fn(p.(*protocol.Envelope)) })
}

// OnConfig receives each ConfigIsCurrent message.
func (c *Client) OnConfig(fn func(*protocol.Message)) (func(), error) {
	return c.On(events.TopicConfig, func(p any) { fn(p.(*protocol.Message)) })
}

// OnGimbal receives each UnhandledGimbalPacket message.
func (c *Client) OnGimbal(fn func(*protocol.Message)) (func(), error) {
	return c.On(events.TopicGimbal, func(p any) { fn(p.(*protocol.Message)) })
}

// OnMessages receives each annotated burst.
func (c *Client) OnMessages(fn func([]*protocol.Message)) (func(), error) {
	return c.On(events.TopicMessages, func(p any) { fn(p.([]*protocol.Message)) })
}

// OnFrame receives coalesced model snapshots.
func (c *Client) OnFrame(fn func(*model.Model)) (func(), error) {
	return c.On(events.TopicFrame, func(p any) { fn(p.(*model.Model)) })
}

// OnAuth receives the session status each time it becomes authenticated.
func (c *Client) OnAuth(fn func(session.Status)) (func(), error) {
	return c.On(events.TopicAuth, func(p any) { fn(p.(session.Status)) })
}
