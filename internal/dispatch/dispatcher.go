package dispatch

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tucoflyer/botclient/internal/clocksync"
	"github.com/tucoflyer/botclient/internal/events"
	"github.com/tucoflyer/botclient/internal/logging"
	"github.com/tucoflyer/botclient/internal/model"
	"github.com/tucoflyer/botclient/internal/protocol"
	"github.com/tucoflyer/botclient/internal/scheduler"
	"github.com/tucoflyer/botclient/internal/session"
)

// Emitter publishes notifications. Implemented by *events.Registry.
type Emitter interface {
	Emit(topic events.Topic, payload any) int
}

// Dispatcher routes decoded frames to the model, the session controller
// and subscribers. HandleFrame must be called from a single goroutine;
// Snapshot and Destroy may be called from any.
type Dispatcher struct {
	session *session.Controller
	emitter Emitter
	sched   scheduler.Scheduler
	clock   *clocksync.Sync

	modelMu sync.RWMutex
	model   *model.Model

	mu        sync.Mutex
	pending   scheduler.Handle
	destroyed bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithScheduler enables frame coalescing on s.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(d *Dispatcher) { d.sched = s }
}

// WithClock sets the local clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.clock = clocksync.New(now) }
}

// New creates a Dispatcher. A nil emitter discards notifications.
func New(ctrl *session.Controller, emitter Emitter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		session: ctrl,
		emitter: emitter,
		model:   model.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.clock == nil {
		d.clock = clocksync.New(nil)
	}
	return d
}

// HandleFrame processes one transport frame. The only error returned is a
// *session.ServerError; every other problem is logged and the frame dropped.
func (d *Dispatcher) HandleFrame(data []byte) error {
	if d.isDestroyed() {
		return nil
	}

	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		logging.Warn("Dropping invalid frame",
			zap.Error(err),
			zap.Int("size", len(data)),
		)
		return nil
	}

	switch env.Kind {
	case protocol.EnvelopeStream:
		d.handleStream(env.Stream)
		return nil

	case protocol.EnvelopeError:
		d.emit(events.TopicLog, env)
		return d.session.HandleServerError(env.Error)

	case protocol.EnvelopeAuth:
		d.emit(events.TopicLog, env)
		if err := d.session.HandleChallenge(env.Challenge); err != nil {
			logging.Warn("Challenge response failed", zap.Error(err))
		}
		return nil

	case protocol.EnvelopeAuthStatus:
		d.emit(events.TopicLog, env)
		d.session.HandleAuthStatus(env.AuthStatus)
		return nil
	}

	d.emit(events.TopicLog, env)
	logging.Warn("Unrecognized envelope", zap.ByteString("frame", truncate(data, 256)))
	return nil
}

func (d *Dispatcher) handleStream(burst []*protocol.Message) {
	last := burst[len(burst)-1]
	offset := d.clock.Observe(last.Timestamp)
	for _, msg := range burst {
		msg.LocalTimestamp = offset + msg.Timestamp
	}

	for _, msg := range burst {
		d.modelMu.Lock()
		d.model.Fold(msg)
		d.modelMu.Unlock()

		switch msg.Payload.(type) {
		case protocol.ConfigIsCurrent:
			d.emit(events.TopicConfig, msg)
		case protocol.UnhandledGimbalPacket:
			d.emit(events.TopicGimbal, msg)
		}
	}

	d.emit(events.TopicMessages, burst)

	logging.Debug("Dispatched burst",
		zap.Int("burst_size", len(burst)),
		zap.Int64("offset_ms", offset),
		zap.Int64("last_timestamp", last.Timestamp),
	)

	d.requestFrame()
}

func (d *Dispatcher) requestFrame() {
	if d.sched == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed || d.pending != 0 {
		return
	}
	d.pending = d.sched.RequestTick(d.emitFrame)
}

func (d *Dispatcher) emitFrame() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.pending = 0
	d.mu.Unlock()

	d.emit(events.TopicFrame, d.Snapshot())
}

func (d *Dispatcher) emit(topic events.Topic, payload any) {
	if d.emitter == nil || d.isDestroyed() {
		return
	}
	d.emitter.Emit(topic, payload)
}

// Model returns the live model. Only the goroutine calling HandleFrame may
// read it.
func (d *Dispatcher) Model() *model.Model {
	return d.model
}

// Snapshot returns a copy of the model.
func (d *Dispatcher) Snapshot() *model.Model {
	d.modelMu.RLock()
	defer d.modelMu.RUnlock()
	return d.model.Snapshot()
}

// Session returns the controller that control envelopes are handed to.
func (d *Dispatcher) Session() *session.Controller {
	return d.session
}

// FramePending reports whether a frame notification is scheduled.
func (d *Dispatcher) FramePending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != 0
}

// Destroy cancels any pending frame tick and stops all processing.
// It is idempotent.
func (d *Dispatcher) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	h := d.pending
	d.pending = 0
	d.mu.Unlock()

	if h != 0 && d.sched != nil {
		d.sched.CancelTick(h)
	}
}

func (d *Dispatcher) isDestroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

func truncate(data []byte, n int) []byte {
	if len(data) <= n {
		return data
	}
	return data[:n]
}
