package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tucoflyer/botclient/internal/logging"
)

const (
	// Time allowed to write a frame to the bot
	defaultWriteWait = 10 * time.Second

	// Time allowed to read the next frame or pong from the bot
	defaultPongWait = 60 * time.Second

	// Bursts can carry a full config; keep well above typical sizes
	defaultMaxMessageSize = 4 << 20

	defaultEventBuffer = 64
)

// Config configures a WebSocket transport.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// Header is sent with every handshake.
	Header http.Header

	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration

	// PingPeriod must be less than PongWait. Zero means 9/10 of PongWait.
	PingPeriod time.Duration

	MaxMessageSize int64

	// Backoff controls reconnect delays. A zero Jitter means JitterFactor.
	Backoff BackoffConfig

	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
}

func (c *Config) applyDefaults() {
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = c.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.Backoff.Jitter == 0 {
		c.Backoff.Jitter = JitterFactor
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = defaultEventBuffer
	}
}

// WebSocket is a reconnecting Transport over gorilla/websocket.
type WebSocket struct {
	cfg     Config
	dialer  *websocket.Dialer
	backoff *Backoff
	events  chan Event

	mu      sync.Mutex
	conn    *websocket.Conn
	connID  string
	started bool
	closed  bool
	cancel  context.CancelFunc

	writeMu sync.Mutex
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWebSocket validates cfg and returns an unstarted transport.
func NewWebSocket(cfg Config) (*WebSocket, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid websocket URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("websocket URL %q has no host", cfg.URL)
	}

	cfg.applyDefaults()
	return &WebSocket{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		backoff: NewBackoff(cfg.Backoff),
		events:  make(chan Event, cfg.EventBuffer),
	}, nil
}

// Start implements Transport.
func (w *WebSocket) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.started {
		return errors.New("transport already started")
	}
	w.started = true

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.maintainConnection(ctx)
	return nil
}

// Events implements Transport.
func (w *WebSocket) Events() <-chan Event {
	return w.events
}

// ConnID returns the id of the current connection, empty when down.
func (w *WebSocket) ConnID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connID
}

// Send implements Transport.
func (w *WebSocket) Send(data []byte) error {
	w.mu.Lock()
	conn, closed := w.conn, w.closed
	w.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteWait)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	logging.LogWebSocketMessage(w.cfg.URL, "sent", websocket.TextMessage, data)
	return nil
}

// Close implements Transport. It is idempotent.
func (w *WebSocket) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		cancel, started := w.cancel, w.started
		w.mu.Unlock()

		if started {
			cancel()
			w.wg.Wait()
		} else {
			close(w.events)
		}
	})
	return nil
}

// maintainConnection dials, reads until the connection drops, then waits
// out the backoff and dials again. It owns the events channel.
func (w *WebSocket) maintainConnection(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.events)

	for {
		conn, err := w.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := w.backoff.Next()
			logging.Warn("WebSocket connection failed, retrying",
				zap.String("endpoint", w.cfg.URL),
				zap.Int("attempt", w.backoff.Attempts()),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		w.backoff.Reset()

		id := uuid.NewString()
		w.mu.Lock()
		w.conn, w.connID = conn, id
		w.mu.Unlock()

		logging.LogConnection(w.cfg.URL, "connected", zap.String("conn_id", id))
		w.emit(ctx, Event{Kind: EventOpen, ConnID: id, Time: time.Now()})

		readErr := w.readPump(ctx, conn, id)

		w.mu.Lock()
		w.conn, w.connID = nil, ""
		w.mu.Unlock()
		_ = conn.Close()

		logging.LogConnection(w.cfg.URL, "disconnected",
			zap.String("conn_id", id),
			zap.Error(readErr),
		)
		w.emit(ctx, Event{Kind: EventClose, ConnID: id, Err: readErr, Time: time.Now()})

		if ctx.Err() != nil {
			return
		}
		if !sleep(ctx, w.backoff.Next()) {
			return
		}
	}
}

func (w *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	logging.Debug("Dialing websocket", zap.String("endpoint", w.cfg.URL))

	conn, resp, err := w.dialer.DialContext(ctx, w.cfg.URL, w.cfg.Header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, nil
}

// readPump delivers text frames until the connection fails or ctx ends.
// A helper goroutine sends pings and closes the connection on cancel.
func (w *WebSocket) readPump(ctx context.Context, conn *websocket.Conn, id string) error {
	conn.SetReadLimit(w.cfg.MaxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(w.cfg.PongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(w.cfg.PongWait))
	})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.pingLoop(ctx, conn, id, stop)
	}()
	defer func() {
		close(stop)
		<-done
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("Unexpected websocket close",
					zap.String("conn_id", id),
					zap.Error(err),
				)
			}
			return err
		}
		if err := conn.SetReadDeadline(time.Now().Add(w.cfg.PongWait)); err != nil {
			return err
		}

		logging.LogWebSocketMessage(w.cfg.URL, "received", messageType, data)

		if messageType != websocket.TextMessage {
			logging.Debug("Ignoring non-text frame",
				zap.String("conn_id", id),
				zap.Int("size", len(data)),
			)
			continue
		}
		w.emit(ctx, Event{Kind: EventMessage, ConnID: id, Data: data, Time: time.Now()})
	}
}

func (w *WebSocket) pingLoop(ctx context.Context, conn *websocket.Conn, id string, stop <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.cfg.WriteWait))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.cfg.WriteWait)); err != nil {
				logging.Debug("Ping failed", zap.String("conn_id", id), zap.Error(err))
				_ = conn.Close()
				return
			}
		}
	}
}

func (w *WebSocket) emit(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
