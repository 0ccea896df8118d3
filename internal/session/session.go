package session

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/tucoflyer/botclient/internal/events"
	"github.com/tucoflyer/botclient/internal/logging"
	"github.com/tucoflyer/botclient/internal/protocol"
)

// Sender sends one text frame. Implemented by transport.Transport.
type Sender interface {
	Send(data []byte) error
}

// Emitter publishes notifications. Implemented by *events.Registry.
type Emitter interface {
	Emit(topic events.Topic, payload any) int
}

// KeySource supplies the authentication key. It is consulted on every
// transport open.
type KeySource interface {
	Key() (string, error)
}

// KeyFunc adapts a function to KeySource.
type KeyFunc func() (string, error)

// Key calls f.
func (f KeyFunc) Key() (string, error) { return f() }

// Status is the externally visible session state. It is also the payload
// of the auth notification.
type Status struct {
	Connected     bool `json:"connected"`
	Authenticated bool `json:"authenticated"`
}

// ServerError is the terminal condition raised by a server Error envelope.
type ServerError struct {
	Payload json.RawMessage
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %s", string(e.Payload))
}

// Controller tracks connected/authenticated state and drives the
// challenge-response handshake.
type Controller struct {
	sender    Sender
	emitter   Emitter
	key       string
	keySource KeySource
	onStatus  func(Status)

	connected        bool
	authenticated    bool
	pendingChallenge []byte
}

// Option configures a Controller.
type Option func(*Controller)

// WithKey sets a static authentication key.
func WithKey(key string) Option {
	return func(c *Controller) { c.key = key }
}

// WithKeySource sets a source refreshed on every open. It takes precedence
// over a static key once it has produced one.
func WithKeySource(src KeySource) Option {
	return func(c *Controller) { c.keySource = src }
}

// WithStatusHook sets a function called with the new state after every
// transition, before any notification about it is emitted.
func WithStatusHook(fn func(Status)) Option {
	return func(c *Controller) { c.onStatus = fn }
}

// NewController creates a disconnected controller. A nil emitter discards
// notifications.
func NewController(sender Sender, emitter Emitter, opts ...Option) *Controller {
	c := &Controller{sender: sender, emitter: emitter}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current state.
func (c *Controller) Status() Status {
	return Status{Connected: c.connected, Authenticated: c.authenticated}
}

// HasKey reports whether a non-empty key is available.
func (c *Controller) HasKey() bool {
	return c.key != ""
}

// PendingChallenge returns the last challenge received on this connection.
func (c *Controller) PendingChallenge() []byte {
	return c.pendingChallenge
}

// HandleOpen runs when the transport connects. The state change does not
// depend on the subscription send; a send error is logged and returned.
func (c *Controller) HandleOpen() error {
	c.refreshKey()

	c.connected = true
	c.authenticated = false
	c.pendingChallenge = nil
	c.statusChanged()

	data, err := protocol.BuildSubscription(protocol.SubscriptionCategories)
	if err != nil {
		return fmt.Errorf("encoding subscription: %w", err)
	}
	if err := c.sender.Send(data); err != nil {
		logging.Warn("Failed to send subscription request", zap.Error(err))
		return fmt.Errorf("sending subscription: %w", err)
	}
	logging.Debug("Subscription request sent",
		zap.Int("categories", len(protocol.SubscriptionCategories)),
	)
	return nil
}

// HandleClose runs when the transport disconnects.
func (c *Controller) HandleClose() {
	if c.authenticated {
		logging.Info("Session lost authentication on disconnect")
	}
	c.connected = false
	c.authenticated = false
	c.pendingChallenge = nil
	c.statusChanged()
}

func (c *Controller) statusChanged() {
	if c.onStatus != nil {
		c.onStatus(c.Status())
	}
}

// HandleChallenge stores the challenge and answers it if a key is set.
func (c *Controller) HandleChallenge(challenge []byte) error {
	c.pendingChallenge = challenge
	return c.authenticate()
}

// SetKey replaces the key. A stored challenge is answered immediately when
// the session is connected and not yet authenticated.
func (c *Controller) SetKey(key string) error {
	c.key = key
	if c.connected && !c.authenticated && len(c.pendingChallenge) > 0 {
		return c.authenticate()
	}
	return nil
}

func (c *Controller) authenticate() error {
	if c.key == "" {
		logging.Debug("No authentication key, deferring challenge response")
		return nil
	}
	if len(c.pendingChallenge) == 0 {
		logging.Debug("Auth envelope without challenge, nothing to answer")
		return nil
	}

	data, err := protocol.BuildAuthResponse(c.pendingChallenge, c.key)
	if err != nil {
		return fmt.Errorf("encoding auth response: %w", err)
	}
	if err := c.sender.Send(data); err != nil {
		logging.Warn("Failed to send auth response", zap.Error(err))
		return fmt.Errorf("sending auth response: %w", err)
	}
	logging.Debug("Auth response sent", zap.Int("challenge_len", len(c.pendingChallenge)))
	return nil
}

// HandleAuthStatus records the bot's verdict. The auth notification fires
// only on the transition to authenticated.
func (c *Controller) HandleAuthStatus(ok bool) {
	if !c.connected {
		logging.Debug("Ignoring AuthStatus while disconnected", zap.Bool("status", ok))
		return
	}

	was := c.authenticated
	c.authenticated = ok
	if ok != was {
		c.statusChanged()
	}

	switch {
	case ok && !was:
		logging.Info("Session authenticated")
		if c.emitter != nil {
			c.emitter.Emit(events.TopicAuth, c.Status())
		}
	case !ok && was:
		logging.Warn("Session lost authentication")
	case !ok:
		logging.Debug("Authentication rejected")
	}
}

// HandleServerError returns the terminal error for a server Error payload.
func (c *Controller) HandleServerError(payload json.RawMessage) error {
	logging.Error("Server reported error", zap.ByteString("payload", payload))
	return &ServerError{Payload: payload}
}

func (c *Controller) refreshKey() {
	if c.keySource == nil {
		return
	}
	key, err := c.keySource.Key()
	if err != nil {
		logging.Warn("Failed to refresh authentication key, keeping previous key", zap.Error(err))
		return
	}
	if key == "" {
		logging.Warn("Key source returned an empty key, keeping previous key")
		return
	}
	c.key = key
}
