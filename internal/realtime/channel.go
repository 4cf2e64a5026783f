// Package realtime owns the push connection bound to the session credential.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"garage-client/internal/apierr"
	"garage-client/internal/hub"
	"garage-client/internal/model"
	"garage-client/internal/socketio"
)

// Stream is one authenticated push connection.
type Stream interface {
	ReadEvent() (socketio.Event, error)
	Emit(event string, args ...any) error
	Close() error
}

type Transport interface {
	Dial(ctx context.Context, token string) (Stream, error)
}

// SocketIO adapts a socketio.Dialer to Transport.
type SocketIO struct {
	Dialer *socketio.Dialer
}

func (t SocketIO) Dial(ctx context.Context, token string) (Stream, error) {
	conn, err := t.Dialer.Dial(ctx, token)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type Handler func(payload json.RawMessage)

type Status struct {
	State model.ConnState
	Token string
}

var ErrNotConnected = errors.New("realtime: not connected")

type Channel struct {
	transport Transport
	logger    *slog.Logger

	mu       sync.Mutex
	state    model.ConnState
	token    string
	gen      uint64
	cancel   context.CancelFunc
	stream   Stream
	handlers map[string]Handler

	statuses *hub.Hub[Status]
	failures *hub.Hub[error]
}

func NewChannel(transport Transport, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		transport: transport,
		logger:    logger,
		state:     model.ConnDisconnected,
		handlers:  make(map[string]Handler),
		statuses:  hub.New[Status](),
		failures:  hub.New[error](),
	}
}

// Connect binds the channel to token. It returns immediately; the dial and
// the read loop run in the background. Connecting again with the bound token
// is a no-op; a different token tears the current connection down first.
func (c *Channel) Connect(token string) {
	if token == "" {
		c.Disconnect()
		return
	}

	c.mu.Lock()
	if c.state != model.ConnDisconnected && c.token == token {
		c.mu.Unlock()
		return
	}
	if c.state != model.ConnDisconnected {
		c.teardownLocked()
		c.handlers = make(map[string]Handler)
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = model.ConnConnecting
	c.token = token
	c.mu.Unlock()

	c.logger.Debug("realtime connecting")
	c.statuses.Broadcast(Status{State: model.ConnConnecting, Token: token})
	go c.run(ctx, gen, token)
}

// Disconnect releases the transport and every handler.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	wasConnected := c.state != model.ConnDisconnected
	c.teardownLocked()
	c.gen++
	c.handlers = make(map[string]Handler)
	c.state = model.ConnDisconnected
	c.token = ""
	c.mu.Unlock()

	if wasConnected {
		c.logger.Debug("realtime disconnected")
		c.statuses.Broadcast(Status{State: model.ConnDisconnected})
	}
}

// On installs handler for event, replacing any previous one.
func (c *Channel) On(event string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = handler
}

func (c *Channel) Off(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

func (c *Channel) Emit(event string, payload any) error {
	c.mu.Lock()
	stream := c.stream
	connected := c.state == model.ConnConnected
	c.mu.Unlock()

	if !connected || stream == nil {
		return apierr.Transport("emit "+event, ErrNotConnected)
	}
	if err := stream.Emit(event, payload); err != nil {
		return apierr.Transport("emit "+event, err)
	}
	return nil
}

func (c *Channel) State() model.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) BoundToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Channel) HasHandler(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[event]
	return ok
}

func (c *Channel) Subscribe(fn func(Status)) (unsubscribe func()) {
	return c.statuses.Register(fn)
}

// SubscribeErrors registers fn on the transport-error side channel.
func (c *Channel) SubscribeErrors(fn func(error)) (unsubscribe func()) {
	return c.failures.Register(fn)
}

func (c *Channel) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.stream != nil {
		_ = c.stream.Close()
		c.stream = nil
	}
}

func (c *Channel) run(ctx context.Context, gen uint64, token string) {
	stream, err := c.transport.Dial(ctx, token)
	if err != nil {
		if ctx.Err() == nil {
			c.fail(gen, err)
		}
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		_ = stream.Close()
		return
	}
	c.stream = stream
	c.state = model.ConnConnected
	c.mu.Unlock()

	c.logger.Info("realtime connected")
	c.statuses.Broadcast(Status{State: model.ConnConnected, Token: token})

	for {
		ev, err := stream.ReadEvent()
		if err != nil {
			if ctx.Err() == nil {
				c.fail(gen, err)
			}
			return
		}
		c.dispatch(gen, ev)
	}
}

func (c *Channel) dispatch(gen uint64, ev socketio.Event) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	handler := c.handlers[ev.Name]
	c.mu.Unlock()

	if handler == nil {
		c.logger.Debug("realtime event without handler", "event", ev.Name)
		return
	}
	handler(ev.Payload())
}

// fail moves a live attempt to disconnected and reports err on the side
// channel. Handlers survive so a later Connect picks them up again.
func (c *Channel) fail(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.state = model.ConnDisconnected
	c.token = ""
	c.mu.Unlock()

	c.logger.Warn("realtime transport error", "error", err)
	c.statuses.Broadcast(Status{State: model.ConnDisconnected})
	c.failures.Broadcast(err)
}
