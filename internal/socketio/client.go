package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultPath             = "/socket.io/"
	defaultHandshakeTimeout = 10 * time.Second
)

var (
	ErrClosed           = errors.New("socketio: connection closed")
	ErrServerDisconnect = errors.New("socketio: server closed the connection")
)

// ConnectError is returned when the server refuses the handshake, usually
// because the bearer token was rejected.
type ConnectError struct {
	Message string
}

func (e *ConnectError) Error() string {
	return "socketio: connect refused: " + e.Message
}

type DialerOptions struct {
	// URL is the server origin, http(s):// or ws(s)://.
	URL              string
	Path             string
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Dialer opens Engine.IO v4 / Socket.IO v5 connections over a websocket.
type Dialer struct {
	url              string
	path             string
	handshakeTimeout time.Duration
	ws               *websocket.Dialer
	logger           *slog.Logger
}

func NewDialer(opts DialerOptions) *Dialer {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dialer{
		url:              opts.URL,
		path:             opts.Path,
		handshakeTimeout: opts.HandshakeTimeout,
		ws: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger: opts.Logger,
	}
}

func (d *Dialer) endpoint() (string, error) {
	u, err := url.Parse(d.url)
	if err != nil {
		return "", fmt.Errorf("socketio: invalid url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("socketio: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + d.path
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial connects and completes the Socket.IO handshake, authenticating with
// token in the CONNECT packet.
func (d *Dialer) Dial(ctx context.Context, token string) (*Conn, error) {
	endpoint, err := d.endpoint()
	if err != nil {
		return nil, err
	}

	ws, _, err := d.ws.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxPayload)

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	c := &Conn{ws: ws}
	if err := c.handshake(token, d.handshakeTimeout); err != nil {
		_ = ws.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	d.logger.Debug("socket connected", "sid", c.sid)
	return c, nil
}

// Conn is a connected Socket.IO client. ReadEvent must be called from a
// single goroutine; Emit and Close are safe for concurrent use.
type Conn struct {
	ws *websocket.Conn

	sid          string
	pingInterval time.Duration
	pingTimeout  time.Duration

	sendMu sync.Mutex
	closed atomic.Bool
}

func (c *Conn) handshake(token string, timeout time.Duration) error {
	_ = c.ws.SetReadDeadline(time.Now().Add(timeout))

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return err
	}
	open, err := parseOpenPacket(string(data))
	if err != nil {
		return err
	}
	c.pingInterval = time.Duration(open.PingInterval) * time.Millisecond
	c.pingTimeout = time.Duration(open.PingTimeout) * time.Millisecond

	connect, err := buildSocketConnectPacket("/", map[string]string{"token": token})
	if err != nil {
		return err
	}
	if err := c.writeText(string(engineMessage) + connect); err != nil {
		return err
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		msg := string(data)
		if msg == "" {
			continue
		}
		switch enginePacketType(msg[0]) {
		case enginePing:
			_ = c.writeText(string(enginePong))
			continue
		case engineClose:
			return ErrServerDisconnect
		case engineMessage:
		default:
			continue
		}

		payload := msg[1:]
		if payload == "" {
			continue
		}
		switch socketPacketType(payload[0]) {
		case socketConnect:
			_, rest := parseOptionalNamespace(payload[1:])
			var body struct {
				SID string `json:"sid"`
			}
			if rest != "" {
				_ = json.Unmarshal([]byte(rest), &body)
			}
			c.sid = body.SID
			_ = c.ws.SetReadDeadline(time.Time{})
			return nil
		case socketConnectError:
			return &ConnectError{Message: parseConnectError(payload)}
		case socketEvent:
			pkt, err := parseSocketEventPacket(payload)
			if err == nil && pkt.Event == "error" {
				return &ConnectError{Message: errorEventMessage(pkt)}
			}
		}
	}
}

// ReadEvent blocks until the next event arrives. Engine-level pings are
// answered transparently.
func (c *Conn) ReadEvent() (Event, error) {
	for {
		if c.pingInterval > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.pingInterval + c.pingTimeout))
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return Event{}, ErrClosed
			}
			return Event{}, err
		}

		msg := string(data)
		if msg == "" {
			continue
		}
		switch enginePacketType(msg[0]) {
		case enginePing:
			if err := c.writeText(string(enginePong)); err != nil {
				return Event{}, err
			}
			continue
		case engineClose:
			return Event{}, ErrServerDisconnect
		case engineMessage:
		default:
			continue
		}

		payload := msg[1:]
		if payload == "" {
			continue
		}
		switch socketPacketType(payload[0]) {
		case socketDisconnect:
			return Event{}, ErrServerDisconnect
		case socketEvent:
			pkt, err := parseSocketEventPacket(payload)
			if err != nil {
				continue
			}
			if pkt.ID != nil {
				if ack, err := buildSocketAckPacket(pkt.Namespace, *pkt.ID); err == nil {
					_ = c.writeText(string(engineMessage) + ack)
				}
			}
			return Event{Name: pkt.Event, Args: pkt.Args}, nil
		}
	}
}

func (c *Conn) Emit(event string, args ...any) error {
	packet, err := buildSocketEventPacket("/", nil, event, args...)
	if err != nil {
		return err
	}
	return c.writeText(string(engineMessage) + packet)
}

func (c *Conn) SID() string { return c.sid }

func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	_ = c.writeText(string(engineMessage) + string(socketDisconnect))
	return c.ws.Close()
}

func (c *Conn) writeText(msg string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

func errorEventMessage(pkt socketEventPacket) string {
	var body struct {
		Message string `json:"message"`
	}
	if len(pkt.Args) > 0 {
		_ = json.Unmarshal(pkt.Args[0], &body)
	}
	if body.Message == "" {
		return "error"
	}
	return body.Message
}
