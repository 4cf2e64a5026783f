package socketio

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	maxPayload   int64         = 1000000
	writeTimeout time.Duration = 10 * time.Second
	pingInterval time.Duration = 25 * time.Second
	pingTimeout  time.Duration = 20 * time.Second
)

// Verifier resolves a handshake token to a user id.
type Verifier func(token string) (userID string, err error)

type ServerOptions struct {
	Verify Verifier
	Logger *slog.Logger
}

// Server is a minimal Socket.IO endpoint that pushes events to every
// connection of a user. It backs the development server and tests.
type Server struct {
	verify Verifier
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu            sync.RWMutex
	roomUsers     map[string]map[*conn]struct{}
	connsBySocket map[*websocket.Conn]*conn
}

func NewServer(opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		verify: opts.Verify,
		logger: opts.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		roomUsers:     make(map[string]map[*conn]struct{}),
		connsBySocket: make(map[*websocket.Conn]*conn),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws.SetReadLimit(maxPayload)

	c := newConn(ws)
	s.registerConn(c)
	defer s.unregisterConn(c)

	open := map[string]any{
		"sid":          c.sid,
		"upgrades":     []string{},
		"pingInterval": pingInterval.Milliseconds(),
		"pingTimeout":  pingTimeout.Milliseconds(),
		"maxPayload":   maxPayload,
	}
	openBytes, _ := json.Marshal(open)
	_ = c.writeText(string(engineOpen) + string(openBytes))

	go c.pingLoop()
	c.readLoop(func(msg string) {
		s.handleMessage(c, msg)
	})
}

// Emit sends event to every connection authenticated as userID and returns
// how many connections accepted the write.
func (s *Server) Emit(userID string, event string, payload any) int {
	packet, err := buildSocketEventPacket("/", nil, event, payload)
	if err != nil {
		s.logger.Error("socket emit: encode failed", "event", event, "error", err)
		return 0
	}

	s.mu.RLock()
	set := s.roomUsers[userID]
	conns := make([]*conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if err := c.writeText(string(engineMessage) + packet); err != nil {
			s.unregisterConn(c)
			continue
		}
		delivered++
	}
	return delivered
}

// Connections returns the number of authenticated connections of userID.
func (s *Server) Connections(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.roomUsers[userID])
}

func (s *Server) registerConn(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connsBySocket[c.ws] = c
}

func (s *Server) unregisterConn(c *conn) {
	s.mu.Lock()
	delete(s.connsBySocket, c.ws)
	if c.userID != "" {
		s.leaveRoom(c.userID, c)
	}
	s.mu.Unlock()

	c.close()
}

func (s *Server) joinRoom(key string, c *conn) {
	set, ok := s.roomUsers[key]
	if !ok {
		set = make(map[*conn]struct{})
		s.roomUsers[key] = set
	}
	set[c] = struct{}{}
}

func (s *Server) leaveRoom(key string, c *conn) {
	set, ok := s.roomUsers[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(s.roomUsers, key)
	}
}

func (s *Server) handleMessage(c *conn, msg string) {
	if msg == "" {
		return
	}

	switch enginePacketType(msg[0]) {
	case enginePong:
		c.markPong()
	case engineMessage:
		s.handleSocketPayload(c, msg[1:])
	case engineClose:
		c.close()
	}
}

type connectAuth struct {
	Token string `json:"token"`
}

func (s *Server) handleSocketPayload(c *conn, payload string) {
	if payload == "" {
		return
	}

	switch socketPacketType(payload[0]) {
	case socketConnect:
		s.handleConnect(c, payload)
	case socketDisconnect:
		c.close()
	case socketEvent:
		s.handleEvent(c, payload)
	}
}

func (s *Server) handleConnect(c *conn, payload string) {
	if c.connected.Load() {
		return
	}

	_, rest := parseOptionalNamespace(payload[1:])
	if rest == "" {
		s.reject(c, "Missing auth")
		return
	}

	var authObj connectAuth
	if err := json.Unmarshal([]byte(rest), &authObj); err != nil {
		s.reject(c, "Invalid auth")
		return
	}
	if authObj.Token == "" {
		s.reject(c, "Missing token")
		return
	}
	if s.verify == nil {
		s.reject(c, "Invalid authentication token")
		return
	}
	userID, err := s.verify(authObj.Token)
	if err != nil || userID == "" {
		s.reject(c, "Invalid authentication token")
		return
	}

	c.userID = userID
	c.connected.Store(true)

	s.mu.Lock()
	s.joinRoom(c.userID, c)
	s.mu.Unlock()

	ack, err := buildSocketConnectPacket("/", map[string]string{"sid": c.sid})
	if err != nil {
		return
	}
	_ = c.writeText(string(engineMessage) + ack)
}

func (s *Server) reject(c *conn, message string) {
	packet, err := buildSocketConnectErrorPacket("/", message)
	if err == nil {
		_ = c.writeText(string(engineMessage) + packet)
	}
	c.close()
}

func (s *Server) handleEvent(c *conn, payload string) {
	if !c.connected.Load() {
		return
	}

	pkt, err := parseSocketEventPacket(payload)
	if err != nil {
		return
	}

	switch pkt.Event {
	case "ping":
		if pkt.ID != nil {
			ackPayload, err := buildSocketAckPacket(pkt.Namespace, *pkt.ID)
			if err == nil {
				_ = c.writeText(string(engineMessage) + ackPayload)
			}
		}
	default:
		s.logger.Debug("socket event ignored", "event", pkt.Event, "user_id", c.userID)
	}
}

type conn struct {
	ws *websocket.Conn

	sid string

	connected atomic.Bool
	userID    string

	sendMu sync.Mutex

	pingMu       sync.Mutex
	awaitingPong bool
	pingSentAt   time.Time
	nextPingAt   time.Time

	closed atomic.Bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:         ws,
		sid:        uuid.NewString(),
		nextPingAt: time.Now().Add(pingInterval),
	}
}

func (c *conn) close() {
	if c.closed.Swap(true) {
		return
	}
	_ = c.ws.Close()
}

func (c *conn) writeText(msg string) error {
	if c.closed.Load() {
		return errors.New("connection closed")
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *conn) readLoop(onMessage func(string)) {
	defer c.close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		onMessage(string(data))
	}
}

func (c *conn) pingLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if c.closed.Load() {
			return
		}
		now := time.Now()
		c.pingMu.Lock()
		awaiting := c.awaitingPong
		pingSentAt := c.pingSentAt
		nextPingAt := c.nextPingAt
		if awaiting && now.Sub(pingSentAt) > pingTimeout {
			c.pingMu.Unlock()
			c.close()
			return
		}
		if !awaiting && !now.Before(nextPingAt) {
			c.awaitingPong = true
			c.pingSentAt = now
			c.nextPingAt = now.Add(pingInterval)
			c.pingMu.Unlock()
			_ = c.writeText(string(enginePing))
			continue
		}
		c.pingMu.Unlock()
	}
}

func (c *conn) markPong() {
	c.pingMu.Lock()
	c.awaitingPong = false
	c.pingMu.Unlock()
}
