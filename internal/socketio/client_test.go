package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"garage-client/internal/logging"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(ServerOptions{
		Logger: logging.Discard(),
		Verify: func(token string) (string, error) {
			if token != "good" {
				return "", errors.New("bad token")
			}
			return "user-1", nil
		},
	})
	httpSrv := httptest.NewServer(srv)
	t.Cleanup(httpSrv.Close)
	return srv, httpSrv
}

func waitForConnections(t *testing.T, srv *Server, userID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Connections(userID) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d connections, have %d", n, srv.Connections(userID))
}

func TestDialer_HandshakeAndReceiveEvent(t *testing.T) {
	srv, httpSrv := newTestServer(t)
	d := NewDialer(DialerOptions{URL: httpSrv.URL, Path: "/", Logger: logging.Discard()})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx, "good")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	if conn.SID() == "" {
		t.Fatalf("expected sid from connect ack")
	}

	waitForConnections(t, srv, "user-1", 1)
	if n := srv.Emit("user-1", "notification", map[string]string{"title": "hola"}); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}

	ev, err := conn.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent: %v", err)
	}
	if ev.Name != "notification" {
		t.Fatalf("expected notification, got %q", ev.Name)
	}
	var body map[string]string
	if err := json.Unmarshal(ev.Payload(), &body); err != nil || body["title"] != "hola" {
		t.Fatalf("unexpected payload %s", ev.Payload())
	}
}

func TestDialer_RejectedToken(t *testing.T) {
	_, httpSrv := newTestServer(t)
	d := NewDialer(DialerOptions{URL: httpSrv.URL, Path: "/", Logger: logging.Discard()})

	_, err := d.Dial(context.Background(), "bad")
	var connectErr *ConnectError
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected ConnectError, got %v", err)
	}
	if connectErr.Message != "Invalid authentication token" {
		t.Fatalf("unexpected message %q", connectErr.Message)
	}
}

func TestConn_CloseUnblocksReader(t *testing.T) {
	srv, httpSrv := newTestServer(t)
	d := NewDialer(DialerOptions{URL: httpSrv.URL, Path: "/", Logger: logging.Discard()})

	conn, err := d.Dial(context.Background(), "good")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	waitForConnections(t, srv, "user-1", 1)

	done := make(chan error, 1)
	go func() {
		_, err := conn.ReadEvent()
		done <- err
	}()
	_ = conn.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("reader did not unblock")
	}
	waitForConnections(t, srv, "user-1", 0)
}

func TestDialer_Endpoint(t *testing.T) {
	d := NewDialer(DialerOptions{URL: "https://api.example.com/base/"})
	got, err := d.endpoint()
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if got != "wss://api.example.com/base/socket.io/?EIO=4&transport=websocket" {
		t.Fatalf("unexpected endpoint %q", got)
	}

	if _, err := NewDialer(DialerOptions{URL: "ftp://x"}).endpoint(); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}
