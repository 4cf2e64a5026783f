package socketio

import (
	"encoding/json"
	"testing"
)

func TestParseSocketEventPacket(t *testing.T) {
	pkt, err := parseSocketEventPacket(`212["notification",{"title":"t"}]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pkt.Event != "notification" {
		t.Fatalf("expected notification, got %q", pkt.Event)
	}
	if pkt.ID == nil || *pkt.ID != 12 {
		t.Fatalf("expected ack id 12, got %v", pkt.ID)
	}
	if pkt.Namespace != "/" {
		t.Fatalf("expected root namespace, got %q", pkt.Namespace)
	}
	var body map[string]string
	if err := json.Unmarshal(pkt.Args[0], &body); err != nil || body["title"] != "t" {
		t.Fatalf("unexpected args: %s", pkt.Args[0])
	}
}

func TestParseSocketEventPacket_Namespace(t *testing.T) {
	pkt, err := parseSocketEventPacket(`2/admin,["x"]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pkt.Namespace != "/admin" || pkt.Event != "x" || len(pkt.Args) != 0 {
		t.Fatalf("unexpected packet: %+v", pkt)
	}
}

func TestParseSocketEventPacket_Invalid(t *testing.T) {
	for _, in := range []string{"", "3[]", "2{}", "2[]", "2[1]"} {
		if _, err := parseSocketEventPacket(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestBuildConnectPacket(t *testing.T) {
	got, err := buildSocketConnectPacket("/", map[string]string{"token": "T1"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got != `0{"token":"T1"}` {
		t.Fatalf("unexpected packet %q", got)
	}

	bare, _ := buildSocketConnectPacket("/", nil)
	if bare != "0" {
		t.Fatalf("unexpected bare packet %q", bare)
	}
}

func TestConnectErrorRoundTrip(t *testing.T) {
	packet, err := buildSocketConnectErrorPacket("/", "Invalid authentication token")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if msg := parseConnectError(packet); msg != "Invalid authentication token" {
		t.Fatalf("unexpected message %q", msg)
	}
	if msg := parseConnectError("4garbage"); msg != "connect error" {
		t.Fatalf("unexpected fallback %q", msg)
	}
}

func TestBuildAckPacket(t *testing.T) {
	got, err := buildSocketAckPacket("/", 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got != "33[]" {
		t.Fatalf("unexpected ack %q", got)
	}
}

func TestParseOpenPacket(t *testing.T) {
	open, err := parseOpenPacket(`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if open.SID != "abc" || open.PingInterval != 25000 || open.PingTimeout != 20000 {
		t.Fatalf("unexpected open packet %+v", open)
	}
	if _, err := parseOpenPacket("40"); err == nil {
		t.Fatalf("expected error")
	}
}
