package socketio

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

type enginePacketType byte

const (
	engineOpen    enginePacketType = '0'
	engineClose   enginePacketType = '1'
	enginePing    enginePacketType = '2'
	enginePong    enginePacketType = '3'
	engineMessage enginePacketType = '4'
)

type socketPacketType byte

const (
	socketConnect      socketPacketType = '0'
	socketDisconnect   socketPacketType = '1'
	socketEvent        socketPacketType = '2'
	socketAck          socketPacketType = '3'
	socketConnectError socketPacketType = '4'
)

// Event is a decoded Socket.IO event: a name plus its JSON arguments.
type Event struct {
	Name string
	Args []json.RawMessage
}

// Payload returns the first argument, or nil when the event carried none.
func (e Event) Payload() json.RawMessage {
	if len(e.Args) == 0 {
		return nil
	}
	return e.Args[0]
}

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
	MaxPayload   int64  `json:"maxPayload"`
}

func parseOpenPacket(msg string) (openPacket, error) {
	if msg == "" || enginePacketType(msg[0]) != engineOpen {
		return openPacket{}, errors.New("not an open packet")
	}
	var open openPacket
	if err := json.Unmarshal([]byte(msg[1:]), &open); err != nil {
		return openPacket{}, err
	}
	return open, nil
}

func parseOptionalNamespace(s string) (namespace string, rest string) {
	if !strings.HasPrefix(s, "/") {
		return "/", s
	}
	comma := strings.IndexByte(s, ',')
	if comma == -1 {
		return "/", s
	}
	return s[:comma], s[comma+1:]
}

func parseOptionalIDPrefix(s string) (id *int, rest string) {
	i := 0
	for i < len(s) {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		i++
	}
	if i == 0 {
		return nil, s
	}
	v, err := strconv.Atoi(s[:i])
	if err != nil {
		return nil, s
	}
	return &v, s[i:]
}

type socketEventPacket struct {
	Namespace string
	ID        *int
	Event     string
	Args      []json.RawMessage
}

func parseSocketEventPacket(payload string) (socketEventPacket, error) {
	if payload == "" {
		return socketEventPacket{}, errors.New("empty payload")
	}
	if payload[0] != byte(socketEvent) {
		return socketEventPacket{}, errors.New("not an event packet")
	}

	ns, rest := parseOptionalNamespace(payload[1:])
	id, rest := parseOptionalIDPrefix(rest)
	if !strings.HasPrefix(rest, "[") {
		return socketEventPacket{}, errors.New("invalid event payload")
	}

	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(rest), &arr); err != nil {
		return socketEventPacket{}, err
	}
	if len(arr) == 0 {
		return socketEventPacket{}, errors.New("missing event name")
	}
	var eventName string
	if err := json.Unmarshal(arr[0], &eventName); err != nil {
		return socketEventPacket{}, errors.New("invalid event name")
	}

	return socketEventPacket{Namespace: ns, ID: id, Event: eventName, Args: arr[1:]}, nil
}

// parseConnectError extracts the message of a "44{...}" packet.
func parseConnectError(payload string) string {
	if payload == "" || payload[0] != byte(socketConnectError) {
		return ""
	}
	_, rest := parseOptionalNamespace(payload[1:])
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(rest), &body); err != nil || body.Message == "" {
		return "connect error"
	}
	return body.Message
}

func buildSocketEventPacket(namespace string, id *int, event string, args ...any) (string, error) {
	arr := make([]any, 0, 1+len(args))
	arr = append(arr, event)
	arr = append(arr, args...)
	data, err := json.Marshal(arr)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte(byte(socketEvent))
	writeNamespace(&b, namespace)
	if id != nil {
		b.WriteString(strconv.Itoa(*id))
	}
	b.Write(data)
	return b.String(), nil
}

// buildSocketConnectPacket encodes a CONNECT with a JSON body: the handshake
// auth object on the client side, {"sid": ...} on the server side.
func buildSocketConnectPacket(namespace string, body any) (string, error) {
	var b strings.Builder
	b.WriteByte(byte(socketConnect))
	writeNamespace(&b, namespace)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		b.Write(data)
	}
	return b.String(), nil
}

func buildSocketConnectErrorPacket(namespace string, message string) (string, error) {
	data, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteByte(byte(socketConnectError))
	writeNamespace(&b, namespace)
	b.Write(data)
	return b.String(), nil
}

func buildSocketAckPacket(namespace string, id int, args ...any) (string, error) {
	if args == nil {
		args = make([]any, 0)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte(byte(socketAck))
	writeNamespace(&b, namespace)
	b.WriteString(strconv.Itoa(id))
	b.Write(data)
	return b.String(), nil
}

func writeNamespace(b *strings.Builder, namespace string) {
	if namespace != "" && namespace != "/" {
		b.WriteString(namespace)
		b.WriteByte(',')
	}
}
