package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

// Engine.IO v4 packet types, the first byte of every text frame.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO v5 packet types, the byte following an Engine.IO message.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// Frames the client writes.
var (
	framePong       = []byte{eioPong}
	frameConnect    = []byte{eioMessage, sioConnect}
	frameDisconnect = []byte{eioMessage, sioDisconnect}
)

const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 20 * time.Second
	handshakeTimeout    = 10 * time.Second
	writeWait           = time.Second
)

var errServerDisconnect = errors.New("realtime server closed the session")

// handshake is the payload of the Engine.IO open packet.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// readDeadline is how long the client waits for the next frame before the
// session is considered dead.
func (h handshake) readDeadline() time.Duration {
	interval := time.Duration(h.PingInterval) * time.Millisecond
	timeout := time.Duration(h.PingTimeout) * time.Millisecond
	if interval <= 0 {
		interval = defaultPingInterval
	}
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	return interval + timeout
}

func parseOpen(frame []byte) (handshake, error) {
	var h handshake
	if len(frame) == 0 || frame[0] != eioOpen {
		return h, fmt.Errorf("expected engine.io open packet, got %q", truncate(frame))
	}
	if err := json.Unmarshal(frame[1:], &h); err != nil {
		return h, fmt.Errorf("decode engine.io open packet: %w", err)
	}
	return h, nil
}

// packetKind classifies a decoded frame.
type packetKind int

const (
	packetIgnore packetKind = iota
	packetPing
	packetConnected
	packetEvent
	packetClose
)

// parseFrame decodes one text frame of the default namespace. Packets for
// other namespaces and binary events are ignored.
func parseFrame(frame []byte) (packetKind, *core.Event, error) {
	if len(frame) == 0 {
		return packetIgnore, nil, nil
	}
	switch frame[0] {
	case eioPing:
		return packetPing, nil, nil
	case eioClose:
		return packetClose, nil, nil
	case eioMessage:
	default:
		return packetIgnore, nil, nil
	}

	if len(frame) < 2 {
		return packetIgnore, nil, nil
	}
	body := frame[2:]
	if len(body) > 0 && body[0] == '/' {
		// namespaced packet: "/ns,..."; only the default namespace is joined
		return packetIgnore, nil, nil
	}

	switch frame[1] {
	case sioConnect:
		return packetConnected, nil, nil
	case sioDisconnect:
		return packetClose, nil, nil
	case sioConnectError:
		return packetClose, nil, fmt.Errorf("socket.io connect refused: %s", body)
	case sioEvent:
		ev, err := decodeEvent(body)
		if err != nil {
			return packetIgnore, nil, err
		}
		return packetEvent, ev, nil
	}
	return packetIgnore, nil, nil
}

// decodeEvent reads `[ackID]["name", data, ...]`. Only the first argument
// is kept as the event data.
func decodeEvent(body []byte) (*core.Event, error) {
	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	var args []json.RawMessage
	if err := json.Unmarshal(body[i:], &args); err != nil {
		return nil, fmt.Errorf("decode socket.io event: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("socket.io event without a name")
	}
	ev := &core.Event{}
	if err := json.Unmarshal(args[0], &ev.Name); err != nil || ev.Name == "" {
		return nil, fmt.Errorf("socket.io event name %s", args[0])
	}
	if len(args) > 1 {
		ev.Data = args[1]
	}
	return ev, nil
}

func truncate(b []byte) []byte {
	if len(b) > 64 {
		return b[:64]
	}
	return b
}
