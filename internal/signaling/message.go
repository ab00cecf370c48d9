package signaling

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket frames.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Ack correlates a join request with its acknowledgment.
	Ack *uint64 `json:"ack,omitempty"`

	// client is the client that sent the message.
	// It's used internally by the Hub and not sent over JSON.
	client *Client `json:"-"`
}

// Message type constants.
const (
	// Inbound
	MessageTypeJoin    = "join"
	MessageTypeLeave   = "leave"
	MessageTypeMessage = "message"

	// Outbound
	MessageTypeSTUNServers = "stunservers"
	MessageTypeAck         = "ack"
	MessageTypeRemove      = "remove"
)

// STUNServer is one entry of the list pushed to every new connection.
type STUNServer struct {
	URL string `json:"url"`
}

// RoomSnapshot maps every member of a room to its capability profile.
type RoomSnapshot map[ConnectionID]Capabilities

// JoinAck is the payload acknowledging a successful join.
type JoinAck struct {
	Clients RoomSnapshot `json:"clients"`
}

// RemovePayload announces that a connection left the room.
type RemovePayload struct {
	ID ConnectionID `json:"id"`
}

// newMessage builds an outbound message, marshaling payload into the frame.
func newMessage(typ string, payload any) *Message {
	msg := &Message{Type: typ}
	if payload == nil {
		return msg
	}
	b, err := json.Marshal(payload)
	if err != nil {
		// Payload types in this package always marshal.
		panic("signaling: marshal " + typ + ": " + err.Error())
	}
	msg.Payload = b
	return msg
}

// inboundFrame is the loose shape of a client frame. The ack id is kept raw
// so a badly typed one does not cost the whole frame.
type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Ack     json.RawMessage `json:"ack"`
}

// decodeMessage parses one inbound frame. Frames without a type are rejected.
func decodeMessage(data []byte) (*Message, bool) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil || f.Type == "" {
		return nil, false
	}
	return &Message{Type: f.Type, Payload: f.Payload, Ack: parseAck(f.Ack)}, true
}

// parseAck accepts a non-negative integer or a decimal string holding one.
// Anything else means the sender asked for no correlation id.
func parseAck(raw json.RawMessage) *uint64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var n uint64
	if json.Unmarshal(raw, &n) == nil {
		return &n
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// isFalsy reports whether a raw JSON value is absent or falsy. Objects and
// arrays are never decoded.
func isFalsy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true
	}
	if raw[0] == '{' || raw[0] == '[' {
		return false
	}
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return true
	}
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	}
	return false
}
