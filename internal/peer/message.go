package peer

import "github.com/vmihailenco/msgpack/v5"

// Data channel message types
const (
	MessageTypeHello = "hello"
)

// HelloPayload is the first frame each side sends once the data channel opens.
type HelloPayload struct {
	ID     string `msgpack:"id"`
	Screen bool   `msgpack:"screen"`
	Video  bool   `msgpack:"video"`
	Audio  bool   `msgpack:"audio"`
}

// Message represents all WebRTC data channel messages
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewMessage creates a new Message with the given type and payload
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Type:    t,
		Payload: b,
	}, nil
}

// Encode serializes m for the wire.
func (m Message) Encode() ([]byte, error) {
	return msgpack.Marshal(m)
}

// DecodeMessage parses a data channel frame.
func DecodeMessage(b []byte) (Message, error) {
	var m Message
	err := msgpack.Unmarshal(b, &m)
	return m, err
}
