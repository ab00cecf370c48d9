package signaling

import (
	"encoding/json"
	"log/slog"
)

// Router relays opaque signaling payloads between two connections.
type Router struct {
	conns   *ConnectionRegistry
	deliver DeliverFunc
}

func NewRouter(conns *ConnectionRegistry, deliver DeliverFunc) *Router {
	return &Router{conns: conns, deliver: deliver}
}

// Route forwards payload to the connection named by its "to" field, stamped
// with senderID as "from". It reports whether anything was delivered.
//
// Falsy payloads, non-object payloads and unknown recipients are dropped
// without telling the sender.
func (r *Router) Route(senderID ConnectionID, payload json.RawMessage) bool {
	if isFalsy(payload) {
		return false
	}

	env, err := ParseEnvelope(payload)
	if err != nil {
		slog.Debug("dropping unparseable message", "from", senderID, "error", err)
		return false
	}

	target, ok := r.conns.Lookup(env.To)
	if !ok {
		slog.Debug("dropping message for unknown recipient", "from", senderID, "to", env.To)
		return false
	}

	env.From = senderID
	r.deliver(target, newMessage(MessageTypeMessage, env))
	return true
}
