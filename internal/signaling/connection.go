package signaling

import "github.com/google/uuid"

// ConnectionID identifies one live connection for its whole lifetime.
type ConnectionID string

// Capabilities is the media profile advertised for a connection.
type Capabilities struct {
	Screen bool `json:"screen"`
	Video  bool `json:"video"`
	Audio  bool `json:"audio"`
}

// DefaultCapabilities is the profile every connection starts with, so that
// peers can bootstrap their listeners before any renegotiation.
var DefaultCapabilities = Capabilities{Screen: false, Video: true, Audio: false}

// Connection is the server-side record of a live peer.
type Connection struct {
	ID           ConnectionID
	Capabilities Capabilities

	// Room is the name of the room the connection is in, or "" for none.
	// Only the RoomRegistry writes it.
	Room string

	client *Client
}

// ConnectionRegistry owns the per-connection records.
//
// It is not safe for concurrent use; the Hub goroutine is its only user.
type ConnectionRegistry struct {
	conns map[ConnectionID]*Connection
	newID func() ConnectionID
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[ConnectionID]*Connection),
		newID: func() ConnectionID { return ConnectionID(uuid.NewString()) },
	}
}

// Register creates a record for client with the default profile and
// returns its fresh identifier.
func (r *ConnectionRegistry) Register(client *Client) ConnectionID {
	id := r.newID()
	for r.conns[id] != nil {
		id = r.newID()
	}
	r.conns[id] = &Connection{
		ID:           id,
		Capabilities: DefaultCapabilities,
		client:       client,
	}
	if client != nil {
		client.ID = id
	}
	return id
}

// Lookup returns the record for id. A missing id is a normal outcome.
func (r *ConnectionRegistry) Lookup(id ConnectionID) (*Connection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// Unregister drops the record for id. Room cleanup must already be done.
func (r *ConnectionRegistry) Unregister(id ConnectionID) {
	delete(r.conns, id)
}

// Len returns the number of live connections.
func (r *ConnectionRegistry) Len() int {
	return len(r.conns)
}
