package signaling

import "log/slog"

// DeliverFunc hands an outbound message to a connection's transport.
// It must not block.
type DeliverFunc func(conn *Connection, msg *Message)

// Room is a named set of connection identifiers.
type Room struct {
	// Name is the key the room was joined under.
	Name string

	// Members holds the ids of every connection currently in the room.
	Members map[ConnectionID]struct{}
}

// RoomRegistry owns the room-to-members mapping and keeps it consistent with
// Connection.Room. Like ConnectionRegistry it belongs to the Hub goroutine.
type RoomRegistry struct {
	rooms   map[string]*Room
	conns   *ConnectionRegistry
	deliver DeliverFunc
}

func NewRoomRegistry(conns *ConnectionRegistry, deliver DeliverFunc) *RoomRegistry {
	return &RoomRegistry{
		rooms:   make(map[string]*Room),
		conns:   conns,
		deliver: deliver,
	}
}

// Join moves connID into room name and returns the room's membership.
//
// An empty name, or an id with no live connection, is a no-op: ok is false
// and the caller must not acknowledge.
func (r *RoomRegistry) Join(connID ConnectionID, name string) (snapshot RoomSnapshot, ok bool) {
	if name == "" {
		return nil, false
	}
	conn, found := r.conns.Lookup(connID)
	if !found {
		return nil, false
	}

	// Joining always leaves the previous room first, departure notice included.
	r.Leave(connID)

	room, exists := r.rooms[name]
	if !exists {
		room = &Room{Name: name, Members: make(map[ConnectionID]struct{})}
		r.rooms[name] = room
		slog.Debug("room created", "room", name)
	}
	room.Members[connID] = struct{}{}
	conn.Room = name

	slog.Info("client joined room", "id", connID, "room", name, "members", len(room.Members))
	return r.describe(room), true
}

// Leave removes connID from its current room, if any.
//
// The remove notice goes to every member before the connection is taken out
// of the set, so the leaving connection receives its own notice too.
func (r *RoomRegistry) Leave(connID ConnectionID) {
	conn, found := r.conns.Lookup(connID)
	if !found || conn.Room == "" {
		return
	}

	room, exists := r.rooms[conn.Room]
	if !exists {
		conn.Room = ""
		return
	}

	notice := newMessage(MessageTypeRemove, RemovePayload{ID: connID})
	for id := range room.Members {
		if member, ok := r.conns.Lookup(id); ok {
			r.deliver(member, notice)
		}
	}

	delete(room.Members, connID)
	conn.Room = ""
	slog.Info("client left room", "id", connID, "room", room.Name, "members", len(room.Members))

	if len(room.Members) == 0 {
		delete(r.rooms, room.Name)
		slog.Debug("room deleted", "room", room.Name)
	}
}

// Members returns the ids in room name, in no particular order.
func (r *RoomRegistry) Members(name string) []ConnectionID {
	room, ok := r.rooms[name]
	if !ok {
		return nil
	}
	ids := make([]ConnectionID, 0, len(room.Members))
	for id := range room.Members {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of non-empty rooms.
func (r *RoomRegistry) Len() int {
	return len(r.rooms)
}

func (r *RoomRegistry) describe(room *Room) RoomSnapshot {
	snapshot := make(RoomSnapshot, len(room.Members))
	for id := range room.Members {
		if member, ok := r.conns.Lookup(id); ok {
			snapshot[id] = member.Capabilities
		}
	}
	return snapshot
}
