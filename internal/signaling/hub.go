package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/Joe8Bit/webrtc-workshop/internal/metrics"
)

// Hub is the central brain of the signaling server.
// It owns the connection and room registries and the message router, and is
// the only goroutine that touches them.
type Hub struct {
	conns  *ConnectionRegistry
	rooms  *RoomRegistry
	router *Router

	stunServers []STUNServer
	metrics     *metrics.Metrics

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for clients whose transport went away.
	Unregister chan *Client

	// Inbound carries every frame read from a client.
	Inbound chan *Message

	done chan struct{}

	liveConns atomic.Int64
	liveRooms atomic.Int64
}

// HubOptions configures a Hub.
type HubOptions struct {
	// STUNServers is pushed, in order, to every new connection.
	STUNServers []string

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// NewHub creates a new Hub instance.
func NewHub(opts HubOptions) *Hub {
	h := &Hub{
		metrics:    opts.Metrics,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *Message),
		done:       make(chan struct{}),
	}
	h.conns = NewConnectionRegistry()
	h.rooms = NewRoomRegistry(h.conns, h.deliver)
	h.router = NewRouter(h.conns, h.deliver)

	h.stunServers = make([]STUNServer, 0, len(opts.STUNServers))
	for _, url := range opts.STUNServers {
		h.stunServers = append(h.stunServers, STUNServer{URL: url})
	}
	return h
}

// Run starts the hub's main processing loop and returns when ctx is done.
// Each event is handled to completion before the next one is read.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.handleConnect(client)

		case client := <-h.Unregister:
			h.handleDisconnect(client)

		case msg := <-h.Inbound:
			h.handleMessage(msg)
		}

		h.liveConns.Store(int64(h.conns.Len()))
		h.liveRooms.Store(int64(h.rooms.Len()))
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Connections returns the number of live connections.
func (h *Hub) Connections() int {
	return int(h.liveConns.Load())
}

// Rooms returns the number of non-empty rooms.
func (h *Hub) Rooms() int {
	return int(h.liveRooms.Load())
}

func (h *Hub) handleConnect(client *Client) {
	id := h.conns.Register(client)
	h.metrics.Inc(metrics.ConnectionsOpened)
	slog.Info("client registered", "id", id, "remote", client.remoteAddr())

	conn, _ := h.conns.Lookup(id)
	h.deliver(conn, newMessage(MessageTypeSTUNServers, h.stunServers))
}

func (h *Hub) handleDisconnect(client *Client) {
	conn, ok := h.conns.Lookup(client.ID)
	if !ok || conn.client != client {
		return
	}

	// Same cleanup as an explicit leave, then the record goes away.
	if conn.Room != "" {
		h.rooms.Leave(conn.ID)
		h.metrics.Inc(metrics.RoomLeaves)
	}
	h.conns.Unregister(conn.ID)
	h.metrics.Inc(metrics.ConnectionsClosed)
	slog.Info("client unregistered", "id", conn.ID, "remote", client.remoteAddr())

	// Close the client's send channel to stop its writePump.
	close(client.Send)
}

func (h *Hub) handleMessage(msg *Message) {
	conn, ok := h.conns.Lookup(msg.client.ID)
	if !ok || conn.client != msg.client {
		// Raced with disconnect.
		return
	}

	switch msg.Type {
	case MessageTypeJoin:
		var name string
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &name); err != nil {
				slog.Debug("ignoring join with non-string room", "id", conn.ID)
				return
			}
		}
		snapshot, ok := h.rooms.Join(conn.ID, name)
		if !ok {
			return
		}
		h.metrics.Inc(metrics.RoomJoins)

		ack := newMessage(MessageTypeAck, JoinAck{Clients: snapshot})
		ack.Ack = msg.Ack
		h.deliver(conn, ack)

	case MessageTypeLeave:
		if conn.Room == "" {
			return
		}
		h.rooms.Leave(conn.ID)
		h.metrics.Inc(metrics.RoomLeaves)

	case MessageTypeMessage:
		if h.router.Route(conn.ID, msg.Payload) {
			h.metrics.Inc(metrics.MessagesRelayed)
		} else {
			h.metrics.Inc(metrics.MessagesDropped)
		}

	default:
		h.metrics.Inc(metrics.FramesInvalid)
		slog.Debug("unknown message type", "id", conn.ID, "type", msg.Type)
	}
}

// deliver queues msg on the connection's outbound channel without blocking.
// A full queue drops the message.
func (h *Hub) deliver(conn *Connection, msg *Message) {
	if conn == nil || conn.client == nil {
		return
	}
	select {
	case conn.client.Send <- msg:
	default:
		h.metrics.Inc(metrics.OutboundDropped)
		slog.Warn("outbound queue full, dropping message", "id", conn.ID, "type", msg.Type)
	}
}
