package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Joe8Bit/webrtc-workshop/internal/dns"
	"github.com/Joe8Bit/webrtc-workshop/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// DefaultJoinTimeout bounds Join when the caller's context has no deadline.
	DefaultJoinTimeout = 10 * time.Second
)

// EventType names the unsolicited server events a peer reacts to.
type EventType string

const (
	EventRemove  EventType = signaling.MessageTypeRemove
	EventMessage EventType = signaling.MessageTypeMessage
)

// Event is a server push other than the STUN list and join acks.
type Event struct {
	Type EventType

	// Removed is set for EventRemove.
	Removed signaling.ConnectionID

	// Envelope is set for EventMessage; Envelope.From names the sender.
	Envelope *signaling.Envelope
}

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	conn      *websocket.Conn
	serverURL string

	outgoing chan *signaling.Message
	events   chan Event
	done     chan struct{}
	readDone chan struct{}

	closeOnce sync.Once

	stunOnce  sync.Once
	stunReady chan struct{}
	stun      []signaling.STUNServer

	nextAck atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan signaling.RoomSnapshot
}

// NewClient creates a new signaling client
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		outgoing:  make(chan *signaling.Message, 16),
		events:    make(chan Event, 64),
		done:      make(chan struct{}),
		readDone:  make(chan struct{}),
		stunReady: make(chan struct{}),
		pending:   make(map[uint64]chan signaling.RoomSnapshot),
	}
}

// Connect establishes the WebSocket connection to the server.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return NewError("connect", fmt.Errorf("invalid server URL: %w", err))
	}

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = dns.DialContext

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return NewError("connect", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// STUNServers waits for the list the server pushes after connecting.
func (c *Client) STUNServers(ctx context.Context) ([]signaling.STUNServer, error) {
	if c.conn == nil {
		return nil, NewError("stun servers", ErrNotConnected)
	}
	select {
	case <-c.stunReady:
		return c.stun, nil
	case <-c.readDone:
		return nil, NewError("stun servers", ErrServerClosed)
	case <-ctx.Done():
		return nil, NewError("stun servers", ctx.Err())
	}
}

// Join enters room and returns its membership, including this connection.
func (c *Client) Join(ctx context.Context, room string) (signaling.RoomSnapshot, error) {
	if room == "" {
		return nil, NewError("join", ErrEmptyRoom)
	}
	if c.conn == nil {
		return nil, NewError("join", ErrNotConnected)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultJoinTimeout)
		defer cancel()
	}

	id := c.nextAck.Add(1)
	reply := make(chan signaling.RoomSnapshot, 1)
	c.mu.Lock()
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	name, _ := json.Marshal(room)
	if err := c.write(ctx, &signaling.Message{Type: signaling.MessageTypeJoin, Payload: name, Ack: &id}); err != nil {
		return nil, NewError("join", err)
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-c.readDone:
		return nil, NewError("join", ErrServerClosed)
	case <-ctx.Done():
		return nil, WrapError("join", ErrTimeout, room)
	}
}

// Identify learns this connection's id. The server never states it
// directly, so it joins a fresh single-member room, reads the id from the
// snapshot and leaves again. The departure produces an EventRemove naming
// this connection.
func (c *Client) Identify(ctx context.Context) (signaling.ConnectionID, error) {
	snap, err := c.Join(ctx, "identify-"+uuid.NewString())
	if err != nil {
		return "", err
	}
	if len(snap) != 1 {
		return "", NewError("identify", fmt.Errorf("probe room has %d members", len(snap)))
	}
	var self signaling.ConnectionID
	for id := range snap {
		self = id
	}
	if err := c.Leave(ctx); err != nil {
		return "", err
	}
	return self, nil
}

// Leave exits the current room. The server ignores it when not in one.
func (c *Client) Leave(ctx context.Context) error {
	if err := c.write(ctx, &signaling.Message{Type: signaling.MessageTypeLeave}); err != nil {
		return NewError("leave", err)
	}
	return nil
}

// Send relays fields to connection to. Each value is marshaled as JSON.
func (c *Client) Send(ctx context.Context, to signaling.ConnectionID, fields map[string]any) error {
	env := &signaling.Envelope{To: to}
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return NewError("send", fmt.Errorf("marshal %s: %w", k, err))
		}
		env.SetField(k, b)
	}
	return c.sendEnvelope(ctx, env)
}

// SendRaw relays a JSON object to connection to, setting its "to" field.
func (c *Client) SendRaw(ctx context.Context, to signaling.ConnectionID, raw json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return WrapError("send", fmt.Errorf("payload must be a JSON object"), string(raw))
	}
	env := &signaling.Envelope{To: to}
	for k, v := range fields {
		env.SetField(k, v)
	}
	return c.sendEnvelope(ctx, env)
}

func (c *Client) sendEnvelope(ctx context.Context, env *signaling.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return NewError("send", err)
	}
	if err := c.write(ctx, &signaling.Message{Type: signaling.MessageTypeMessage, Payload: payload}); err != nil {
		return NewError("send", err)
	}
	return nil
}

// Events returns the channel of remove and message pushes. It is closed
// when the connection ends.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn == nil {
			close(c.events)
		}
	})
}

func (c *Client) write(ctx context.Context, msg *signaling.Message) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-c.readDone:
		return ErrServerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.readDone)
		close(c.events)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case signaling.MessageTypeSTUNServers:
			c.handleSTUNServers(&msg)

		case signaling.MessageTypeAck:
			c.handleAck(&msg)

		case signaling.MessageTypeRemove:
			var p signaling.RemovePayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				slog.Debug("bad remove payload", "error", err)
				continue
			}
			if !c.emit(Event{Type: EventRemove, Removed: p.ID}) {
				return
			}

		case signaling.MessageTypeMessage:
			env, err := signaling.ParseEnvelope(msg.Payload)
			if err != nil {
				slog.Debug("bad message payload", "error", err)
				continue
			}
			if !c.emit(Event{Type: EventMessage, Envelope: env}) {
				return
			}

		default:
			slog.Debug("unknown message type", "type", msg.Type)
		}
	}
}

func (c *Client) handleSTUNServers(msg *signaling.Message) {
	var servers []signaling.STUNServer
	if err := json.Unmarshal(msg.Payload, &servers); err != nil {
		slog.Debug("bad stunservers payload", "error", err)
		return
	}
	c.stunOnce.Do(func() {
		c.stun = servers
		close(c.stunReady)
	})
}

func (c *Client) handleAck(msg *signaling.Message) {
	if msg.Ack == nil {
		return
	}
	var ack signaling.JoinAck
	if err := json.Unmarshal(msg.Payload, &ack); err != nil {
		slog.Debug("bad ack payload", "error", err)
		return
	}

	c.mu.Lock()
	reply, ok := c.pending[*msg.Ack]
	c.mu.Unlock()
	if ok {
		select {
		case reply <- ack.Clients:
		default:
		}
	}
}

func (c *Client) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.readDone:
			return

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.drain()
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes frames queued before Close so a send followed by Close is
// not lost.
func (c *Client) drain() {
	for {
		select {
		case message := <-c.outgoing:
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		default:
			return
		}
	}
}
