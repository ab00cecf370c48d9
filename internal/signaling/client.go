package signaling

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Joe8Bit/webrtc-workshop/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// DefaultMaxMessageSize is enough for SDP offers with many candidates.
	DefaultMaxMessageSize = 64 * 1024

	// DefaultSendQueueSize bounds each client's outbound queue.
	DefaultSendQueueSize = 256
)

// Client is a wrapper for a single websocket connection (a peer).
type Client struct {
	// ID is assigned by the Hub on registration.
	ID ConnectionID

	// Hub is the hub that manages this client.
	Hub *Hub

	// Conn is the websocket connection.
	Conn *websocket.Conn

	// Send is a buffered channel for all outbound messages.
	// The Hub writes to it, WritePump drains it to the websocket.
	Send chan *Message

	maxMessageSize int64
	limiter        *rate.Limiter
	metrics        *metrics.Metrics
}

// ClientOptions tunes a Client's transport limits.
type ClientOptions struct {
	MaxMessageSize int64

	// SendQueueSize is the capacity of Send.
	SendQueueSize int

	// MaxMessagesPerSecond drops inbound frames over the rate. Zero disables.
	MaxMessagesPerSecond float64

	Metrics *metrics.Metrics
}

// NewClient wraps conn for hub.
func NewClient(hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = DefaultSendQueueSize
	}

	c := &Client{
		Hub:            hub,
		Conn:           conn,
		Send:           make(chan *Message, opts.SendQueueSize),
		maxMessageSize: opts.MaxMessageSize,
		metrics:        opts.Metrics,
	}
	if opts.MaxMessagesPerSecond > 0 {
		burst := int(opts.MaxMessagesPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxMessagesPerSecond), burst)
	}
	return c
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	// When this function exits (e.g., connection closes), unregister the client
	defer func() {
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				// gorilla has already sent close 1009; cleanup follows as a disconnect.
				slog.Warn("frame exceeds size limit, closing connection",
					"remote", c.remoteAddr(), "limit", c.maxMessageSize)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "remote", c.remoteAddr(), "error", err)
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.metrics.Inc(metrics.FramesRateLimited)
			continue
		}

		msg, ok := decodeMessage(data)
		if !ok {
			c.metrics.Inc(metrics.FramesInvalid)
			continue
		}
		msg.client = c

		select {
		case c.Hub.Inbound <- msg:
		case <-c.Hub.Done():
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(message); err != nil {
				slog.Debug("websocket write failed", "remote", c.remoteAddr(), "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.Hub.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

func (c *Client) remoteAddr() string {
	if c == nil || c.Conn == nil {
		return ""
	}
	return c.Conn.RemoteAddr().String()
}
