package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Joe8Bit/webrtc-workshop/internal/config"
	"github.com/Joe8Bit/webrtc-workshop/internal/metrics"
	"github.com/Joe8Bit/webrtc-workshop/internal/signaling"
)

// NewUpgrader configures the websocket upgrader. An empty allow-list accepts
// every origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  64 * 1024, // 64 KB
		WriteBufferSize: 64 * 1024, // 64 KB
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients do not send one.
				return true
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// It takes the hub as a dependency.
func ServeWs(hub *signaling.Hub, cfg *config.Config, m *metrics.Metrics) http.HandlerFunc {
	upgrader := NewUpgrader(cfg.AllowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		// Upgrade the HTTP connection to a WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := signaling.NewClient(hub, conn, signaling.ClientOptions{
			MaxMessageSize:       cfg.MaxMessageBytes,
			SendQueueSize:        cfg.SendQueueSize,
			MaxMessagesPerSecond: cfg.MaxMessagesPerSecond,
			Metrics:              m,
		})

		// Register the client with the hub
		select {
		case hub.Register <- client:
		case <-hub.Done():
			conn.Close()
			return
		}

		// Start the client's read and write pumps in separate goroutines
		// These methods will handle the client's lifecycle
		go client.WritePump()
		go client.ReadPump()
	}
}

// healthHandler reports liveness and current occupancy.
func healthHandler(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Signaling server is healthy. connections=%d rooms=%d\n", hub.Connections(), hub.Rooms())
	}
}

// NewMux registers the /ws, /health and /metrics routes.
func NewMux(hub *signaling.Hub, cfg *config.Config, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(hub))
	mux.Handle("/metrics", metrics.PrometheusHandler(m))
	mux.HandleFunc("/ws", ServeWs(hub, cfg, m))
	return mux
}
