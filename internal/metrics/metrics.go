package metrics

import "sync"

// Event counter names.
const (
	ConnectionsOpened = "connections_opened"
	ConnectionsClosed = "connections_closed"
	RoomJoins         = "room_joins"
	RoomLeaves        = "room_leaves"
	MessagesRelayed   = "messages_relayed"
	MessagesDropped   = "messages_dropped"
	FramesInvalid     = "frames_invalid"
	FramesRateLimited = "frames_rate_limited"
	OutboundDropped   = "outbound_dropped"
)

// Metrics is a minimal, concurrency-safe counter registry.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

// Inc increments name. A nil receiver is a no-op so callers can run without
// metrics.
func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
