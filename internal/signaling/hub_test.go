package signaling

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/Joe8Bit/webrtc-workshop/internal/metrics"
)

var testSTUN = []string{"stun:stun.l.google.com:19302", "stun:stun1.example.net:3478"}

func startHub(t *testing.T) (*Hub, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	h := NewHub(HubOptions{STUNServers: testSTUN, Metrics: m})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h, m
}

func connect(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := &Client{Hub: h, Send: make(chan *Message, 32)}
	h.Register <- c

	msg := recv(t, c)
	if msg.Type != MessageTypeSTUNServers {
		t.Fatalf("first message=%q, want %q", msg.Type, MessageTypeSTUNServers)
	}
	return c
}

func emit(h *Hub, c *Client, typ string, payload string, ack *uint64) {
	msg := &Message{Type: typ, Ack: ack, client: c}
	if payload != "" {
		msg.Payload = json.RawMessage(payload)
	}
	h.Inbound <- msg
}

// barrier returns once the hub has finished every previously sent event.
func barrier(h *Hub) {
	h.Inbound <- &Message{Type: "barrier", client: &Client{}}
}

func recv(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		if !ok {
			t.Fatalf("send channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return nil
}

func expectQuiet(t *testing.T, h *Hub, clients ...*Client) {
	t.Helper()
	barrier(h)
	for _, c := range clients {
		select {
		case msg := <-c.Send:
			t.Fatalf("%s got unexpected %q %s", c.ID, msg.Type, msg.Payload)
		default:
		}
	}
}

func expectRemove(t *testing.T, c *Client, id ConnectionID) {
	t.Helper()
	msg := recv(t, c)
	if msg.Type != MessageTypeRemove {
		t.Fatalf("%s got %q, want %q", c.ID, msg.Type, MessageTypeRemove)
	}
	var p RemovePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("unmarshal remove: %v", err)
	}
	if p.ID != id {
		t.Fatalf("remove id=%q, want %q", p.ID, id)
	}
}

func join(t *testing.T, h *Hub, c *Client, room string) RoomSnapshot {
	t.Helper()
	name, _ := json.Marshal(room)
	emit(h, c, MessageTypeJoin, string(name), nil)

	msg := recv(t, c)
	if msg.Type != MessageTypeAck {
		t.Fatalf("got %q, want %q", msg.Type, MessageTypeAck)
	}
	var ack JoinAck
	if err := json.Unmarshal(msg.Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	return ack.Clients
}

func members(h *Hub, room string) []ConnectionID {
	ids := h.rooms.Members(room)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestHub_PushesSTUNServersOnConnect(t *testing.T) {
	h, m := startHub(t)
	c := &Client{Hub: h, Send: make(chan *Message, 4)}
	h.Register <- c

	msg := recv(t, c)
	if msg.Type != MessageTypeSTUNServers {
		t.Fatalf("type=%q", msg.Type)
	}
	var servers []STUNServer
	if err := json.Unmarshal(msg.Payload, &servers); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(servers) != len(testSTUN) {
		t.Fatalf("servers=%v", servers)
	}
	for i, s := range servers {
		if s.URL != testSTUN[i] {
			t.Fatalf("servers[%d]=%q, want %q", i, s.URL, testSTUN[i])
		}
	}
	if c.ID == "" {
		t.Fatalf("client id not assigned")
	}

	barrier(h)
	if h.Connections() != 1 || m.Get(metrics.ConnectionsOpened) != 1 {
		t.Fatalf("connections=%d opened=%d", h.Connections(), m.Get(metrics.ConnectionsOpened))
	}
}

func TestHub_JoinAcknowledgesOnlyJoiner(t *testing.T) {
	h, _ := startHub(t)
	a := connect(t, h)
	b := connect(t, h)

	snap := join(t, h, a, "X")
	if len(snap) != 1 || snap[a.ID] != DefaultCapabilities {
		t.Fatalf("a snapshot=%v", snap)
	}

	snap = join(t, h, b, "X")
	if len(snap) != 2 {
		t.Fatalf("b snapshot=%v", snap)
	}
	if _, ok := snap[a.ID]; !ok {
		t.Fatalf("b snapshot missing a")
	}
	if _, ok := snap[b.ID]; !ok {
		t.Fatalf("b snapshot missing b")
	}

	expectQuiet(t, h, a, b)
}

func TestHub_JoinEchoesAckID(t *testing.T) {
	h, _ := startHub(t)
	a := connect(t, h)

	id := uint64(7)
	emit(h, a, MessageTypeJoin, `"X"`, &id)

	msg := recv(t, a)
	if msg.Ack == nil || *msg.Ack != id {
		t.Fatalf("ack=%v, want %d", msg.Ack, id)
	}
}

func TestHub_EmptyInputsAreNoops(t *testing.T) {
	h, m := startHub(t)
	a := connect(t, h)
	b := connect(t, h)
	join(t, h, b, "X")

	emit(h, a, MessageTypeJoin, `""`, nil)
	emit(h, a, MessageTypeJoin, ``, nil)
	emit(h, a, MessageTypeJoin, `null`, nil)
	emit(h, a, MessageTypeJoin, `{"room":"X"}`, nil)
	emit(h, a, MessageTypeMessage, ``, nil)
	emit(h, a, MessageTypeMessage, `null`, nil)
	emit(h, a, MessageTypeLeave, ``, nil)
	emit(h, a, "bogus", `{}`, nil)

	expectQuiet(t, h, a, b)
	if got := members(h, "X"); len(got) != 1 || got[0] != b.ID {
		t.Fatalf("X members=%v", got)
	}
	if m.Get(metrics.RoomJoins) != 1 {
		t.Fatalf("joins=%d, want 1", m.Get(metrics.RoomJoins))
	}
}

func TestHub_NonStringRoomNameIgnored(t *testing.T) {
	h, m := startHub(t)
	a := connect(t, h)

	for _, payload := range []string{`5`, `true`, `["X"]`} {
		emit(h, a, MessageTypeJoin, payload, nil)
	}

	expectQuiet(t, h, a)
	if h.rooms.Len() != 0 {
		t.Fatalf("rooms=%d, want 0", h.rooms.Len())
	}
	if m.Get(metrics.RoomJoins) != 0 {
		t.Fatalf("joins=%d, want 0", m.Get(metrics.RoomJoins))
	}
}

func TestHub_RelayStampsSenderRegardlessOfRooms(t *testing.T) {
	h, m := startHub(t)
	a := connect(t, h)
	b := connect(t, h)
	join(t, h, a, "X")

	emit(h, a, MessageTypeMessage, `{"to":"`+string(b.ID)+`","from":"`+string(b.ID)+`","type":"candidate","payload":{"candidate":"c"}}`, nil)

	msg := recv(t, b)
	if msg.Type != MessageTypeMessage {
		t.Fatalf("type=%q", msg.Type)
	}
	var got struct {
		From    ConnectionID    `json:"from"`
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.From != a.ID {
		t.Fatalf("from=%q, want %q", got.From, a.ID)
	}
	if got.Type != "candidate" || string(got.Payload) != `{"candidate":"c"}` {
		t.Fatalf("payload altered: %s", msg.Payload)
	}

	expectQuiet(t, h, a, b)
	if m.Get(metrics.MessagesRelayed) != 1 {
		t.Fatalf("relayed=%d", m.Get(metrics.MessagesRelayed))
	}
}

func TestHub_UnknownRecipientIsDropped(t *testing.T) {
	h, m := startHub(t)
	a := connect(t, h)
	b := connect(t, h)

	emit(h, a, MessageTypeMessage, `{"to":"does-not-exist","type":"offer"}`, nil)

	expectQuiet(t, h, a, b)
	if m.Get(metrics.MessagesDropped) != 1 {
		t.Fatalf("dropped=%d, want 1", m.Get(metrics.MessagesDropped))
	}
}

func TestHub_LeaveBroadcastsToWholeRoom(t *testing.T) {
	h, _ := startHub(t)
	a := connect(t, h)
	b := connect(t, h)
	c := connect(t, h)
	for _, cl := range []*Client{a, b, c} {
		join(t, h, cl, "X")
	}

	emit(h, a, MessageTypeLeave, ``, nil)

	for _, cl := range []*Client{a, b, c} {
		expectRemove(t, cl, a.ID)
	}
	expectQuiet(t, h, a, b, c)

	got := members(h, "X")
	want := []ConnectionID{b.ID, c.ID}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("X members=%v, want %v", got, want)
	}
}

func TestHub_DisconnectMatchesLeave(t *testing.T) {
	run := func(t *testing.T, leaveFirst bool) (*Hub, *Client, *Client, *Client) {
		h, _ := startHub(t)
		a := connect(t, h)
		b := connect(t, h)
		c := connect(t, h)
		for _, cl := range []*Client{a, b, c} {
			join(t, h, cl, "X")
		}

		if leaveFirst {
			emit(h, a, MessageTypeLeave, ``, nil)
			expectRemove(t, a, a.ID)
		}
		h.Unregister <- a
		barrier(h)
		return h, a, b, c
	}

	for _, leaveFirst := range []bool{false, true} {
		h, a, b, c := run(t, leaveFirst)

		expectRemove(t, b, a.ID)
		expectRemove(t, c, a.ID)
		expectQuiet(t, h, b, c)

		if got := members(h, "X"); len(got) != 2 {
			t.Fatalf("leaveFirst=%v: X members=%v", leaveFirst, got)
		}
		if _, ok := h.conns.Lookup(a.ID); ok {
			t.Fatalf("leaveFirst=%v: a still registered", leaveFirst)
		}
		if h.Connections() != 2 {
			t.Fatalf("leaveFirst=%v: connections=%d", leaveFirst, h.Connections())
		}
	}
}

func TestHub_DisconnectClosesSendAndIgnoresLateEvents(t *testing.T) {
	h, _ := startHub(t)
	a := connect(t, h)
	b := connect(t, h)
	join(t, h, b, "X")

	h.Unregister <- a
	barrier(h)

	// The only thing left in a's queue is the close.
	if _, ok := <-a.Send; ok {
		t.Fatalf("a.Send not closed")
	}

	// Late frames and a second unregister must not panic or reach anyone.
	emit(h, a, MessageTypeJoin, `"X"`, nil)
	emit(h, a, MessageTypeMessage, `{"to":"`+string(b.ID)+`"}`, nil)
	h.Unregister <- a
	expectQuiet(t, h, b)

	// Relaying to the departed id is the unknown-recipient case.
	emit(h, b, MessageTypeMessage, `{"to":"`+string(a.ID)+`"}`, nil)
	expectQuiet(t, h, b)
}

func TestHub_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	h, m := startHub(t)
	a := connect(t, h)
	slow := &Client{Hub: h, Send: make(chan *Message, 1)}
	h.Register <- slow // stunservers fills the queue

	barrier(h)
	emit(h, a, MessageTypeMessage, `{"to":"`+string(slow.ID)+`"}`, nil)
	barrier(h)

	if m.Get(metrics.OutboundDropped) != 1 {
		t.Fatalf("outbound dropped=%d, want 1", m.Get(metrics.OutboundDropped))
	}
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	h := NewHub(HubOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return")
	}
}
