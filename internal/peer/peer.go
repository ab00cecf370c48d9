package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/Joe8Bit/webrtc-workshop/internal/signaling"
)

// Relay message types carried in the envelope's "type" field.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// DataChannelLabel is the label of the channel opened by the caller.
const DataChannelLabel = "signal"

var (
	ErrUnexpectedSignal = errors.New("unexpected signal type")
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrClosed           = errors.New("peer manager closed")
)

// Signaler relays a payload to another connection through the server.
type Signaler interface {
	Send(ctx context.Context, to signaling.ConnectionID, fields map[string]any) error
}

// EventKind describes what happened to a remote peer.
type EventKind string

const (
	EventOpen   EventKind = "open"
	EventHello  EventKind = "hello"
	EventClosed EventKind = "closed"
)

// Event reports peer progress to the caller.
type Event struct {
	Peer  signaling.ConnectionID
	Kind  EventKind
	Hello *HelloPayload
}

type remotePeer struct {
	id signaling.ConnectionID
	pc *pion.PeerConnection

	// pending holds remote candidates that arrived before the remote
	// description; outbound holds local ones gathered before our own
	// description was relayed.
	pending  []pion.ICECandidateInit
	outbound []pion.ICECandidateInit
	signaled bool
}

// Manager owns one peer connection per remote connection id and drives the
// offer/answer/candidate exchange over a Signaler.
type Manager struct {
	self       signaling.ConnectionID
	caps       signaling.Capabilities
	iceServers []pion.ICEServer
	signaler   Signaler
	api        *pion.API

	mu     sync.Mutex
	peers  map[signaling.ConnectionID]*remotePeer
	closed bool

	events chan Event
}

// Options configures a Manager.
type Options struct {
	Self         signaling.ConnectionID
	Capabilities signaling.Capabilities
	ICEServers   []pion.ICEServer
	Signaler     Signaler

	// API overrides the default pion API, mainly for tests.
	API *pion.API
}

func NewManager(opts Options) *Manager {
	api := opts.API
	if api == nil {
		api = pion.NewAPI()
	}
	return &Manager{
		self:       opts.Self,
		caps:       opts.Capabilities,
		iceServers: opts.ICEServers,
		signaler:   opts.Signaler,
		api:        api,
		peers:      make(map[signaling.ConnectionID]*remotePeer),
		events:     make(chan Event, 64),
	}
}

// Events returns peer lifecycle events. Slow readers lose events.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Call opens a data channel to remote and sends it an offer.
func (m *Manager) Call(ctx context.Context, remote signaling.ConnectionID) error {
	p, err := m.newPeer(ctx, remote)
	if err != nil {
		return err
	}

	ordered := true
	dc, err := p.pc.CreateDataChannel(DataChannelLabel, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		m.Remove(remote)
		return fmt.Errorf("create data channel: %w", err)
	}
	m.setupDataChannel(remote, dc)

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		m.Remove(remote)
		return fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		m.Remove(remote)
		return fmt.Errorf("set local description: %w", err)
	}

	return m.sendDescription(ctx, p, SignalOffer)
}

// HandleMessage applies a relayed envelope from another peer.
func (m *Manager) HandleMessage(ctx context.Context, env *signaling.Envelope) error {
	var typ string
	if raw, ok := env.Field("type"); ok {
		_ = json.Unmarshal(raw, &typ)
	}
	payload, _ := env.Field("payload")

	switch typ {
	case SignalOffer:
		return m.handleOffer(ctx, env.From, payload)
	case SignalAnswer:
		return m.handleAnswer(env.From, payload)
	case SignalCandidate:
		return m.handleCandidate(env.From, payload)
	default:
		return fmt.Errorf("%w: %q", ErrUnexpectedSignal, typ)
	}
}

func (m *Manager) handleOffer(ctx context.Context, from signaling.ConnectionID, raw json.RawMessage) error {
	var offer pion.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		return fmt.Errorf("parse offer: %w", err)
	}
	if offer.Type != pion.SDPTypeOffer {
		return fmt.Errorf("%w: %s in offer", ErrUnexpectedSignal, offer.Type)
	}

	// A fresh offer replaces any previous session with that peer.
	m.Remove(from)
	p, err := m.newPeer(ctx, from)
	if err != nil {
		return err
	}

	p.pc.OnDataChannel(func(dc *pion.DataChannel) {
		m.setupDataChannel(from, dc)
	})

	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	m.flushCandidates(p)

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	return m.sendDescription(ctx, p, SignalAnswer)
}

// sendDescription relays the local description, then any candidates that
// were gathered while it was being produced.
func (m *Manager) sendDescription(ctx context.Context, p *remotePeer, typ string) error {
	err := m.signaler.Send(ctx, p.id, map[string]any{
		"type":    typ,
		"payload": p.pc.LocalDescription(),
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	p.signaled = true
	queued := p.outbound
	p.outbound = nil
	m.mu.Unlock()

	for _, c := range queued {
		m.sendCandidate(ctx, p.id, c)
	}
	return nil
}

func (m *Manager) sendCandidate(ctx context.Context, to signaling.ConnectionID, c pion.ICECandidateInit) {
	err := m.signaler.Send(ctx, to, map[string]any{
		"type":    SignalCandidate,
		"payload": map[string]any{"candidate": c},
	})
	if err != nil {
		slog.Debug("failed to relay candidate", "to", to, "error", err)
	}
}

func (m *Manager) handleAnswer(from signaling.ConnectionID, raw json.RawMessage) error {
	p, ok := m.lookup(from)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, from)
	}

	var answer pion.SessionDescription
	if err := json.Unmarshal(raw, &answer); err != nil {
		return fmt.Errorf("parse answer: %w", err)
	}
	if answer.Type != pion.SDPTypeAnswer {
		return fmt.Errorf("%w: %s in answer", ErrUnexpectedSignal, answer.Type)
	}
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	m.flushCandidates(p)
	return nil
}

func (m *Manager) handleCandidate(from signaling.ConnectionID, raw json.RawMessage) error {
	var wrapper struct {
		Candidate pion.ICECandidateInit `json:"candidate"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return fmt.Errorf("parse candidate: %w", err)
	}

	m.mu.Lock()
	p, ok := m.peers[from]
	if ok && p.pc.RemoteDescription() == nil {
		// Trickled ahead of the description; applied once it lands.
		p.pending = append(p.pending, wrapper.Candidate)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, from)
	}
	if err := p.pc.AddICECandidate(wrapper.Candidate); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

// Remove closes the session with id, if there is one.
func (m *Manager) Remove(id signaling.ConnectionID) {
	m.mu.Lock()
	p, ok := m.peers[id]
	delete(m.peers, id)
	m.mu.Unlock()

	if ok {
		_ = p.pc.Close()
		m.emit(Event{Peer: id, Kind: EventClosed})
	}
}

// Peers returns the ids with a live session.
func (m *Manager) Peers() []signaling.ConnectionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]signaling.ConnectionID, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	return ids
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	peers := m.peers
	m.peers = make(map[signaling.ConnectionID]*remotePeer)
	m.mu.Unlock()

	for _, p := range peers {
		_ = p.pc.Close()
	}
}

func (m *Manager) newPeer(ctx context.Context, remote signaling.ConnectionID) (*remotePeer, error) {
	pc, err := m.api.NewPeerConnection(pion.Configuration{ICEServers: m.iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	p := &remotePeer{id: remote, pc: pc}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = pc.Close()
		return nil, ErrClosed
	}
	if old, ok := m.peers[remote]; ok {
		_ = old.pc.Close()
	}
	m.peers[remote] = p
	m.mu.Unlock()

	sendCtx := context.WithoutCancel(ctx)
	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		m.mu.Lock()
		if !p.signaled {
			p.outbound = append(p.outbound, c.ToJSON())
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		m.sendCandidate(sendCtx, remote, c.ToJSON())
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		slog.Debug("peer connection state", "peer", remote, "state", state.String())
		if state != pion.PeerConnectionStateFailed {
			return
		}
		m.mu.Lock()
		current := m.peers[remote] == p
		if current {
			delete(m.peers, remote)
		}
		m.mu.Unlock()
		if current {
			_ = pc.Close()
			m.emit(Event{Peer: remote, Kind: EventClosed})
		}
	})

	return p, nil
}

func (m *Manager) flushCandidates(p *remotePeer) {
	m.mu.Lock()
	pending := p.pending
	p.pending = nil
	m.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			slog.Debug("failed to add buffered candidate", "peer", p.id, "error", err)
		}
	}
}

func (m *Manager) setupDataChannel(remote signaling.ConnectionID, dc *pion.DataChannel) {
	dc.OnOpen(func() {
		m.emit(Event{Peer: remote, Kind: EventOpen})

		msg, err := NewMessage(MessageTypeHello, HelloPayload{
			ID:     string(m.self),
			Screen: m.caps.Screen,
			Video:  m.caps.Video,
			Audio:  m.caps.Audio,
		})
		if err != nil {
			slog.Error("failed to build hello", "error", err)
			return
		}
		b, err := msg.Encode()
		if err != nil {
			slog.Error("failed to encode hello", "error", err)
			return
		}
		if err := dc.Send(b); err != nil {
			slog.Debug("failed to send hello", "peer", remote, "error", err)
		}
	})

	dc.OnMessage(func(raw pion.DataChannelMessage) {
		msg, err := DecodeMessage(raw.Data)
		if err != nil {
			slog.Debug("bad data channel frame", "peer", remote, "error", err)
			return
		}
		if msg.Type != MessageTypeHello {
			return
		}
		var hello HelloPayload
		if err := msg.DecodePayload(&hello); err != nil {
			slog.Debug("bad hello payload", "peer", remote, "error", err)
			return
		}
		m.emit(Event{Peer: remote, Kind: EventHello, Hello: &hello})
	})
}

func (m *Manager) lookup(id signaling.ConnectionID) (*remotePeer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[id]
	return p, ok
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		slog.Debug("dropping peer event", "peer", ev.Peer, "kind", ev.Kind)
	}
}
