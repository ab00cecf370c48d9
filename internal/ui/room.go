package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Joe8Bit/webrtc-workshop/internal/signaling"
)

const maxLogLines = 12

// RoomEventKind classifies what the live view is told about.
type RoomEventKind int

const (
	// RoomEventRemoved: Peer left the room or disconnected.
	RoomEventRemoved RoomEventKind = iota
	// RoomEventMessage: Peer relayed something to us; Detail summarizes it.
	RoomEventMessage
	// RoomEventClosed: the server connection ended.
	RoomEventClosed
)

// RoomEvent is fed to the live view by the caller.
type RoomEvent struct {
	Kind   RoomEventKind
	Peer   signaling.ConnectionID
	Detail string
	At     time.Time
}

type roomMember struct {
	caps  signaling.Capabilities
	known bool // false when learned from a message rather than the snapshot
}

type updatesClosedMsg struct{}

// RoomModel is the bubbletea model behind `join`.
type RoomModel struct {
	room    string
	self    signaling.ConnectionID
	members map[signaling.ConnectionID]roomMember
	log     []string
	spinner spinner.Model
	updates <-chan RoomEvent

	closed   bool
	quitting bool
}

// NewRoomModel seeds the view with the join snapshot.
func NewRoomModel(room string, self signaling.ConnectionID, snapshot signaling.RoomSnapshot, updates <-chan RoomEvent) *RoomModel {
	members := make(map[signaling.ConnectionID]roomMember, len(snapshot))
	for id, caps := range snapshot {
		members[id] = roomMember{caps: caps, known: true}
	}

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = SpinnerStyle

	return &RoomModel{
		room:    room,
		self:    self,
		members: members,
		spinner: s,
		updates: updates,
	}
}

func (m *RoomModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *RoomModel) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.updates
		if !ok {
			return updatesClosedMsg{}
		}
		return ev
	}
}

func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case RoomEvent:
		m.apply(msg)
		if m.closed {
			return m, tea.Quit
		}
		return m, m.listen()

	case updatesClosedMsg:
		m.apply(RoomEvent{Kind: RoomEventClosed, At: time.Now()})
		return m, tea.Quit
	}

	return m, nil
}

func (m *RoomModel) apply(ev RoomEvent) {
	stamp := ev.At
	if stamp.IsZero() {
		stamp = time.Now()
	}
	prefix := MutedStyle.Render(stamp.Format("15:04:05"))

	switch ev.Kind {
	case RoomEventRemoved:
		delete(m.members, ev.Peer)
		m.appendLog(fmt.Sprintf("%s %s %s left", prefix, IconLeave, ev.Peer))

	case RoomEventMessage:
		if _, ok := m.members[ev.Peer]; !ok {
			m.members[ev.Peer] = roomMember{}
		}
		line := fmt.Sprintf("%s %s %s", prefix, IconMessage, ev.Peer)
		if ev.Detail != "" {
			line += ": " + ev.Detail
		}
		m.appendLog(line)

	case RoomEventClosed:
		m.closed = true
		m.appendLog(fmt.Sprintf("%s %s", prefix, ErrorStyle.Render("connection to server closed")))
	}
}

func (m *RoomModel) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

// Members returns the ids currently shown, sorted.
func (m *RoomModel) Members() []signaling.ConnectionID {
	ids := make([]signaling.ConnectionID, 0, len(m.members))
	for id := range m.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *RoomModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("\n%s %s %s\n\n", IconRoom, BoldStyle.Render("Room"), StatusStyle.Render(m.room)))

	if !m.closed {
		b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), "Listening for peers"))
	}

	for _, id := range m.Members() {
		member := m.members[id]
		name := string(id)
		if id == m.self {
			name += " (you)"
		}
		caps := MutedStyle.Render("capabilities unknown")
		if member.known {
			caps = MutedStyle.Render(fmt.Sprintf("screen=%s video=%s audio=%s",
				yesNo(member.caps.Screen), yesNo(member.caps.Video), yesNo(member.caps.Audio)))
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n", IconPeer, name, caps))
	}

	if len(m.log) > 0 {
		b.WriteString("\n")
		for _, line := range m.log {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString("\n" + MutedStyle.Render("Press q to leave"))

	return b.String()
}

// RunRoomView blocks until the user quits or updates is closed.
func RunRoomView(model *RoomModel) error {
	// Inline mode keeps earlier output visible
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("room view: %w", err)
	}
	return nil
}
