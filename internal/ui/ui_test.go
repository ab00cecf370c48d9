package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Joe8Bit/webrtc-workshop/internal/signaling"
)

func TestRoomTableView(t *testing.T) {
	snap := signaling.RoomSnapshot{
		"b-peer": signaling.DefaultCapabilities,
		"a-peer": {Screen: true, Audio: true},
	}
	out := RoomTableView(snap, "b-peer")

	if !strings.Contains(out, "b-peer (you)") {
		t.Fatalf("self not marked:\n%s", out)
	}
	if strings.Index(out, "a-peer") > strings.Index(out, "b-peer") {
		t.Fatalf("rows not sorted:\n%s", out)
	}
	if got := RoomTableView(nil, ""); !strings.Contains(got, "Room is empty") {
		t.Fatalf("empty view=%q", got)
	}
}

func TestSTUNServersView(t *testing.T) {
	out := STUNServersView([]signaling.STUNServer{{URL: "stun:one:1"}, {URL: "stun:two:2"}})
	if strings.Index(out, "stun:one:1") > strings.Index(out, "stun:two:2") {
		t.Fatalf("order lost:\n%s", out)
	}
	if got := STUNServersView(nil); !strings.Contains(got, "No STUN servers") {
		t.Fatalf("empty view=%q", got)
	}
}

func TestRoomModel_Events(t *testing.T) {
	updates := make(chan RoomEvent)
	m := NewRoomModel("lobby", "me", signaling.RoomSnapshot{
		"me":    signaling.DefaultCapabilities,
		"other": signaling.DefaultCapabilities,
	}, updates)

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	_, cmd := m.Update(RoomEvent{Kind: RoomEventMessage, Peer: "newcomer", Detail: "offer", At: at})
	if cmd == nil {
		t.Fatalf("expected listen command after message")
	}
	if got := m.Members(); len(got) != 3 {
		t.Fatalf("members=%v", got)
	}
	if view := m.View(); !strings.Contains(view, "newcomer: offer") || !strings.Contains(view, "capabilities unknown") {
		t.Fatalf("view missing message:\n%s", view)
	}

	m.Update(RoomEvent{Kind: RoomEventRemoved, Peer: "other", At: at})
	if got := m.Members(); len(got) != 2 {
		t.Fatalf("members after remove=%v", got)
	}
	if view := m.View(); !strings.Contains(view, "other left") || !strings.Contains(view, "me (you)") {
		t.Fatalf("view after remove:\n%s", view)
	}

	m.Update(updatesClosedMsg{})
	if view := m.View(); !strings.Contains(view, "connection to server closed") {
		t.Fatalf("view after close:\n%s", view)
	}
}

func TestRoomModel_QuitAndLogBound(t *testing.T) {
	m := NewRoomModel("lobby", "me", nil, nil)
	for i := 0; i < maxLogLines+5; i++ {
		m.Update(RoomEvent{Kind: RoomEventMessage, Peer: "p"})
	}
	if len(m.log) != maxLogLines {
		t.Fatalf("log lines=%d, want %d", len(m.log), maxLogLines)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("q did not quit")
	}
	if m.View() != "" {
		t.Fatalf("view after quit=%q", m.View())
	}
}

func TestSpinner_StopIsIdempotent(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewSpinner("never started").Stop()

		s := NewSpinner("running").Start()
		s.Start()
		s.Stop()
		s.Stop()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop blocked")
	}
}

func TestStatusLine(t *testing.T) {
	if got := statusLine(IconInfo, MutedStyle, "hello", false); !strings.HasSuffix(got, " hello") {
		t.Fatalf("statusLine=%q", got)
	}
	if got := statusLine(IconError, ErrorStyle, "boom", true); !strings.Contains(got, "boom") {
		t.Fatalf("statusLine=%q", got)
	}
}
