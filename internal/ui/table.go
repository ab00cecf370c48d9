package ui

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Joe8Bit/webrtc-workshop/internal/signaling"
)

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// RoomTableView renders a room snapshot sorted by connection id. The row
// for self is marked.
func RoomTableView(snapshot signaling.RoomSnapshot, self signaling.ConnectionID) string {
	if len(snapshot) == 0 {
		return MutedStyle.Render("Room is empty")
	}

	ids := make([]signaling.ConnectionID, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		caps := snapshot[id]
		name := string(id)
		if id == self {
			name += " (you)"
		}
		rows = append(rows, []string{name, yesNo(caps.Screen), yesNo(caps.Video), yesNo(caps.Audio)})
	}

	return newTable([]string{"Connection", "Screen", "Video", "Audio"}, rows).Render()
}

func RenderRoomTable(snapshot signaling.RoomSnapshot, self signaling.ConnectionID) {
	fmt.Println(RoomTableView(snapshot, self))
}

// STUNServersView lists the servers pushed on connect, in order.
func STUNServersView(servers []signaling.STUNServer) string {
	if len(servers) == 0 {
		return MutedStyle.Render("No STUN servers configured")
	}
	rows := make([][]string, 0, len(servers))
	for i, s := range servers {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), s.URL})
	}
	return newTable([]string{"#", "STUN server"}, rows).Render()
}

func RenderSTUNServers(servers []signaling.STUNServer) {
	fmt.Println(STUNServersView(servers))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
