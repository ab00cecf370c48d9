package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	Primary    = lipgloss.Color("#22d3ee")
	Success    = lipgloss.Color("#10B981")
	Warning    = lipgloss.Color("#F59E0B")
	Error      = lipgloss.Color("#EF4444")
	Muted      = lipgloss.Color("#6B7280")
	Foreground = lipgloss.Color("#F9FAFB")
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	// StatusStyle highlights the room name in the live view header.
	StatusStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Background(Primary).
			Padding(0, 1).
			Bold(true)
)

// Table cells alternate brightness under a bold header.
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary).
				Align(lipgloss.Center)

	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	TableRowStyle    = tableCellStyle.Foreground(lipgloss.Color("255"))
	TableRowAltStyle = tableCellStyle.Foreground(lipgloss.Color("245"))
)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconConnect = "🔌"
	IconMessage = "✉️"
	IconLeave   = "👋"
)

// statusLine renders one icon-prefixed line. Only the icon is styled unless
// the whole line should stand out.
func statusLine(icon string, style lipgloss.Style, msg string, styleText bool) string {
	if styleText {
		msg = style.Render(msg)
	}
	return fmt.Sprintf("%s %s", style.Render(icon), msg)
}

func PrintError(msg string) {
	fmt.Println(statusLine(IconError, ErrorStyle, msg, true))
}

func PrintWarning(msg string) {
	fmt.Println(statusLine(IconWarning, WarningStyle, msg, true))
}

func PrintWarningf(format string, args ...any) {
	PrintWarning(fmt.Sprintf(format, args...))
}

func PrintSuccessf(format string, args ...any) {
	fmt.Println(statusLine(IconSuccess, SuccessStyle, fmt.Sprintf(format, args...), false))
}

func PrintInfo(msg string) {
	fmt.Println(statusLine(IconInfo, lipgloss.NewStyle(), msg, false))
}

func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}
