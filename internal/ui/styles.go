package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary    = lipgloss.Color("#22d3ee") // Cyan accent
	Secondary  = lipgloss.Color("#7C3AED") // Violet
	Success    = lipgloss.Color("#10B981") // Emerald
	Warning    = lipgloss.Color("#F59E0B") // Amber
	Error      = lipgloss.Color("#EF4444") // Red
	Muted      = lipgloss.Color("#6B7280") // Gray
	Foreground = lipgloss.Color("#F9FAFB") // Light gray
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Background(Primary).
			Padding(0, 1).
			Bold(true)

	ChatSenderStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	ChatSelfStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	EventStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)
)

// Box styles
var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	SuccessBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(Success).
			Padding(1, 2)
)

// Spinner style
var SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

// Emoji helpers for consistent iconography
const (
	IconSuccess   = "✅"
	IconError     = "❌"
	IconWarning   = "⚠️"
	IconInfo      = "ℹ️"
	IconRoom      = "🚪"
	IconPeer      = "👤"
	IconMic       = "🎤"
	IconMicOff    = "🔇"
	IconCamera    = "📷"
	IconScreen    = "🖥️"
	IconRecording = "⏺️"
	IconChat      = "💬"
	IconWaiting   = "⏳"
	IconLeave     = "👋"
)

func PrintError(msg string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintErrorf(format string, args ...any) {
	PrintError(fmt.Sprintf(format, args...))
}

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintSuccess(msg string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintSuccessf(format string, args ...any) {
	PrintSuccess(fmt.Sprintf(format, args...))
}

func PrintInfo(msg string) {
	fmt.Printf("%s %s\n", IconInfo, msg)
}

func FormatError(err error) string {
	return fmt.Sprintf("%s %s", ErrorStyle.Render(IconError), ErrorStyle.Render(err.Error()))
}

// RoomBanner is printed once a room is joined, so the ID can be shared.
func RoomBanner(roomID, serverURL string) string {
	content := fmt.Sprintf("%s Joined room!\n\n%s Room ID:  %s\n%s Server:   %s",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(roomID),
		IconInfo, MutedStyle.Render(serverURL),
	)
	return SuccessBoxStyle.Render(content)
}
