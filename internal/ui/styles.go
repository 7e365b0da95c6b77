package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	primary = lipgloss.Color("#38bdf8") // sky
	success = lipgloss.Color("#10B981") // emerald
	warning = lipgloss.Color("#F59E0B") // amber
	errcol  = lipgloss.Color("#EF4444") // red
	muted   = lipgloss.Color("#6B7280") // gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary)

	successStyle = lipgloss.NewStyle().
			Foreground(success).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errcol).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warning)

	mutedStyle = lipgloss.NewStyle().
			Foreground(muted)

	codeBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 2)
)

func PrintTitle(s string) {
	fmt.Println(titleStyle.Render(s))
}

func PrintSuccess(s string) {
	fmt.Println(successStyle.Render("✓ " + s))
}

func PrintError(s string) {
	fmt.Println(errorStyle.Render("✗ " + s))
}

func PrintWarning(s string) {
	fmt.Println(warningStyle.Render("! " + s))
}

func PrintMuted(s string) {
	fmt.Println(mutedStyle.Render(s))
}

// PrintRoomCode renders the shareable room code in a box.
func PrintRoomCode(code string) {
	fmt.Println(codeBoxStyle.Render("Room code: " + titleStyle.Render(code)))
}
