package cli

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

type screen int

const (
	screenSetup screen = iota
	screenRemote
)

// Common styles
var (
	titleStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#1E66F5")).
		Padding(0, 1).
		Bold(true)

	inputStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#1E66F5")).
		Padding(0, 1).
		Width(40)

	inputFocusedStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#FF79C6")).
		Padding(0, 1).
		Width(40)

	remoteButtonStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Margin(0, 1).
		Background(lipgloss.Color("#44475A")).
		Foreground(lipgloss.Color("#F8F8F2"))

	remoteButtonActiveStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Margin(0, 1).
		Background(lipgloss.Color("#FF79C6")).
		Foreground(lipgloss.Color("#FAFAFA"))

	sectionStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#8BE9FD"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF5555")).
		Bold(true)

	successStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#50FA7B")).
		Bold(true)

	helpStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6272A4"))
)

// Remote button identifiers for the projector layout.
type remoteButton int

const (
	buttonNone remoteButton = iota
	buttonPower
	buttonUp
	buttonDown
	buttonLeft
	buttonRight
	buttonOK
	buttonMenu
	buttonBack
	buttonInfo
	buttonHide
	buttonAdvancedMenu
	buttonHDMI1
	buttonHDMI2
	buttonCinema
	buttonNatural
	buttonLensControl
	buttonLensMemory1
	buttonLensMemory2
	buttonLensMemory3
)

// logEntry is one line of the in-screen log pane.
type logEntry struct {
	Timestamp time.Time
	Level     string // INF or ERR
	Message   string
}

// renderTextWithCursor appends a cursor marker when the field has focus.
func renderTextWithCursor(text string, focused bool) string {
	if focused {
		return text + "│"
	}
	return text
}

// maskText hides a credential while showing its length.
func maskText(text string) string {
	masked := make([]rune, len([]rune(text)))
	for i := range masked {
		masked[i] = '*'
	}
	return string(masked)
}
