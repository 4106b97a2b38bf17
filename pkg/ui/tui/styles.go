package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette keyed by what a color means in the harvest view. Each entry has a
// light and a dark variant so the view stays readable on both backgrounds.
var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#005F87", Dark: "#5FD7FF"}
	colorFrame   = lipgloss.AdaptiveColor{Light: "#5F5FAF", Dark: "#8787D7"}
	colorSaved   = lipgloss.AdaptiveColor{Light: "#00875F", Dark: "#5FD787"}
	colorActive  = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD75F"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "#AF5F00", Dark: "#FFAF5F"}
	colorFailed  = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#9E9E9E"}
	colorFaint   = lipgloss.AdaptiveColor{Light: "#A8A8A8", Dark: "#626262"}
	colorSurface = lipgloss.AdaptiveColor{Light: "#EEEEEE", Dark: "#1C1C1C"}

	baseStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorFrame).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(colorFrame).
			Foreground(colorSurface).
			Bold(true).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	statsLabelStyle = lipgloss.NewStyle().Foreground(colorAccent)
	statsValueStyle = lipgloss.NewStyle().Foreground(colorActive).Bold(true)

	successStyle = lipgloss.NewStyle().Foreground(colorSaved).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorFailed).Bold(true)

	// Rows of the DOWNLOADING and FAILURES panels
	itemActiveStyle = lipgloss.NewStyle().Foreground(colorActive).PaddingLeft(2)
	itemFailedStyle = lipgloss.NewStyle().Foreground(colorFailed).Faint(true).PaddingLeft(2)

	logTimestampStyle = lipgloss.NewStyle().Foreground(colorFaint)
	logMessageStyle   = lipgloss.NewStyle().Foreground(colorMuted)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorFaint).
			Padding(1, 0, 0, 2)
)

// levelColor maps a log level of the LOG panel to its color
func levelColor(level string) lipgloss.TerminalColor {
	switch level {
	case "ERROR":
		return colorFailed
	case "WARN":
		return colorWarn
	case "SUCCESS":
		return colorSaved
	case "INFO":
		return colorAccent
	default:
		return colorMuted
	}
}
