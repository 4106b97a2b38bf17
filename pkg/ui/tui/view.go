package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"imgharvest/pkg/ui"
)

// View renders the entire TUI
func (m *Model) View() string {
	m.mu.RLock()
	width, height, showHelp := m.width, m.height, m.showHelp
	m.mu.RUnlock()

	if width == 0 || height == 0 {
		return "Initializing..."
	}

	sections := []string{m.renderHeader(width)}

	colWidth := (width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(colWidth),
		m.renderActivePanel(colWidth),
		m.renderFailedPanel(colWidth),
	)
	right := m.renderLogsPanel(colWidth, height)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))

	if showHelp {
		sections = append(sections, m.renderHelp(width))
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to quit"))
	}

	return baseStyle.Width(width).Height(height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderHeader(width int) string {
	m.mu.RLock()
	state, runID, finished := m.state, m.runID, m.finished
	m.mu.RUnlock()

	status := m.spinner.View() + " " + state.String()
	if finished {
		status = successStyle.Render("done")
	}

	bar := m.progress.ViewAs(m.Fraction())
	title := fmt.Sprintf("IMGHARVEST  %s  %s", status, mutedStyle.Render(runID))
	return headerStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Center, title, bar))
}

func (m *Model) renderStatsPanel(width int) string {
	succeeded, failed, pending, eta := m.Stats()

	m.mu.RLock()
	total, bytes, workers, start := m.total, m.bytes, m.workers, m.startTime
	m.mu.RUnlock()

	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
	}

	stats := []string{
		row("Elapsed:", formatDuration(time.Since(start))),
		row("Records:", fmt.Sprintf("%d", total)),
		row("Saved:", fmt.Sprintf("%d (%s)", succeeded, ui.FormatBytes(bytes))),
		row("Pending:", fmt.Sprintf("%d", pending)),
		row("Workers:", fmt.Sprintf("%d", workers)),
		row("ETA:", formatDuration(eta)),
	}
	if failed > 0 {
		stats = append(stats, errorStyle.Render(fmt.Sprintf("✗ %d failed", failed)))
	}

	return panel(width, " HARVEST STATS ", lipgloss.JoinVertical(lipgloss.Left, stats...))
}

func (m *Model) renderActivePanel(width int) string {
	active := m.ActiveItems()
	if len(active) == 0 {
		return panel(width, " DOWNLOADING ", mutedStyle.Render("Nothing in flight"))
	}

	var lines []string
	for _, it := range active {
		lines = append(lines, itemActiveStyle.Render(fmt.Sprintf("#%d %s", it.Index, formatDuration(time.Since(it.StartTime)))))
	}
	return panel(width, " DOWNLOADING ", lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderFailedPanel(width int) string {
	failed := m.FailedItems()
	if len(failed) == 0 {
		return panel(width, " FAILURES ", successStyle.Render("✓ none"))
	}

	lines := []string{warningStyle.Render(fmt.Sprintf("%d failed", len(failed)))}
	start := len(failed) - 5
	if start < 0 {
		start = 0
	}
	for _, it := range failed[start:] {
		lines = append(lines, itemFailedStyle.Render(truncate(fmt.Sprintf("✗ #%d %s", it.Index, it.Reason), width-6)))
	}
	return panel(width, " FAILURES ", lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderLogsPanel(width, height int) string {
	m.mu.RLock()
	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}
	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := logMessageStyle.Render(truncate(log.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}
	m.mu.RUnlock()

	content := strings.Join(logs, "\n")
	if content == "" {
		content = mutedStyle.Render("No logs yet...")
	}

	logsHeight := height - 16
	if logsHeight < 5 {
		logsHeight = 5
	}
	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(" LOG "), content),
	)
}

func (m *Model) renderHelp(width int) string {
	help := `
  Keys:
    q, ctrl+c  - Stop the run and exit
    ctrl+l     - Clear the log
    ?          - Toggle this help
`
	return panelStyle.Width(width).Render(help)
}

func panel(width int, title, content string) string {
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content),
	)
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
