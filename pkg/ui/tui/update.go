package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"imgharvest/pkg/harvest"
)

// StateMsg carries a pipeline transition
type StateMsg harvest.Transition

// OutcomeMsg carries a finished record
type OutcomeMsg harvest.Outcome

// DoneMsg is sent once the run has returned
type DoneMsg struct {
	Report *harvest.Report
	Err    error
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.mu.Unlock()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case StateMsg:
		t := harvest.Transition(msg)
		m.ApplyTransition(t)
		switch t.State {
		case harvest.StateFetchingListing:
			m.AddLogMessage("INFO", "Fetching listing")
		case harvest.StateExtracting:
			m.AddLogMessage("INFO", "Extracting records")
		}
		return m, nil

	case OutcomeMsg:
		o := harvest.Outcome(msg)
		m.ApplyOutcome(o)
		if o.Status == harvest.StatusSuccess {
			m.AddLogMessage("SUCCESS", fmt.Sprintf("#%d saved %s", o.Index, o.Path))
		} else {
			m.AddLogMessage("ERROR", fmt.Sprintf("#%d %s", o.Index, o.Reason()))
		}
		return m, nil

	case DoneMsg:
		m.mu.Lock()
		m.finished = true
		m.mu.Unlock()
		if msg.Err != nil {
			m.AddLogMessage("ERROR", "Run failed: "+msg.Err.Error())
		} else {
			m.AddLogMessage("SUCCESS", "Run completed, press q to exit")
		}
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case "?":
		m.mu.Lock()
		m.showHelp = !m.showHelp
		m.mu.Unlock()
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*250, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
