package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"imgharvest/pkg/harvest"
)

// TUI runs the full-screen view of a harvest run
type TUI struct {
	program *tea.Program
	model   *Model
}

// New creates a TUI. cancel is called when the user quits early.
func New(workers int, cancel func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(workers, cancel)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}

	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the program until the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop quits the program
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// OnState forwards a transition
func (t *TUI) OnState(tr harvest.Transition) {
	t.Send(StateMsg(tr))
}

// OnOutcome forwards a finished record
func (t *TUI) OnOutcome(o harvest.Outcome) {
	t.Send(OutcomeMsg(o))
}

// Finish tells the view the run has returned
func (t *TUI) Finish(r *harvest.Report, err error) {
	t.Send(DoneMsg{Report: r, Err: err})
}

// Logf sends a log line
func (t *TUI) Logf(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}
