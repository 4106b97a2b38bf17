package tui

import (
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"imgharvest/pkg/harvest"
)

// ItemState represents the state of one record's download
type ItemState int

const (
	ItemPending ItemState = iota
	ItemActive
	ItemCompleted
	ItemFailed
)

// Item is one record of the batch
type Item struct {
	Index     int
	Title     string
	URL       string
	Path      string
	Bytes     int64
	Duration  time.Duration
	State     ItemState
	StartTime time.Time
	Reason    string
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.TerminalColor
}

// Model is the bubbletea model of a harvest run
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	runID     string
	state     harvest.State
	total     int
	items     map[int]*Item
	succeeded int
	failed    int
	bytes     int64
	workers   int
	startTime time.Time
	finished  bool

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	// cancel stops the run when the user quits
	cancel func()

	mu sync.RWMutex
}

// NewModel creates a model. cancel may be nil.
func NewModel(workers int, cancel func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	p := progress.New(progress.WithGradient(colorAccent.Dark, colorSaved.Dark))
	p.Width = 40

	return &Model{
		spinner:        s,
		progress:       p,
		items:          make(map[int]*Item),
		workers:        workers,
		startTime:      time.Now(),
		maxLogMessages: 50,
		cancel:         cancel,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// ApplyTransition records a pipeline state change
func (m *Model) ApplyTransition(t harvest.Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runID = t.RunID
	m.state = t.State
	if t.Total > m.total {
		m.total = t.Total
	}

	if t.State == harvest.StateDownloading && t.Index >= 0 {
		item := m.item(t.Index)
		if item.State == ItemPending {
			item.State = ItemActive
			item.StartTime = time.Now()
		}
	}
}

// ApplyOutcome records a finished record
func (m *Model) ApplyOutcome(o harvest.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.item(o.Index)
	item.Title = o.Record.Title
	item.URL = o.Record.SourceURL
	item.Path = o.Path
	item.Bytes = o.Bytes
	item.Duration = o.Duration

	if o.Status == harvest.StatusSuccess {
		item.State = ItemCompleted
		m.succeeded++
		m.bytes += o.Bytes
	} else {
		item.State = ItemFailed
		item.Reason = o.Reason()
		m.failed++
	}
}

// item returns the entry for index, creating it; callers hold m.mu
func (m *Model) item(index int) *Item {
	if it, ok := m.items[index]; ok {
		return it
	}
	it := &Item{Index: index}
	m.items[index] = it
	return it
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// itemsIn returns items in the given state ordered by index
func (m *Model) itemsIn(state ItemState) []*Item {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Item
	for _, it := range m.items {
		if it.State == state {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ActiveItems returns records currently downloading
func (m *Model) ActiveItems() []*Item {
	return m.itemsIn(ItemActive)
}

// FailedItems returns failed records
func (m *Model) FailedItems() []*Item {
	return m.itemsIn(ItemFailed)
}

// Fraction returns the share of records with an outcome
func (m *Model) Fraction() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.total == 0 {
		return 0
	}
	return float64(m.succeeded+m.failed) / float64(m.total)
}

// Stats returns counts and an ETA based on the mean time per record
func (m *Model) Stats() (succeeded, failed, pending int, eta time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	done := m.succeeded + m.failed
	pending = m.total - done
	if pending < 0 {
		pending = 0
	}
	if done > 0 && pending > 0 && !m.finished {
		perItem := time.Since(m.startTime) / time.Duration(done)
		eta = perItem * time.Duration(pending)
	}
	return m.succeeded, m.failed, pending, eta
}
