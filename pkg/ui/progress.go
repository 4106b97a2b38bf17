package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"imgharvest/pkg/harvest"
)

// Observer receives pipeline events as they happen
type Observer interface {
	OnState(t harvest.Transition)
	OnOutcome(o harvest.Outcome)
}

// Hooks returns the pipeline options that feed o
func Hooks(o Observer) []harvest.Option {
	return []harvest.Option{
		harvest.WithStateHook(o.OnState),
		harvest.WithOutcomeHook(o.OnOutcome),
	}
}

// Progress renders a single self-overwriting progress line
type Progress struct {
	mu        sync.Mutex
	w         io.Writer
	state     harvest.State
	total     int
	done      int
	failed    int
	bytes     int64
	startTime time.Time
}

// NewProgress creates a progress line writing to w
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w, startTime: time.Now()}
}

// OnState records the pipeline state
func (p *Progress) OnState(t harvest.Transition) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = t.State
	if t.Total > 0 {
		p.total = t.Total
	}
	if t.State == harvest.StateCompleted {
		fmt.Fprintln(p.w)
		return
	}
	p.print()
}

// OnOutcome counts a finished record
func (p *Progress) OnOutcome(o harvest.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.bytes += o.Bytes
	if o.Status == harvest.StatusFailure {
		p.failed++
	}
	p.print()
}

// print writes the progress line; callers hold p.mu
func (p *Progress) print() {
	const barWidth = 20

	filled := 0
	if p.total > 0 {
		filled = p.done * barWidth / p.total
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %s • %s",
		Cyan(p.state.String()),
		bar,
		p.done,
		p.total,
		FormatBytes(p.bytes),
		FormatDuration(time.Since(p.startTime)),
	)
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}

	fmt.Fprintf(p.w, "\r%s\r%s", strings.Repeat(" ", 100), line)
}
