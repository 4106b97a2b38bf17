package ui

import (
	"fmt"
	"io"
	"time"

	"imgharvest/pkg/harvest"
)

// maxListedFailures caps the failure list in PrintReport
const maxListedFailures = 20

// PrintReport writes a human-readable summary of a run
func PrintReport(w io.Writer, r *harvest.Report) {
	if r == nil {
		return
	}

	fmt.Fprintf(w, "%s %s\n", Cyan("Run:"), r.RunID)
	if r.BaseURL != "" {
		fmt.Fprintf(w, "%s %s\n", Cyan("Listing:"), r.BaseURL)
	}
	if r.Err != nil {
		fmt.Fprintf(w, "%s %v\n", Red("Run failed:"), r.Err)
		return
	}

	var total int64
	for _, o := range r.Outcomes {
		total += o.Bytes
	}

	fmt.Fprintf(w, "%s %d records, %s saved, %s failed, %s in %s\n",
		Cyan("Result:"),
		len(r.Records),
		Green(fmt.Sprintf("%d", r.Succeeded())),
		failedCount(r.Failed()),
		FormatBytes(total),
		FormatDuration(r.Elapsed()),
	)

	listed := 0
	for _, o := range r.Outcomes {
		if o.Status != harvest.StatusFailure {
			continue
		}
		if listed == maxListedFailures {
			fmt.Fprintf(w, "  %s\n", Dim(fmt.Sprintf("... and %d more", r.Failed()-listed)))
			break
		}
		title := o.Record.Title
		if title == "" {
			title = o.Record.SourceURL
		}
		fmt.Fprintf(w, "  %s #%d %s: %s\n", Red("✗"), o.Index, title, o.Reason())
		listed++
	}
}

func failedCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if n > 0 {
		return Red(s)
	}
	return Dim(s)
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
