package harvest

import (
	"time"

	errs "imgharvest/pkg/errors"
)

// Status is the fate of one record
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the result of attempting one record. Path is set on success,
// Err on failure.
type Outcome struct {
	Index    int           `json:"index"`
	Record   ImageRecord   `json:"record"`
	Status   Status        `json:"status"`
	Path     string        `json:"path,omitempty"`
	Err      error         `json:"-"`
	Bytes    int64         `json:"bytes,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Reason returns the failure message, or "" for a success
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Kind returns the error kind of a failed outcome
func (o Outcome) Kind() errs.Kind {
	if o.Err == nil {
		return ""
	}
	return errs.KindOf(o.Err)
}

// Report is the ordered result of one pipeline run. Outcomes[i] always
// belongs to Records[i].
type Report struct {
	RunID      string        `json:"run_id"`
	BaseURL    string        `json:"base_url,omitempty"`
	Records    []ImageRecord `json:"records"`
	Outcomes   []Outcome     `json:"outcomes"`
	Err        error         `json:"-"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Succeeded returns the number of stored images
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// Failed returns the number of records that were not stored
func (r *Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// FailedRecords returns the records worth handing back to RunRecords
func (r *Report) FailedRecords() []ImageRecord {
	var failed []ImageRecord
	for _, o := range r.Outcomes {
		if o.Status == StatusFailure {
			failed = append(failed, o.Record)
		}
	}
	return failed
}

// Elapsed returns the wall time of the run
func (r *Report) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
