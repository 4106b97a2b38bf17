package harvest

import (
	"context"
	"fmt"
	"time"

	"imgharvest/pkg/retry"
)

// PendingError reports records still failing after a retry pass
type PendingError struct {
	Remaining int
	Last      error
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("%d record(s) still failing: %v", e.Remaining, e.Last)
}

func (e *PendingError) Unwrap() error {
	return e.Last
}

// RetryFailed re-runs the retryable failures of report through RunRecords
// until they succeed or rc gives up. Fresh outcomes replace the old ones in
// place, so the returned report keeps one outcome per record.
func (p *Pipeline) RetryFailed(ctx context.Context, report *Report, rc *retry.Config) (*Report, error) {
	if rc == nil {
		rc = retry.DefaultConfig()
	}
	retryIf := rc.RetryIf
	if retryIf == nil {
		retryIf = retry.DefaultRetryIf
	}

	merged := *report
	merged.Outcomes = append([]Outcome(nil), report.Outcomes...)

	pending := retryable(merged.Outcomes, retryIf)
	if len(pending) == 0 {
		return &merged, nil
	}

	cfg := *rc
	cfg.RetryIf = retryIf

	err := retry.Do(ctx, func() error {
		records := make([]ImageRecord, len(pending))
		for j, idx := range pending {
			records[j] = merged.Records[idx]
		}

		sub, _ := p.RunRecords(ctx, records)
		for j, o := range sub.Outcomes {
			o.Index = pending[j]
			merged.Outcomes[pending[j]] = o
		}

		pending = retryable(merged.Outcomes, retryIf)
		if len(pending) == 0 {
			return nil
		}
		return &PendingError{Remaining: len(pending), Last: merged.Outcomes[pending[0]].Err}
	}, &cfg)

	merged.FinishedAt = time.Now()
	return &merged, err
}

func retryable(outcomes []Outcome, retryIf func(error) bool) []int {
	var idx []int
	for i, o := range outcomes {
		if o.Status == StatusFailure && retryIf(o.Err) {
			idx = append(idx, i)
		}
	}
	return idx
}
