// Package retry provides backoff and retry logic for caller-level policies.
//
// A pipeline run never retries on its own. The CLI uses this package to
// re-run the failed records of a finished report:
//
//	cfg := retry.FromConfig(appCfg.Retry, log)
//	err := retry.Do(ctx, func() error {
//		return rerunFailed()
//	}, cfg)
//
// DefaultRetryIf retries network failures with status 0, 408, 429 or 5xx
// and gives up immediately on 4xx, parse, storage and cancellation errors.
package retry
