package logger

import (
	"time"
)

// LogRequest logs HTTP request information
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("HTTP request client error", fields)
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	default:
		l.DebugWithFields("HTTP request returned", fields)
	}
}

// LogDownload logs the outcome of one image download
func LogDownload(l Logger, index int, url, path string, err error) {
	fields := map[string]interface{}{
		"index": index,
		"url":   url,
	}

	if err != nil {
		l.WithFields(fields).WithError(err).Warn("Download failed")
		return
	}
	fields["path"] = path
	l.InfoWithFields("Download completed", fields)
}

// LogRunSummary logs the totals of a finished pipeline run
func LogRunSummary(l Logger, runID string, records, succeeded, failed int, elapsed time.Duration) {
	l.InfoWithFields("Harvest run completed", map[string]interface{}{
		"run_id":    runID,
		"records":   records,
		"succeeded": succeeded,
		"failed":    failed,
		"elapsed":   elapsed,
	})
}

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
