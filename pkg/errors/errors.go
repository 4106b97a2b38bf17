package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Kind represents the category of a pipeline failure
type Kind string

const (
	KindNetwork  Kind = "network"
	KindParse    Kind = "parse"
	KindStorage  Kind = "storage"
	KindFetch    Kind = "fetch"
	KindCanceled Kind = "canceled"
	KindUnknown  Kind = "unknown"
)

// Error is a typed error carrying the failing operation and, where relevant,
// the URL and HTTP status code involved.
type Error struct {
	Kind Kind
	Op   string
	URL  string
	Code int
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Kind)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Code)
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s for %s", msg, e.URL)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Network builds a NetworkError for a failed request
func Network(op, url string, code int, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, URL: url, Code: code, Err: err}
}

// Parse builds a ParseError for markup that could not be processed
func Parse(op string, err error) *Error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

// Storage builds a StorageError for a filesystem failure
func Storage(op, path string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, URL: path, Err: err}
}

// Fetch wraps a listing-stage failure into the run-level FetchError.
func Fetch(url string, err error) *Error {
	return &Error{Kind: KindFetch, Op: "fetch listing", URL: url, Err: err}
}

// Canceled marks a record that was never attempted because the run stopped
func Canceled(err error) *Error {
	if err == nil {
		err = context.Canceled
	}
	return &Error{Kind: KindCanceled, Op: "download", Err: err}
}

// KindOf returns the kind of the outermost typed error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

// Is reports whether any typed error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// IsRetryable checks if a failure of this kind is worth attempting again
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindFetch:
		return true
	case KindParse, KindStorage, KindCanceled:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 408, 429:
		return true
	case 401, 403, 404, 410:
		return false
	default:
		return statusCode >= 500
	}
}
