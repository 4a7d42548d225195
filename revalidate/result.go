package revalidate

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Outcome tags a Result
type Outcome int

const (
	// Fresh means the server sent a new payload, now stored in the cache
	Fresh Outcome = iota + 1
	// NotModified means the cached payload is still valid
	NotModified
	// Failed means no usable response; Result.Err says why
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case NotModified:
		return "not_modified"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotModifiedWithoutCache is returned when the server answers 304
	// but there is no cached payload to fall back to
	ErrNotModifiedWithoutCache = errors.New("304 not modified but no cached payload")

	// ErrEmptyBody is returned for a 2xx response without a body
	ErrEmptyBody = errors.New("empty response body")

	// ErrInvalidBody is returned for a 2xx response whose body is not JSON
	ErrInvalidBody = errors.New("response body is not valid JSON")
)

// ServerError is a failure reported by the API, either through a non-2xx
// status or a {"success": false} envelope
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Result is what Fetch returns. Data is set only for Fresh, Err only for
// Failed.
type Result struct {
	Outcome    Outcome
	Data       json.RawMessage
	ETag       string
	StatusCode int
	Err        error
}

func fresh(status int, data json.RawMessage, etag string) Result {
	return Result{Outcome: Fresh, Data: data, ETag: etag, StatusCode: status}
}

func notModified(etag string) Result {
	return Result{Outcome: NotModified, ETag: etag, StatusCode: 304}
}

func failed(status int, err error) Result {
	return Result{Outcome: Failed, StatusCode: status, Err: err}
}
