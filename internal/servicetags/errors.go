package servicetags

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the pipeline. Call sites wrap one of these together with the cause so
// callers can branch with errors.Is.
var (
	// ErrNetwork reports a connection failure or a non-success HTTP status.
	ErrNetwork = errors.New("network error")
	// ErrNotFound reports an expected marker or pattern missing from page content.
	ErrNotFound = errors.New("not found")
	// ErrParse reports a malformed dataset.
	ErrParse = errors.New("parse error")
	// ErrIO reports a file system write or verification failure.
	ErrIO = errors.New("io error")
	// ErrTemplate reports a missing or unreadable page template.
	ErrTemplate = errors.New("template error")
)

// StatusError is attached to ErrNetwork failures caused by a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Kind returns the error kind wrapped by err, or nil if err carries none.
func Kind(err error) error {
	for _, kind := range []error{ErrNetwork, ErrNotFound, ErrParse, ErrIO, ErrTemplate} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
