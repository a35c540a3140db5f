package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned for HTTP 401. The session is gone and the
// caller should send the user to the login route instead of showing an
// inline error.
var ErrUnauthorized = errors.New("session expired")

// TransportError wraps a failure to exchange a request with the backend at
// all: DNS, connection refused, context cancellation, or an open circuit.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Body holds the raw response text.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// SoftError is a 2xx response whose payload reports failure, either with
// ok:false or by omitting the ok marker altogether.
type SoftError struct {
	Op      string
	Message string
}

func (e *SoftError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsUnauthorized reports whether err means the session was lost.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
