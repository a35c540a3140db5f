package api

import (
	"encoding/json"
	"fmt"
)

// Result is the tagged outcome of an endpoint that reports success in its
// payload: either Ok carrying the decoded data, or Fail carrying the
// backend's message.
type Result[T any] struct {
	ok      bool
	value   T
	message string
}

// Ok wraps a successful payload.
func Ok[T any](v T) Result[T] {
	return Result[T]{ok: true, value: v}
}

// Fail wraps a failure message.
func Fail[T any](message string) Result[T] {
	return Result[T]{message: message}
}

// IsOk reports whether the result is the Ok variant.
func (r Result[T]) IsOk() bool { return r.ok }

// Value returns the payload; it is the zero value for Fail.
func (r Result[T]) Value() T { return r.value }

// Message returns the failure message; it is empty for Ok.
func (r Result[T]) Message() string { return r.message }

// Unwrap converts Fail into a *SoftError tagged with op.
func (r Result[T]) Unwrap(op string) (T, error) {
	if !r.ok {
		var zero T
		return zero, &SoftError{Op: op, Message: r.message}
	}
	return r.value, nil
}

// envelope is the success marker shared by every mutating endpoint.
type envelope struct {
	OK    *bool  `json:"ok"`
	Error string `json:"error"`
}

// decodeResult decodes body into a Result. A payload without an ok marker
// is a failure: the backend promises one on these endpoints.
func decodeResult[T any](body []byte) Result[T] {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Fail[T](fmt.Sprintf("malformed response: %v", err))
	}
	if env.OK == nil {
		return Fail[T]("response is missing the ok marker")
	}
	if !*env.OK {
		if env.Error == "" {
			return Fail[T]("request rejected")
		}
		return Fail[T](env.Error)
	}
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return Fail[T](fmt.Sprintf("malformed response: %v", err))
	}
	return Ok(v)
}
