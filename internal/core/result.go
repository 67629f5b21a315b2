package core

import (
	"encoding/json"
	"fmt"
)

// Result is a tagged success/failure value decoded from a backend envelope.
// Exactly one of Value or Err is meaningful, selected by OK.
type Result[T any] struct {
	OK    bool
	Value T
	Err   *APIError
}

func Ok[T any](v T) Result[T] {
	return Result[T]{OK: true, Value: v}
}

func Fail[T any](err *APIError) Result[T] {
	return Result[T]{Err: err}
}

// Unwrap returns the value or the failure as an error.
func (r Result[T]) Unwrap() (T, error) {
	if r.OK {
		return r.Value, nil
	}
	var zero T
	if r.Err == nil {
		return zero, NewHTTPError(0, "unknown failure")
	}
	return zero, r.Err
}

// Envelope is the backend response wrapper:
// {success, data, error: {code, message}, message, timestamp}.
type Envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *EnvelopeError  `json:"error,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeEnvelope turns a backend envelope body into a typed Result.
// status is the HTTP status the body arrived with.
func DecodeEnvelope[T any](body []byte, status int) Result[T] {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Fail[T](NewDecodeError(err))
	}
	if !env.Success {
		msg := env.Message
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
			if env.Error.Code != "" {
				msg = fmt.Sprintf("%s: %s", env.Error.Code, env.Error.Message)
			}
		}
		if msg == "" {
			msg = "request failed"
		}
		return Fail[T](&APIError{Kind: KindHTTP, Message: msg, Status: status})
	}
	var v T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return Fail[T](NewDecodeError(err))
		}
	}
	return Ok(v)
}
