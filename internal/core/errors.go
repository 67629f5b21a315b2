package core

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed backend call.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindTimeout   ErrorKind = "timeout"
	KindHTTP      ErrorKind = "http"
	KindExhausted ErrorKind = "exhausted"
	KindDecode    ErrorKind = "decode"
)

// TimeoutMessage is the message carried by every timeout error.
const TimeoutMessage = "Request timed out"

// APIError is the error shape every consumer of the client can rely on:
// a human-readable Message and the numeric Status (0 when no HTTP status
// applies, e.g. connection refused).
type APIError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
	Err     error     `json:"-"`

	// Body is the raw response body of an HTTP error.
	Body []byte `json:"-"`
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("[%s %d] %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed. Transport failures,
// timeouts, 5xx, 408 and 429 are retryable; every other 4xx is fatal.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindTimeout:
		return true
	case KindHTTP:
		return IsRetryableStatus(e.Status)
	default:
		return false
	}
}

// IsRetryableStatus applies the retry classification to a bare status code.
func IsRetryableStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

func NewTransportError(err error) *APIError {
	msg := "Network error"
	if err != nil {
		msg = err.Error()
	}
	return &APIError{
		Kind:    KindTransport,
		Message: msg,
		Err:     err,
	}
}

func NewTimeoutError(err error) *APIError {
	return &APIError{
		Kind:    KindTimeout,
		Message: TimeoutMessage,
		Status:  http.StatusRequestTimeout,
		Err:     err,
	}
}

func NewHTTPError(status int, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}
	return &APIError{
		Kind:    KindHTTP,
		Message: message,
		Status:  status,
	}
}

// NewExhaustedError wraps the last attempt's error once the retry budget is
// spent. The root cause text is preserved in the message.
func NewExhaustedError(last error) *APIError {
	msg := "Network error"
	status := 0
	if last != nil {
		msg = last.Error()
		if ae, ok := last.(*APIError); ok {
			msg = ae.Message
			status = ae.Status
		}
	}
	return &APIError{
		Kind:    KindExhausted,
		Message: "Failed to fetch: " + msg,
		Status:  status,
		Err:     last,
	}
}

func NewDecodeError(err error) *APIError {
	return &APIError{
		Kind:    KindDecode,
		Message: fmt.Sprintf("invalid JSON response: %v", err),
		Err:     err,
	}
}
