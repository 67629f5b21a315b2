package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/core"
	"github.com/Akansha-Mulchandani/GAIA/internal/metrics"
)

// Execute performs one HTTP attempt bounded by timeout. It returns a
// Response for 2xx statuses and a *core.APIError otherwise:
//   - the timeout firing yields a timeout error (status 408)
//   - a connection failure yields a transport error (status 0)
//   - a non-2xx status yields an HTTP error whose message is taken from the
//     body's "detail", then "message", then the raw text, then the status line
func (c *Client) Execute(ctx context.Context, path string, req *Request, timeout time.Duration) (*Response, error) {
	method := req.method()
	start := time.Now()
	if IsAbsoluteURL(path) {
		c.logger.Debug("absolute URL bypasses base URL", "url", path)
	}

	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, c.URL(path), req.body())
	if err != nil {
		return nil, core.NewTransportError(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header = req.headers()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		apiErr := classifyTransport(ctx, attemptCtx, err)
		observeAttempt(method, start, apiErr)
		return nil, apiErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := classifyTransport(ctx, attemptCtx, err)
		observeAttempt(method, start, apiErr)
		return nil, apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := core.NewHTTPError(resp.StatusCode, errorMessage(resp, body))
		apiErr.Body = body
		observeAttempt(method, start, apiErr)
		return nil, apiErr
	}

	observeAttempt(method, start, nil)
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// classifyTransport distinguishes our own timeout firing from every other
// transport failure, including cancellation of the caller's context.
func classifyTransport(parent, attempt context.Context, err error) *core.APIError {
	if parent.Err() == nil && errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return core.NewTimeoutError(err)
	}
	return core.NewTransportError(err)
}

// errorMessage extracts a human-readable message from an error response body.
func errorMessage(resp *http.Response, body []byte) string {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil {
		if obj, ok := parsed.(map[string]any); ok {
			if msg := stringField(obj["detail"]); msg != "" {
				return msg
			}
			if msg := stringField(obj["message"]); msg != "" {
				return msg
			}
		}
		if parsed != nil {
			if b, err := json.Marshal(parsed); err == nil {
				return string(b)
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}

// stringField renders a detail/message value. Strings are used as-is; any
// other non-null value (validation error lists, nested objects) is re-encoded.
func stringField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func observeAttempt(method string, start time.Time, err *core.APIError) {
	metrics.ClientRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	metrics.ClientRequests.WithLabelValues(method, outcome(err)).Inc()
}

func outcome(err *core.APIError) string {
	if err == nil {
		return "success"
	}
	if err.Kind == core.KindHTTP {
		if err.Status >= 500 {
			return "http_5xx"
		}
		return "http_4xx"
	}
	return string(err.Kind)
}

// Ping makes a single attempt against the backend's /health endpoint, which
// lives outside the API namespace.
func (c *Client) Ping(ctx context.Context, timeout time.Duration) error {
	_, err := c.Execute(ctx, c.RootURL("/health"), nil, timeout)
	return err
}
