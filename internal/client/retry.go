package client

import (
	"context"
	"errors"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/core"
	"github.com/Akansha-Mulchandani/GAIA/internal/metrics"
)

// Fetch is FetchWithRetry with the default retry budget and timeout.
func (c *Client) Fetch(ctx context.Context, path string, req *Request) (*Response, error) {
	return c.FetchWithRetry(ctx, path, req, DefaultRetries, DefaultTimeout)
}

// FetchWithRetry executes req up to retries+1 times. Retryable failures
// (transport, timeout, 5xx, 408, 429) are retried after
// min(1s * 2^(n-1), 10s); any other HTTP error is returned immediately.
// When the budget is spent the last error is wrapped in an exhausted error.
func (c *Client) FetchWithRetry(ctx context.Context, path string, req *Request, retries int, timeout time.Duration) (*Response, error) {
	if retries < 0 {
		retries = 0
	}
	method := req.method()

	var lastErr *core.APIError
	for attempt := 0; attempt <= retries; attempt++ {
		resp, err := c.Execute(ctx, path, req, timeout)
		if err == nil {
			return resp, nil
		}

		lastErr = asAPIError(err)
		if !lastErr.Retryable() {
			c.logger.Error("backend request failed",
				"method", method,
				"path", path,
				"status", lastErr.Status,
				"error", lastErr.Message,
			)
			return nil, lastErr
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
		if attempt == retries {
			break
		}

		delay := core.CalculateBackoff(&core.FetchRetryPolicy, attempt+1)
		metrics.ClientRetries.Inc()
		c.logger.Warn("retrying backend request",
			"method", method,
			"path", path,
			"attempt", attempt+1,
			"delay", delay,
			"error", lastErr.Message,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, core.NewTransportError(err)
		}
	}

	c.logger.Error("backend request exhausted retries",
		"method", method,
		"path", path,
		"attempts", retries+1,
		"error", lastErr.Message,
	)
	return nil, core.NewExhaustedError(lastErr)
}

func asAPIError(err error) *core.APIError {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return core.NewTransportError(err)
}
