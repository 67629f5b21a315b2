// Package console holds the typed read helpers behind the console pages.
// Each helper fixes the cache and retry policy its page uses.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/client"
	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

const (
	edgeNodesTTL = 60 * time.Second

	predictionRetries = 2
	predictionTimeout = 15 * time.Second

	alertsTimeout    = 8 * time.Second
	snapshotsTimeout = 12 * time.Second
)

// Console reads dashboard data from the backend.
type Console struct {
	client *client.Client
}

// New creates a Console on top of c.
func New(c *client.Client) *Console {
	return &Console{client: c}
}

// EdgeNodes returns the edge network listing, cached for a minute.
func (c *Console) EdgeNodes(ctx context.Context) (json.RawMessage, error) {
	opts := client.DefaultCacheOptions()
	opts.TTL = edgeNodesTTL
	return c.client.CachedFetchJSON(ctx, "/edge/nodes", nil, opts)
}

// SpeciesClusters returns one page of species clusters. Reads always go to
// the network but refresh the cached copy.
func (c *Console) SpeciesClusters(ctx context.Context, page, limit int) (json.RawMessage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	opts := client.DefaultCacheOptions()
	opts.TTL = 0
	return c.client.CachedFetchJSON(ctx, fmt.Sprintf("/species/clusters?page=%d&limit=%d", page, limit), nil, opts)
}

// PredictionWarnings returns early-warning indicators.
func (c *Console) PredictionWarnings(ctx context.Context) (json.RawMessage, error) {
	return c.fetchJSON(ctx, "/prediction/warnings", predictionRetries, predictionTimeout)
}

// TippingPoints returns the modelled tipping points.
func (c *Console) TippingPoints(ctx context.Context) (json.RawMessage, error) {
	return c.fetchJSON(ctx, "/prediction/tipping-points", predictionRetries, predictionTimeout)
}

// Signals returns the raw collapse signals.
func (c *Console) Signals(ctx context.Context) (json.RawMessage, error) {
	return c.fetchJSON(ctx, "/prediction/signals", predictionRetries, predictionTimeout)
}

// AlertsStatus returns the alert subscription state. It is polled, so a
// failed read is not retried.
func (c *Console) AlertsStatus(ctx context.Context) (json.RawMessage, error) {
	return c.fetchJSON(ctx, "/alerts/status", 0, alertsTimeout)
}

// TwinState returns the data of the digital twin's current state.
func (c *Console) TwinState(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.client.Fetch(ctx, "/twin/state", nil)
	if err != nil {
		return nil, err
	}
	return core.DecodeEnvelope[json.RawMessage](resp.Body, resp.Status).Unwrap()
}

// TwinSnapshots returns the saved twin snapshots.
func (c *Console) TwinSnapshots(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.client.FetchWithRetry(ctx, "/twin/snapshots", nil, 0, snapshotsTimeout)
	if err != nil {
		return nil, err
	}
	data, err := core.DecodeEnvelope[json.RawMessage](resp.Body, resp.Status).Unwrap()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return json.RawMessage(`[]`), nil
	}
	return data, nil
}

func (c *Console) fetchJSON(ctx context.Context, path string, retries int, timeout time.Duration) (json.RawMessage, error) {
	resp, err := c.client.FetchWithRetry(ctx, path, nil, retries, timeout)
	if err != nil {
		return nil, err
	}
	if !json.Valid(resp.Body) {
		return nil, core.NewDecodeError(errors.New("body is not valid JSON"))
	}
	return json.RawMessage(resp.Body), nil
}
