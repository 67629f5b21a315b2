package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/client"
	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

const readinessTimeout = 3 * time.Second

// StatusFunc reports the state of a dependency, e.g. the realtime channel.
type StatusFunc func() string

// SystemHandler handles system-related HTTP endpoints.
type SystemHandler struct {
	client   *client.Client
	realtime StatusFunc
}

// NewSystemHandler creates a new SystemHandler. realtime may be nil.
func NewSystemHandler(c *client.Client, realtime StatusFunc) *SystemHandler {
	return &SystemHandler{client: c, realtime: realtime}
}

// Healthz handles GET /healthz
func (h *SystemHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": core.Version,
	})
}

// Readyz handles GET /readyz. The gateway is ready when the backend answers
// its health endpoint.
func (h *SystemHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := map[string]any{
		"status":  "ok",
		"backend": "up",
		"version": core.Version,
	}
	if h.realtime != nil {
		resp["realtime"] = h.realtime()
	}

	if err := h.client.Ping(ctx, readinessTimeout); err != nil {
		resp["status"] = "unavailable"
		resp["backend"] = "down"
		resp["error"] = err.Error()
		WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}
