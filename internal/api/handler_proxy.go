package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Akansha-Mulchandani/GAIA/internal/client"
	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

const proxyTimeout = 30 * time.Second

// ProxyHandler relays read-only queries to a fixed backend prefix.
type ProxyHandler struct {
	client *client.Client
	prefix string
	logger *slog.Logger
}

// NewProxyHandler creates a ProxyHandler forwarding to prefix (e.g. "/prediction").
func NewProxyHandler(c *client.Client, prefix string, logger *slog.Logger) *ProxyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProxyHandler{client: c, prefix: "/" + strings.Trim(prefix, "/"), logger: logger}
}

// Get handles GET <mount>/*. The status and body of the backend response are
// relayed unchanged; bodies that are not JSON are wrapped as {raw: text}.
func (h *ProxyHandler) Get(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.Trim(chi.URLParam(r, "*"), "/")
	if endpoint == "" {
		WriteError(w, http.StatusBadRequest, "Missing endpoint")
		return
	}

	path := h.prefix + "/" + endpoint
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	req := &client.Request{Header: http.Header{"Accept": {"application/json"}}}
	var (
		status int
		body   []byte
	)

	resp, err := h.client.Execute(r.Context(), path, req, proxyTimeout)
	if err == nil {
		status, body = resp.Status, resp.Body
	} else {
		var apiErr *core.APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != core.KindHTTP {
			h.logger.Warn("proxy request failed", "path", path, "error", err)
			msg := "Proxy error"
			if apiErr != nil && apiErr.Message != "" {
				msg = apiErr.Message
			}
			WriteError(w, http.StatusBadGateway, msg)
			return
		}
		status, body = apiErr.Status, apiErr.Body
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		data = map[string]string{"raw": string(body)}
	}
	WriteJSON(w, status, data)
}
