package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Akansha-Mulchandani/GAIA/internal/api"
	"github.com/Akansha-Mulchandani/GAIA/internal/client"
	"github.com/Akansha-Mulchandani/GAIA/internal/core"
	"github.com/Akansha-Mulchandani/GAIA/internal/metrics"
)

// Deps are the collaborators the gateway routes need.
type Deps struct {
	Client *client.Client
	// Events feeds the browser event relay. Nil disables /api/events.
	Events core.EventSubscriber
	// RealtimeStatus reports the upstream realtime channel state on /readyz.
	RealtimeStatus api.StatusFunc
}

// NewRouter creates and configures the HTTP router with all gateway routes.
func NewRouter(deps Deps, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(api.EchoRequestID)
	r.Use(metricsMiddleware)
	r.Use(api.RequestLogger(logger))

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Create handlers
	systemHandler := api.NewSystemHandler(deps.Client, deps.RealtimeStatus)
	uploadHandler := api.NewUploadHandler(deps.Client, logger)
	predictionHandler := api.NewProxyHandler(deps.Client, "/prediction", logger)

	// System endpoints
	r.Get("/healthz", systemHandler.Healthz)
	r.Get("/readyz", systemHandler.Readyz)

	r.Route("/api", func(r chi.Router) {
		// Upload forwarding
		r.Post("/butterfly/classify", uploadHandler.Classify)
		r.Post("/gemini/classify", uploadHandler.GeminiClassify)
		r.Post("/butterfly/gemini", uploadHandler.GeminiUpsert)

		// Read-only proxy
		r.Get("/prediction", predictionHandler.Get)
		r.Get("/prediction/*", predictionHandler.Get)

		// Realtime relay
		if deps.Events != nil {
			r.Get("/events", api.NewEventsHandler(deps.Events, logger).Stream)
		}
	})

	return r
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		duration := time.Since(start).Seconds()
		path := metricRoutePattern(r)
		status := fmt.Sprintf("%d", ww.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

func metricRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
