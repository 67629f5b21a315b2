// Package metrics provides Prometheus instrumentation for the GAIA console
// client and gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClientRequests counts backend request attempts by method and outcome
	// (success, transport, timeout, http_4xx, http_5xx).
	ClientRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gaia",
		Name:      "client_requests_total",
		Help:      "Total number of backend request attempts.",
	}, []string{"method", "outcome"})

	// ClientRetries counts retries scheduled by the retry controller.
	ClientRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gaia",
		Name:      "client_retries_total",
		Help:      "Total number of retried backend requests.",
	})

	// ClientRequestDuration tracks single-attempt latency.
	ClientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gaia",
		Name:      "client_request_duration_seconds",
		Help:      "Duration of backend request attempts in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method"})

	// CacheLookups counts cache reads per tier and result (hit, miss, stale, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gaia",
		Name:      "cache_lookups_total",
		Help:      "Total number of response cache lookups.",
	}, []string{"tier", "result"})

	// RealtimeEvents counts events received on the realtime channel.
	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gaia",
		Name:      "realtime_events_total",
		Help:      "Total number of realtime events received.",
	}, []string{"event"})

	// RealtimeReconnects counts reconnection attempts of the realtime channel.
	RealtimeReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gaia",
		Name:      "realtime_reconnects_total",
		Help:      "Total number of realtime reconnection attempts.",
	})

	// JobTerminal counts terminal job observations by the path that won the race.
	JobTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gaia",
		Name:      "job_terminal_total",
		Help:      "Terminal job observations by status and source (realtime, poll).",
	}, []string{"status", "source"})

	// UploadsForwarded counts multipart uploads forwarded to the backend.
	UploadsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gaia",
		Name:      "uploads_forwarded_total",
		Help:      "Total number of uploads forwarded to the backend.",
	}, []string{"endpoint", "status"})

	// CacheWarms counts scheduled cache refreshes by path and result (ok, error).
	CacheWarms = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gaia",
		Name:      "cache_warms_total",
		Help:      "Total number of scheduled cache refreshes.",
	}, []string{"path", "result"})

	// BackendUp is 1 when the last readiness probe reached the backend.
	BackendUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gaia",
		Name:      "backend_up",
		Help:      "Whether the backend answered the last readiness probe.",
	})

	// ServerInfo exposes static gateway metadata as labels.
	ServerInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gaia",
		Name:      "server_info",
		Help:      "Static server metadata.",
	}, []string{"version", "cache_backend"})

	// HTTPRequestsTotal counts gateway HTTP requests by method, path, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gaia",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks gateway HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gaia",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})
)

// Init sets static server metadata on the info metric.
func Init(version, cacheBackend string) {
	ServerInfo.WithLabelValues(version, cacheBackend).Set(1)
}
