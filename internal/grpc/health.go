package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name of the gateway. The empty name
// reports the same status for clients that check the server as a whole.
const ServiceName = "gaia.gateway"

// Health reports SERVING while the backend answers its probe and
// NOT_SERVING otherwise.
type Health struct {
	server *health.Server
}

// Register creates the health service, registers it with s, and starts in
// NOT_SERVING until the first successful probe.
func Register(s *grpc.Server) *Health {
	h := &Health{server: health.NewServer()}
	healthpb.RegisterHealthServer(s, h.server)
	h.SetBackendUp(false)
	return h
}

// SetBackendUp records the result of a backend probe.
func (h *Health) SetBackendUp(up bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
}

// Shutdown sets every service to NOT_SERVING and ignores later updates.
func (h *Health) Shutdown() {
	h.server.Shutdown()
}
