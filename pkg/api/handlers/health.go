package handlers

import (
	"net/http"

	"github.com/mextdomen/mextdomen/pkg/directory"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Is the directory store reachable?
type HealthHandler struct {
	service *directory.Service
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(service *directory.Service) *HealthHandler {
	return &HealthHandler{service: service}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteOK(w, map[string]string{"service": "mextdomen"})
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK if the directory store answers queries,
// 503 Service Unavailable otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("directory not initialized"))
		return
	}

	domains, err := h.service.ListDomains()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("directory store unreachable"))
		return
	}

	WriteOK(w, map[string]interface{}{
		"domains": len(domains),
	})
}
