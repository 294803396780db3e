package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/guardx"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// HealthResponse is the payload for the liveness and readiness probes.
type HealthResponse struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Version  string            `json:"version"`
	Checks   map[string]string `json:"checks,omitempty"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

// LivezHandler always reports ok while the process is serving.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler checks the identity store and reports the current breaker
// states. An open breaker does not fail readiness; the gateway still serves
// with fallbacks.
func ReadyzHandler(startTime time.Time, version string, st store.Store, registry *guardx.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"database": "ok"}
		status := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		breakers := make(map[string]string)
		for name, state := range registry.BreakerStates() {
			breakers[name] = state.String()
		}

		httpx.WriteJSON(w, statusCode, HealthResponse{
			Status:   status,
			Uptime:   time.Since(startTime).String(),
			Version:  version,
			Checks:   checks,
			Breakers: breakers,
		})
	}
}
