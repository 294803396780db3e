package gatesdk

import "fmt"

// TokenResponse is returned by login and register.
type TokenResponse struct {
	Token       string   `json:"token"`
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
	ExpiresIn   int64    `json:"expires_in"`
}

// MeResponse is the authenticated identity echo.
type MeResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
}

// ExternalItem is one downstream service's payload.
type ExternalItem struct {
	Data string `json:"data"`
}

// ExternalResponse is the aggregate of both downstream services.
type ExternalResponse struct {
	ServiceA ExternalItem `json:"service_a"`
	ServiceB ExternalItem `json:"service_b"`
}

// HealthResponse is the liveness/readiness payload.
type HealthResponse struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Version  string            `json:"version"`
	Checks   map[string]string `json:"checks,omitempty"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

// APIError is the gateway's error envelope, surfaced as a Go error.
type APIError struct {
	Status    int      `json:"status"`
	Code      string   `json:"error"`
	Message   string   `json:"message"`
	Path      string   `json:"path"`
	Timestamp string   `json:"timestamp"`
	Details   []string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error %d (%s): %s", e.Status, e.Code, e.Message)
}
