package http

import (
	"encoding/json"
	"net/http"
	"time"
)

// APIError is the JSON error envelope returned for every rejected request.
// The body never carries stack traces, token contents, or store identifiers;
// Details is limited to short human-readable hints.
type APIError struct {
	Status    int      `json:"status"`
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Path      string   `json:"path"`
	Timestamp string   `json:"timestamp"`
	Details   []string `json:"details,omitempty"`
}

func newAPIError(status int, code, message, path string, details ...string) APIError {
	return APIError{
		Status:    status,
		Error:     code,
		Message:   message,
		Path:      path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Details:   details,
	}
}

// Write serializes the error and sends it. The body is marshalled before
// any byte hits the wire; if marshalling fails the client gets a bare 500
// instead of a half-written JSON document.
func (e APIError) Write(w http.ResponseWriter) {
	body, err := json.Marshal(e)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_, _ = w.Write(body)
}

// WriteUnauthenticated rejects a request that reached a protected route
// without a valid identity.
func WriteUnauthenticated(w http.ResponseWriter, r *http.Request) {
	newAPIError(http.StatusUnauthorized, "unauthorized",
		"Authentication required.", r.URL.Path).Write(w)
}

// WriteForbidden rejects an authenticated request lacking the required
// authority.
func WriteForbidden(w http.ResponseWriter, r *http.Request) {
	newAPIError(http.StatusForbidden, "forbidden",
		"Insufficient permissions.", r.URL.Path).Write(w)
}

// WriteRateLimited rejects a request over the inbound rate limit.
func WriteRateLimited(w http.ResponseWriter, r *http.Request) {
	newAPIError(http.StatusTooManyRequests, "rate_limited",
		"Too many requests. Try again later.", r.URL.Path).Write(w)
}

// WriteBadRequest rejects a malformed request body or parameters.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, details ...string) {
	newAPIError(http.StatusBadRequest, "bad_request",
		"Invalid request.", r.URL.Path, details...).Write(w)
}

// WriteServerError reports an unexpected internal failure.
func WriteServerError(w http.ResponseWriter, r *http.Request) {
	newAPIError(http.StatusInternalServerError, "server_error",
		"Internal server error.", r.URL.Path).Write(w)
}
