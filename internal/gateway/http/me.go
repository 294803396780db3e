package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// MeResponse echoes the authenticated identity back to the caller.
type MeResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
}

// MeHandler returns the identity the interceptor attached. The route is
// protected by the authorization middleware, so a missing identity here
// means a wiring bug rather than a client error.
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			WriteUnauthenticated(w, r)
			return
		}

		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, MeResponse{
			ID:          identity.ID,
			Username:    identity.Username,
			Authorities: identity.Authorities,
		})
	}
}
