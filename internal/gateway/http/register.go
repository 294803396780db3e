package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

type RegisterHandler struct {
	AuthService *service.AuthService
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, r, "request body must be JSON")
		return
	}

	payload, err := h.AuthService.Register(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUsername):
			WriteBadRequest(w, r, "username must be at least 3 characters")
		case errors.Is(err, service.ErrWeakPassword):
			WriteBadRequest(w, r, "password must be at least 8 characters")
		case errors.Is(err, service.ErrUsernameTaken):
			newAPIError(http.StatusConflict, "username_taken",
				"Username is already registered.", r.URL.Path).Write(w)
		default:
			log.Error("registration failed", "err", err)
			WriteServerError(w, r)
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, payload)
}
