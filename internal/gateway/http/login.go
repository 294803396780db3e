package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

type LoginHandler struct {
	AuthService *service.AuthService
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, r, "request body must be JSON")
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteBadRequest(w, r, "username and password are required")
		return
	}

	payload, err := h.AuthService.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			WriteUnauthenticated(w, r)
			return
		}
		log.Error("login failed", "err", err)
		WriteServerError(w, r)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, payload)
}
