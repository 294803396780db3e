package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

type ExternalHandler struct {
	Client *service.ExternalClient
}

// ExternalAggregateResponse combines both downstream payloads for one id.
// Either side may carry the canned fallback message when its service is
// unavailable; the aggregate itself still succeeds.
type ExternalAggregateResponse struct {
	ServiceA service.ExternalResponse `json:"service_a"`
	ServiceB service.ExternalResponse `json:"service_b"`
}

// ServeHTTP handles GET /v1/external/{id}. The raw bearer token from the
// request context is re-validated by the guarded client on every downstream
// call rather than trusted from the ambient identity.
func (h *ExternalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id := r.PathValue("id")
	if id == "" {
		WriteBadRequest(w, r, "id is required")
		return
	}

	token, ok := TokenFromContext(ctx)
	if !ok {
		WriteUnauthenticated(w, r)
		return
	}

	respA, err := h.Client.FetchServiceA(ctx, id, token)
	if err != nil {
		h.writeError(w, r, log, err)
		return
	}
	respB, err := h.Client.FetchServiceB(ctx, id, token)
	if err != nil {
		h.writeError(w, r, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ExternalAggregateResponse{
		ServiceA: respA,
		ServiceB: respB,
	})
}

func (h *ExternalHandler) writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrMissingToken), errors.Is(err, service.ErrInvalidToken):
		WriteUnauthenticated(w, r)
	default:
		log.Error("external aggregate failed", "err", err)
		WriteServerError(w, r)
	}
}
