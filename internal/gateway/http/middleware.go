package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/policy"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// Authenticate resolves the bearer token into an identity and attaches it,
// with the raw token, to the request context.
//
// The middleware never rejects: a missing, malformed, expired, or otherwise
// unusable token leaves the request anonymous and lets it continue to the
// authorization layer, which decides whether anonymous is acceptable for
// the route. Public routes short-circuit before the token is even decoded.
func Authenticate(codec *jwtx.Codec, identities *service.IdentityService, pol *policy.Policy) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if pol.Public(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			log := slogx.FromContext(r.Context())

			claims, err := codec.Decode(token)
			if err != nil {
				log.Debug("token rejected", slog.String("reason", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			identity, err := identities.Resolve(r.Context(), claims.Subject)
			if err != nil {
				log.Debug("identity unresolved", slog.String("subject", claims.Subject))
				next.ServeHTTP(w, r)
				return
			}
			if !identity.Enabled {
				log.Debug("identity disabled", slog.String("subject", claims.Subject))
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			ctx = WithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authorize enforces the path rules. Anonymous requests to protected routes
// get 401, authenticated ones lacking the authority get 403.
func Authorize(pol *policy.Policy) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var identity *domain.Identity
			if id, ok := IdentityFromContext(r.Context()); ok {
				identity = &id
			}

			decision := pol.Evaluate(r.URL.Path, identity)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			switch decision.Reason {
			case policy.ReasonForbidden:
				WriteForbidden(w, r)
			default:
				WriteUnauthenticated(w, r)
			}
		})
	}
}

// CORS applies the static cross-origin allow-list and answers preflight
// requests. It runs outside authentication so even rejected requests carry
// the headers browsers need to read the error body.
func CORS(cfg policy.CORSConfig) httpx.Middleware {
	allowMethods := strings.Join(cfg.AllowedMethods, ", ")
	allowHeaders := strings.Join(cfg.AllowedHeaders, ", ")
	exposeHeaders := strings.Join(cfg.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !cfg.OriginAllowed(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposeHeaders != "" {
				h.Set("Access-Control-Expose-Headers", exposeHeaders)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", allowMethods)
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				h.Set("Access-Control-Max-Age", "300")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalKeyExtractor keys inbound rate limits by authenticated username,
// falling back to client IP for anonymous requests.
func PrincipalKeyExtractor(r *http.Request) string {
	if identity, ok := IdentityFromContext(r.Context()); ok {
		return "user:" + identity.Username
	}
	return "ip:" + httpx.IPKeyExtractor(r)
}
