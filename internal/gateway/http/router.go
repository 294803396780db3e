package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/obs"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/policy"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/guardx"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	policy       *policy.Policy
	cors         policy.CORSConfig
	registry     *guardx.Registry
	metrics      *obs.Metrics
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store           store.Store
	AuthService     *service.AuthService
	IdentityService *service.IdentityService
	ExternalClient  *service.ExternalClient
}

func NewRouter(
	codec *jwtx.Codec,
	pol *policy.Policy,
	cors policy.CORSConfig,
	registry *guardx.Registry,
	metrics *obs.Metrics,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		policy:       pol,
		cors:         cors,
		registry:     registry,
		metrics:      metrics,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	return r
}

// ApplyRoutes registers all endpoints. Call after the service fields are
// populated.
func (r *Router) ApplyRoutes() {
	// Every request flows through logging, CORS, the passthrough
	// authenticator and the path policy, in that order. Rejection is the
	// policy's job alone; authentication never writes a response.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		CORS(r.cors),
		Authenticate(r.codec, r.IdentityService, r.policy),
		Authorize(r.policy),
	}

	r.registerAuth()
	r.registerMe()
	r.registerExternal()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{AuthService: r.AuthService}
	register := &RegisterHandler{AuthService: r.AuthService}

	// Credential endpoints get the strict per-IP limit to slow brute force.
	strict := httpx.StrictLimit.WithOnReject(WriteRateLimited)

	r.Mux.Handle("POST /auth/login",
		httpx.Chain(login,
			r.metrics.HTTPMiddleware(),
			httpx.RateLimitByIP(strict),
		),
	)
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(register,
			r.metrics.HTTPMiddleware(),
			httpx.RateLimitByIP(strict),
		),
	)
}

func (r *Router) registerMe() {
	lenient := httpx.LenientLimit.WithOnReject(WriteRateLimited)

	r.Mux.Handle("GET /v1/me",
		httpx.Chain(MeHandler(),
			r.metrics.HTTPMiddleware(),
			httpx.RateLimitMiddleware(lenient, PrincipalKeyExtractor),
		),
	)
}

func (r *Router) registerExternal() {
	h := &ExternalHandler{Client: r.ExternalClient}
	lenient := httpx.LenientLimit.WithOnReject(WriteRateLimited)

	r.Mux.Handle("GET /v1/external/{id}",
		httpx.Chain(h,
			r.metrics.HTTPMiddleware(),
			httpx.RateLimitMiddleware(lenient, PrincipalKeyExtractor),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.registry),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics", r.metrics.Handler())
}
