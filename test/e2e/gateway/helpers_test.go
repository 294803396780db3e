package gateway_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	gwhttp "github.com/aussiebroadwan/gatekeeper/internal/gateway/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/obs"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/policy"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/gatesdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/guardx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

/*
 * End-to-end tests driving a fully wired in-process gateway through the SDK.
 * The downstream services are stubbed with httptest; everything else (token
 * codec, SQLite store, resilience registry, middleware chain) is the real
 * thing.
 */

const (
	testPassword = "correct horse battery"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

type gatewayEnv struct {
	Client   *gatesdk.Client
	Upstream *upstream
}

// upstream is a controllable stand-in for both external services.
type upstream struct {
	srv  *httptest.Server
	fail chan struct{} // closed to switch into failure mode
}

func (u *upstream) Fail() { close(u.fail) }

func (u *upstream) failing() bool {
	select {
	case <-u.fail:
		return true
	default:
		return false
	}
}

func newGatewayEnv(t *testing.T) *gatewayEnv {
	t.Helper()

	up := &upstream{fail: make(chan struct{})}
	up.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if up.failing() {
			http.Error(w, "downstream broken", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":"record ` + path.Base(r.URL.Path) + `"}`))
	}))
	t.Cleanup(up.srv.Close)

	st, err := sqlite.NewStore("file:" + filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := jwtx.NewCodec([]byte(testSecret), "gatekeeper-e2e")
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	registry := guardx.NewRegistry(guardx.BreakerConfig{
		MinimumNumberOfCalls: 4,
		SlidingWindowSize:    4,
	}, guardx.LimiterConfig{}, logger)

	identitySvc := &service.IdentityService{Store: st}
	guarded := &service.GuardedCaller{Codec: codec, Identity: identitySvc, Registry: registry}

	router := gwhttp.NewRouter(codec, policy.Default(), policy.DefaultCORS(),
		registry, obs.NewMetrics(), "e2e", st, logger)
	router.AuthService = &service.AuthService{Store: st, Codec: codec, AccessTTL: time.Hour}
	router.IdentityService = identitySvc
	router.ExternalClient = service.NewExternalClient(guarded, up.srv.URL, up.srv.URL)
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &gatewayEnv{
		Client:   gatesdk.NewClient(srv.URL),
		Upstream: up,
	}
}
