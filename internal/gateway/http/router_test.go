package http_test

import (
	"bytes"
	"encoding/json"
	"io"
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
	"github.com/aussiebroadwan/gatekeeper/pkg/guardx"
)

// newTestGateway wires the full stack against a stub downstream and returns
// the gateway's base URL.
func newTestGateway(t *testing.T) string {
	t.Helper()

	st, err := sqlite.NewStore("file:" + filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":"record ` + path.Base(r.URL.Path) + `"}`))
	}))
	t.Cleanup(upstream.Close)

	codec := newTestCodec(t)
	logger := slog.New(slog.DiscardHandler)
	registry := guardx.NewRegistry(guardx.BreakerConfig{}, guardx.LimiterConfig{}, logger)
	metrics := obs.NewMetrics()

	identitySvc := &service.IdentityService{Store: st}
	guarded := &service.GuardedCaller{Codec: codec, Identity: identitySvc, Registry: registry}

	router := gwhttp.NewRouter(codec, policy.Default(), policy.DefaultCORS(),
		registry, metrics, "test", st, logger)
	router.AuthService = &service.AuthService{Store: st, Codec: codec, AccessTTL: time.Hour}
	router.IdentityService = identitySvc
	router.ExternalClient = service.NewExternalClient(guarded, upstream.URL, upstream.URL)
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getWithToken(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestGatewayEndToEnd(t *testing.T) {
	base := newTestGateway(t)

	var token string

	t.Run("register", func(t *testing.T) {
		resp := postJSON(t, base+"/auth/register", map[string]string{
			"username": "alice",
			"password": "correct horse battery",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var payload service.AuthPayload
		decodeJSON(t, resp, &payload)
		require.Equal(t, "alice", payload.Username)
		require.NotEmpty(t, payload.Token)
	})

	t.Run("login", func(t *testing.T) {
		resp := postJSON(t, base+"/auth/login", map[string]string{
			"username": "alice",
			"password": "correct horse battery",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var payload service.AuthPayload
		decodeJSON(t, resp, &payload)
		token = payload.Token
		require.NotEmpty(t, token)
	})

	t.Run("login wrong password", func(t *testing.T) {
		resp := postJSON(t, base+"/auth/login", map[string]string{
			"username": "alice",
			"password": "not the password",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var apiErr gwhttp.APIError
		decodeJSON(t, resp, &apiErr)
		require.Equal(t, "unauthorized", apiErr.Error)
		require.Equal(t, "/auth/login", apiErr.Path)
		require.NotEmpty(t, apiErr.Timestamp)
	})

	t.Run("me without token", func(t *testing.T) {
		resp := getWithToken(t, base+"/v1/me", "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me", func(t *testing.T) {
		resp := getWithToken(t, base+"/v1/me", token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var me gwhttp.MeResponse
		decodeJSON(t, resp, &me)
		require.Equal(t, "alice", me.Username)
		require.Equal(t, []string{"user"}, me.Authorities)
	})

	t.Run("external aggregate", func(t *testing.T) {
		resp := getWithToken(t, base+"/v1/external/42", token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var agg gwhttp.ExternalAggregateResponse
		decodeJSON(t, resp, &agg)
		require.Equal(t, "record 42", agg.ServiceA.Data)
		require.Equal(t, "record 42", agg.ServiceB.Data)
	})

	t.Run("expired token degrades to anonymous", func(t *testing.T) {
		resp := getWithToken(t, base+"/v1/me", "not.a.token")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("health and metrics", func(t *testing.T) {
		for _, path := range []string{"/livez", "/readyz", "/metrics"} {
			resp := getWithToken(t, base+path, "")
			require.Equal(t, http.StatusOK, resp.StatusCode, path)
		}
		body, err := io.ReadAll(getWithToken(t, base+"/metrics", "").Body)
		require.NoError(t, err)
		require.Contains(t, string(body), "gateway_requests_total")
	})
}
