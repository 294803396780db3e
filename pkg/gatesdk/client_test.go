package gatesdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatekeeper/pkg/gatesdk"
)

func newStubGateway(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))

		if creds["password"] != "correct horse battery" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": 401, "error": "unauthorized",
				"message": "Authentication required.", "path": "/auth/login",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(gatesdk.TokenResponse{
			Token: "tok-123", Username: creds["username"],
			Authorities: []string{"user"}, ExpiresIn: 3600,
		})
	})
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(gatesdk.MeResponse{
			ID: "id-1", Username: "alice", Authorities: []string{"user"},
		})
	})
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gatesdk.HealthResponse{Status: "ok"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginAndMe(t *testing.T) {
	t.Parallel()
	srv := newStubGateway(t)
	client := gatesdk.NewClient(srv.URL)

	session, err := client.Login(context.Background(), "alice", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, "tok-123", session.Token())
	require.Equal(t, "alice", session.Username())
	require.False(t, session.Expired())

	me, err := session.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "alice", me.Username)
}

func TestLoginFailureSurfacesAPIError(t *testing.T) {
	t.Parallel()
	srv := newStubGateway(t)
	client := gatesdk.NewClient(srv.URL)

	_, err := client.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)

	var apiErr *gatesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "unauthorized", apiErr.Code)
}

func TestGetLiveness(t *testing.T) {
	t.Parallel()
	srv := newStubGateway(t)
	client := gatesdk.NewClient(srv.URL)

	health, err := client.GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
}
