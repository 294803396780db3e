package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/guardx"
)

func TestFetchServiceA(t *testing.T) {
	t.Parallel()
	env := newGuardEnv(t, guardx.BreakerConfig{}, guardx.LimiterConfig{})
	token := env.token(t, "alice")

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/data/42", r.URL.Path)
		require.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":"hello from A"}`))
	}))
	t.Cleanup(upstream.Close)

	client := service.NewExternalClient(env.caller, upstream.URL, upstream.URL)
	resp, err := client.FetchServiceA(context.Background(), "42", token)
	require.NoError(t, err)
	require.Equal(t, "hello from A", resp.Data)
}

func TestFetchServiceAFallsBackOnServerError(t *testing.T) {
	t.Parallel()
	env := newGuardEnv(t, guardx.BreakerConfig{}, guardx.LimiterConfig{})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(upstream.Close)

	client := service.NewExternalClient(env.caller, upstream.URL, upstream.URL)
	resp, err := client.FetchServiceA(context.Background(), "42", env.token(t, "alice"))
	require.NoError(t, err)
	require.Equal(t, "Service A unavailable. Try again later.", resp.Data)
}

func TestFetchServiceBFallsBackWhenUnreachable(t *testing.T) {
	t.Parallel()
	env := newGuardEnv(t, guardx.BreakerConfig{}, guardx.LimiterConfig{})

	// Nothing listens on this address; the dial fails immediately.
	client := service.NewExternalClient(env.caller, "http://127.0.0.1:1", "http://127.0.0.1:1")
	resp, err := client.FetchServiceB(context.Background(), "7", env.token(t, "alice"))
	require.NoError(t, err)
	require.Equal(t, "Service B unavailable. Try again later.", resp.Data)
}
