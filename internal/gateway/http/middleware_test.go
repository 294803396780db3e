package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatekeeper/internal/gateway/domain"
	gwhttp "github.com/aussiebroadwan/gatekeeper/internal/gateway/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/policy"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gateway/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeStore serves a fixed set of identities and counts lookups, so tests
// can assert the resolver was never consulted on public paths.
type fakeStore struct {
	identities map[string]domain.Identity
	lookups    atomic.Int32
}

func (s *fakeStore) Identities() store.Identities { return s }
func (s *fakeStore) ApplyMigrations() error       { return nil }
func (s *fakeStore) Close() error                 { return nil }
func (s *fakeStore) Ping(context.Context) error   { return nil }

func (s *fakeStore) GetIdentityByUsername(_ context.Context, username string) (domain.Identity, error) {
	s.lookups.Add(1)
	identity, ok := s.identities[username]
	if !ok {
		return domain.Identity{}, store.ErrNotFound
	}
	return identity, nil
}

func (s *fakeStore) GetIdentityByID(_ context.Context, id string) (domain.Identity, error) {
	for _, identity := range s.identities {
		if identity.ID == id {
			return identity, nil
		}
	}
	return domain.Identity{}, store.ErrNotFound
}

func (s *fakeStore) CreateIdentity(context.Context, domain.Identity) error { return nil }
func (s *fakeStore) SetEnabled(context.Context, string, bool) error        { return nil }

// expiredToken signs an already-lapsed token with the trusted secret, so it
// is well formed and verifiable but dead.
func expiredToken(t *testing.T, subject string) string {
	t.Helper()
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		"exp": jwt.NewNumericDate(now.Add(-time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func newTestCodec(t *testing.T) *jwtx.Codec {
	t.Helper()
	codec, err := jwtx.NewCodec(testSecret, "gatekeeper-test")
	require.NoError(t, err)
	return codec
}

func newAuthenticator(t *testing.T) (*jwtx.Codec, *fakeStore, func(http.Handler) http.Handler) {
	t.Helper()
	codec := newTestCodec(t)
	st := &fakeStore{identities: map[string]domain.Identity{
		"alice":   {ID: "id-alice", Username: "alice", Authorities: []string{"user"}, Enabled: true},
		"mallory": {ID: "id-mallory", Username: "mallory", Enabled: false},
	}}
	mw := gwhttp.Authenticate(codec, &service.IdentityService{Store: st}, policy.Default())
	return codec, st, mw
}

func captureIdentity(t *testing.T, mw func(http.Handler) http.Handler, req *http.Request) (*domain.Identity, bool) {
	t.Helper()
	var got *domain.Identity
	reached := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		if identity, ok := gwhttp.IdentityFromContext(r.Context()); ok {
			got = &identity
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.True(t, reached, "handler must always be reached")
	return got, rec.Code == http.StatusOK
}

func TestAuthenticateAttachesIdentity(t *testing.T) {
	t.Parallel()
	codec, _, mw := newAuthenticator(t)

	token, err := codec.Issue("alice", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	identity, _ := captureIdentity(t, mw, req)
	require.NotNil(t, identity)
	require.Equal(t, "alice", identity.Username)
}

func TestAuthenticateSkipsPublicPaths(t *testing.T) {
	t.Parallel()
	codec, st, mw := newAuthenticator(t)

	token, err := codec.Issue("alice", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	identity, _ := captureIdentity(t, mw, req)
	require.Nil(t, identity)
	require.EqualValues(t, 0, st.lookups.Load(), "public paths must not touch the store")
}

func TestAuthenticatePassthrough(t *testing.T) {
	t.Parallel()
	codec, _, mw := newAuthenticator(t)

	valid, err := codec.Issue("alice", time.Minute)
	require.NoError(t, err)
	unknown, err := codec.Issue("ghost", time.Minute)
	require.NoError(t, err)
	disabled, err := codec.Issue("mallory", time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
		{"tampered token", "Bearer " + valid + "x"},
		{"expired token", "Bearer " + expiredToken(t, "alice")},
		{"unknown subject", "Bearer " + unknown},
		{"disabled identity", "Bearer " + disabled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			identity, _ := captureIdentity(t, mw, req)
			require.Nil(t, identity, "request must continue anonymous")
		})
	}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()
	mw := gwhttp.Authorize(policy.Default())
	user := domain.Identity{Username: "alice", Authorities: []string{"user"}, Enabled: true}

	run := func(path string, identity *domain.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if identity != nil {
			req = req.WithContext(gwhttp.WithIdentity(req.Context(), *identity))
		}
		rec := httptest.NewRecorder()
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rec, req)
		return rec
	}

	t.Run("anonymous protected", func(t *testing.T) {
		rec := run("/v1/me", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.Contains(t, rec.Body.String(), `"unauthorized"`)
		require.Contains(t, rec.Body.String(), `"path":"/v1/me"`)
	})

	t.Run("missing authority", func(t *testing.T) {
		rec := run("/admin/identities", &user)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Contains(t, rec.Body.String(), `"forbidden"`)
	})

	t.Run("anonymous public", func(t *testing.T) {
		rec := run("/livez", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("authorized", func(t *testing.T) {
		rec := run("/v1/me", &user)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCORS(t *testing.T) {
	t.Parallel()
	mw := gwhttp.CORS(policy.DefaultCORS())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, req)

		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/v1/me", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
		require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		req.Header.Set("Origin", "http://evil.test")
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, req)

		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
