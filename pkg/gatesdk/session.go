package gatesdk

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Session is an authenticated view of the gateway. It carries one access
// token; there is no refresh flow, so an expired session must be replaced
// by logging in again.
type Session struct {
	client *Client

	token       string
	username    string
	authorities []string
	expiresAt   time.Time
}

func newSession(c *Client, token TokenResponse) *Session {
	return &Session{
		client:      c,
		token:       token.Token,
		username:    token.Username,
		authorities: token.Authorities,
		expiresAt:   time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
}

// Token returns the raw access token, e.g. for storage.
func (s *Session) Token() string { return s.token }

// Username returns the principal name, when known.
func (s *Session) Username() string { return s.username }

// Expired reports whether the token's lifetime has lapsed. Sessions built
// with SessionFromToken have no expiry knowledge and always report false;
// the server remains the authority either way.
func (s *Session) Expired() bool {
	return !s.expiresAt.IsZero() && !time.Now().Before(s.expiresAt)
}

// Me fetches the authenticated identity.
func (s *Session) Me(ctx context.Context) (*MeResponse, error) {
	var me MeResponse
	if err := s.client.doJSON(ctx, http.MethodGet, "/v1/me", nil, &me, s.token); err != nil {
		return nil, err
	}
	return &me, nil
}

// External fetches the downstream aggregate for id.
func (s *Session) External(ctx context.Context, id string) (*ExternalResponse, error) {
	var out ExternalResponse
	path := "/v1/external/" + url.PathEscape(id)
	if err := s.client.doJSON(ctx, http.MethodGet, path, nil, &out, s.token); err != nil {
		return nil, err
	}
	return &out, nil
}
