// Package gatesdk is a typed client for the gateway's HTTP API. It covers
// the public auth endpoints and, through Session, the token-protected ones.
package gatesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to a gateway instance. Unauthenticated operations live here;
// Login and Register return a Session for the rest.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a gateway client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login exchanges credentials for an authenticated session.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var token TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", credentials{username, password}, &token, "")
	if err != nil {
		return nil, err
	}
	return newSession(c, token), nil
}

// Register creates an account and returns its first authenticated session.
func (c *Client) Register(ctx context.Context, username, password string) (*Session, error) {
	var token TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/register", credentials{username, password}, &token, "")
	if err != nil {
		return nil, err
	}
	return newSession(c, token), nil
}

// SessionFromToken wraps an existing access token, e.g. one stored from a
// previous login. No validation happens client-side; a stale token surfaces
// as 401 on first use.
func (c *Client) SessionFromToken(token string) *Session {
	return &Session{client: c, token: token}
}

// GetLiveness probes /livez.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/livez", nil, &health, ""); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetReadiness probes /readyz.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/readyz", nil, &health, ""); err != nil {
		return nil, err
	}
	return &health, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// doJSON performs one request. A non-2xx response is decoded into APIError
// and returned as the error.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, token string) error {
	var body *bytes.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gatesdk: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			return fmt.Errorf("gatesdk: request failed with status %d", resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gatesdk: decode response: %w", err)
	}
	return nil
}
