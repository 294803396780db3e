package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// externalResource is the shared registry name for both downstream
// services: they sit behind the same gateway on the provider side, so one
// breaker tracks their collective health.
const externalResource = "externalService"

// maxExternalBody bounds how much of a downstream response body is read.
const maxExternalBody = 1 << 20

// ExternalResponse is the payload shape returned by the downstream services.
type ExternalResponse struct {
	Data string `json:"data"`
}

// ExternalClient calls the external data services through the guard chain.
// Each fetch re-validates the caller's token, then applies rate limiting
// and circuit breaking before dispatching, with a canned fallback when the
// downstream is unavailable.
type ExternalClient struct {
	Guard *GuardedCaller
	HTTP  *http.Client

	ServiceABase string
	ServiceBBase string
}

// NewExternalClient builds a client with a sane default HTTP timeout. The
// effective per-call bound is the breaker's slow-call threshold; the client
// timeout is only a backstop.
func NewExternalClient(guard *GuardedCaller, serviceABase, serviceBBase string) *ExternalClient {
	return &ExternalClient{
		Guard:        guard,
		HTTP:         &http.Client{Timeout: 10 * time.Second},
		ServiceABase: serviceABase,
		ServiceBBase: serviceBBase,
	}
}

// FetchServiceA retrieves a record from service A on behalf of the token's
// subject.
func (c *ExternalClient) FetchServiceA(ctx context.Context, id, token string) (ExternalResponse, error) {
	return c.fetch(ctx, c.ServiceABase, id, token, "Service A unavailable. Try again later.")
}

// FetchServiceB retrieves a record from service B on behalf of the token's
// subject.
func (c *ExternalClient) FetchServiceB(ctx context.Context, id, token string) (ExternalResponse, error) {
	return c.fetch(ctx, c.ServiceBBase, id, token, "Service B unavailable. Try again later.")
}

func (c *ExternalClient) fetch(ctx context.Context, base, id, token, fallbackMsg string) (ExternalResponse, error) {
	call := func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/data/"+url.PathEscape(id), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxExternalBody))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return body, nil
	}

	fallback := func(error) []byte {
		body, _ := json.Marshal(ExternalResponse{Data: fallbackMsg})
		return body
	}

	body, err := c.Guard.Call(ctx, externalResource, token, call, fallback)
	if err != nil {
		return ExternalResponse{}, err
	}

	var out ExternalResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return ExternalResponse{}, fmt.Errorf("%w: decoding response: %w", ErrDownstream, err)
	}
	return out, nil
}
