package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/guardx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

var (
	ErrMissingToken = errors.New("service: missing token")
	ErrInvalidToken = errors.New("service: invalid token")
	ErrSlowCall     = errors.New("service: call exceeded slow-call threshold")
	ErrDownstream   = errors.New("service: downstream call failed")
)

// CallFunc is an outbound call to a downstream dependency. Implementations
// must honor ctx, which carries the slow-call deadline.
type CallFunc func(ctx context.Context) ([]byte, error)

// FallbackFunc produces a substitute result for a failed or rejected call.
type FallbackFunc func(err error) []byte

// GuardedCaller wraps outbound calls with token re-validation, rate
// limiting, circuit breaking, and optional fallback.
//
// The token is decoded and resolved from scratch on every call rather than
// trusting the inbound request's ambient identity: the call may originate
// from a different logical caller, e.g. a scheduled job.
type GuardedCaller struct {
	Codec    *jwtx.Codec
	Identity *IdentityService
	Registry *guardx.Registry
}

// Call dispatches fn against the named resource under the full guard chain.
// Admission order: token validation, rate limiter, circuit breaker. While
// the breaker is open or the limiter exhausted, fn is never invoked.
//
// When a fallback is supplied it absorbs limiter/breaker rejections and
// dispatch failures alike; the original error is logged, not propagated.
// Token failures are never given to the fallback: a caller with a bad
// token has no business receiving even a canned result.
func (g *GuardedCaller) Call(
	ctx context.Context,
	resource, token string,
	fn CallFunc,
	fallback FallbackFunc,
) ([]byte, error) {
	log := slogx.FromContext(ctx)

	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	claims, err := g.Codec.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	identity, err := g.Identity.Resolve(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !identity.Enabled || identity.Username != claims.Subject {
		return nil, ErrInvalidToken
	}

	if err := g.Registry.RateLimiter(resource).Acquire(ctx); err != nil {
		return g.recover(log, resource, fallback, err)
	}

	breaker := g.Registry.CircuitBreaker(resource)
	if err := breaker.Allow(); err != nil {
		return g.recover(log, resource, fallback, err)
	}

	body, err := dispatch(ctx, breaker, fn)
	if err != nil {
		return g.recover(log, resource, fallback, err)
	}
	return body, nil
}

// recover applies the fallback, or propagates the error when none is set.
func (g *GuardedCaller) recover(
	log *slog.Logger,
	resource string,
	fallback FallbackFunc,
	err error,
) ([]byte, error) {
	if fallback == nil {
		return nil, err
	}
	log.Warn("guarded call fell back",
		slog.String("resource", resource),
		slog.String("reason", err.Error()),
	)
	return fallback(err), nil
}

// dispatch runs fn bounded by the breaker's slow-call threshold and records
// the outcome. A call that outlives the threshold is recorded as a failure
// and its eventual result discarded, even if it would have succeeded.
func dispatch(ctx context.Context, breaker *guardx.CircuitBreaker, fn CallFunc) ([]byte, error) {
	threshold := breaker.SlowCallThreshold()
	callCtx, cancel := context.WithTimeout(ctx, threshold)
	defer cancel()

	type outcome struct {
		body []byte
		err  error
	}
	done := make(chan outcome, 1) // buffered so a late result never leaks the goroutine

	start := time.Now()
	go func() {
		body, err := fn(callCtx)
		done <- outcome{body: body, err: err}
	}()

	select {
	case out := <-done:
		elapsed := time.Since(start)
		if out.err != nil {
			breaker.RecordFailure(elapsed)
			return nil, fmt.Errorf("%w: %w", ErrDownstream, out.err)
		}
		breaker.RecordSuccess(elapsed)
		return out.body, nil

	case <-callCtx.Done():
		breaker.RecordFailure(time.Since(start))
		if err := ctx.Err(); err != nil {
			// The caller itself went away; the breaker still counts it.
			return nil, err
		}
		return nil, ErrSlowCall
	}
}
