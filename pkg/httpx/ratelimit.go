package httpx

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines inbound per-key rate limiting parameters. This is
// the edge limiter protecting our own endpoints; outbound calls to
// downstream services are governed by guardx instead.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed per window.
	RequestsPerWindow int
	// Window is the time window for rate limiting.
	Window time.Duration
	// Burst allows temporary bursts above the steady rate.
	Burst int
	// OnReject, when set, writes the 429 response body instead of the
	// default JSON envelope. Retry-After and X-RateLimit-* headers are
	// already set when it runs.
	OnReject http.HandlerFunc
}

// WithOnReject returns a copy of the config using fn for 429 bodies.
func (c RateLimitConfig) WithOnReject(fn http.HandlerFunc) RateLimitConfig {
	c.OnReject = fn
	return c
}

// Profiles for different endpoint sensitivities.
var (
	// StrictLimit for credential-handling endpoints (brute force prevention).
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	// LenientLimit for authenticated read endpoints.
	LenientLimit = RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100}

	// PublicLimit for public and health endpoints.
	PublicLimit = RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
)

// KeyExtractor derives the grouping key for rate limiting from a request
// (client IP, principal name, a combination, ...). An empty key means the
// request cannot be attributed and is allowed through.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP, honoring X-Forwarded-For and
// X-Real-IP for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// keyedLimiters manages one token-bucket limiter per key.
type keyedLimiters struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func (kl *keyedLimiters) get(key string) *rate.Limiter {
	if limiter, ok := kl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := kl.limiters.LoadOrStore(key, rate.NewLimiter(kl.rate, kl.burst))
	kl.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops idle limiters so ephemeral keys don't accumulate
// forever. A limiter with a full bucket hasn't been used for a while.
func (kl *keyedLimiters) maybeCleanup() {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if time.Since(kl.lastCleanup) < 5*time.Minute {
		return
	}
	kl.lastCleanup = time.Now()

	kl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(kl.burst) {
			kl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware limits requests grouped by keyExtractor. Rejections
// carry Retry-After and a structured JSON body with a stable error code so
// clients can distinguish throttling from auth failures.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	kl := &keyedLimiters{
		rate:        rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		burst:       config.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			limiter := kl.get(key)
			if limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			// Peek at when the next token arrives without consuming it.
			reservation := limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()
			retryAfter := max(int(delay.Seconds()), 1)

			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", config.Window.String())

			log.Warn("rate limit exceeded", "key", key, "endpoint", r.URL.Path, "retry_after", retryAfter)

			if config.OnReject != nil {
				config.OnReject(w, r)
				return
			}
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":   "rate_limited",
				"message": "Too many requests. Please try again later.",
			})
		})
	}
}

// RateLimitByIP limits by client IP only.
func RateLimitByIP(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, IPKeyExtractor)
}
