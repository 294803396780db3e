package guardx

import (
	"log/slog"
	"sync"
)

// Registry holds named circuit breakers and rate limiters sharing default
// configurations. Instances are created lazily on first use and live for
// the process lifetime; there is no teardown because all state is in-memory.
//
// Construct one at startup and inject it into whatever needs guarding.
type Registry struct {
	breakerDefaults BreakerConfig
	limiterDefaults LimiterConfig
	logger          *slog.Logger

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	limiters map[string]*RateLimiter
}

// NewRegistry builds a registry with the given defaults. A nil logger
// falls back to slog.Default.
func NewRegistry(breaker BreakerConfig, limiter LimiterConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		breakerDefaults: breaker.withDefaults(),
		limiterDefaults: limiter.withDefaults(),
		logger:          logger,
		breakers:        make(map[string]*CircuitBreaker),
		limiters:        make(map[string]*RateLimiter),
	}
}

// CircuitBreaker returns the breaker for name, creating it with the
// registry defaults on first use.
func (r *Registry) CircuitBreaker(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	cfg := r.breakerDefaults
	base := cfg.OnStateChange
	log := r.logger
	cfg.OnStateChange = func(name string, from, to State) {
		log.Info("circuit breaker state change",
			"resource", name, "from", from.String(), "to", to.String())
		if base != nil {
			base(name, from, to)
		}
	}

	b := NewCircuitBreaker(name, cfg)
	r.breakers[name] = b
	r.logger.Info("circuit breaker registered", "resource", name)
	return b
}

// RateLimiter returns the limiter for name, creating it with the registry
// defaults on first use.
func (r *Registry) RateLimiter(name string) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[name]; ok {
		return l
	}

	l := NewRateLimiter(name, r.limiterDefaults)
	r.limiters[name] = l
	r.logger.Info("rate limiter registered", "resource", name)
	return l
}

// BreakerStates snapshots the current state of every registered breaker,
// keyed by resource name. Used by health and metrics surfaces.
func (r *Registry) BreakerStates() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}
