package guardx

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("guardx: circuit open")

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a CircuitBreaker. Zero fields fall back to the
// defaults below, which match the upstream service contract: trip at a 50%
// failure rate once 5 calls have been seen, treat calls over 2s as failures,
// stay open for 10s, then probe with 3 half-open calls.
type BreakerConfig struct {
	// FailureRateThreshold is a percentage in (0, 100].
	FailureRateThreshold float64

	// SlowCallDurationThreshold marks calls at or over this duration as
	// failures for bookkeeping even when they succeed.
	SlowCallDurationThreshold time.Duration

	// WaitDurationInOpenState is how long the breaker rejects calls before
	// probing again.
	WaitDurationInOpenState time.Duration

	// PermittedCallsInHalfOpen is the half-open probe sample size.
	PermittedCallsInHalfOpen int

	// MinimumNumberOfCalls gates rate evaluation while closed; below it the
	// breaker never trips.
	MinimumNumberOfCalls int

	// SlidingWindowSize bounds the rolling outcome window while closed.
	SlidingWindowSize int

	// OnStateChange, when set, is invoked (under the breaker lock) on every
	// transition. Keep it cheap.
	OnStateChange func(name string, from, to State)
}

// DefaultBreakerConfig returns the shared defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureRateThreshold:      50,
		SlowCallDurationThreshold: 2 * time.Second,
		WaitDurationInOpenState:   10 * time.Second,
		PermittedCallsInHalfOpen:  3,
		MinimumNumberOfCalls:      5,
		SlidingWindowSize:         100,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	def := DefaultBreakerConfig()
	if c.FailureRateThreshold <= 0 {
		c.FailureRateThreshold = def.FailureRateThreshold
	}
	if c.SlowCallDurationThreshold <= 0 {
		c.SlowCallDurationThreshold = def.SlowCallDurationThreshold
	}
	if c.WaitDurationInOpenState <= 0 {
		c.WaitDurationInOpenState = def.WaitDurationInOpenState
	}
	if c.PermittedCallsInHalfOpen <= 0 {
		c.PermittedCallsInHalfOpen = def.PermittedCallsInHalfOpen
	}
	if c.MinimumNumberOfCalls <= 0 {
		c.MinimumNumberOfCalls = def.MinimumNumberOfCalls
	}
	if c.SlidingWindowSize < c.MinimumNumberOfCalls {
		c.SlidingWindowSize = max(def.SlidingWindowSize, c.MinimumNumberOfCalls)
	}
	return c
}

// CircuitBreaker is an explicit CLOSED/OPEN/HALF_OPEN state machine guarding
// one named resource. All bookkeeping is O(1) in-memory work serialized by a
// mutex, so admission checks never park the caller.
//
// Usage: call Allow before dispatching; on ErrCircuitOpen do not dispatch.
// After the call completes, report the outcome with RecordSuccess or
// RecordFailure, passing the observed duration.
type CircuitBreaker struct {
	name string
	cfg  BreakerConfig
	now  func() time.Time

	mu    sync.Mutex
	state State

	// Rolling outcome window, used while closed. Ring buffer of failure
	// flags, oldest entry evicted once full.
	window   []bool
	head     int
	count    int
	failures int

	openedAt time.Time

	// Half-open probe accounting.
	halfOpenPermits  int
	halfOpenCalls    int
	halfOpenFailures int
}

// NewCircuitBreaker builds a closed breaker for the named resource.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	cfg = cfg.withDefaults()
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		window: make([]bool, cfg.SlidingWindowSize),
	}
}

// Name returns the resource name this breaker guards.
func (b *CircuitBreaker) Name() string { return b.name }

// SlowCallThreshold returns the duration past which a call counts as a
// failure. Callers use it to bound dispatch time.
func (b *CircuitBreaker) SlowCallThreshold() time.Duration {
	return b.cfg.SlowCallDurationThreshold
}

// State returns the current state. Open breakers whose wait has expired
// still report open until the next Allow performs the transition.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may be dispatched right now. While open it
// fails with ErrCircuitOpen until the wait duration elapses, at which point
// the breaker moves to half-open and admits up to the configured probe
// sample. In half-open, calls beyond the sample are rejected.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.WaitDurationInOpenState {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.halfOpenPermits--
		return nil
	case StateHalfOpen:
		if b.halfOpenPermits <= 0 {
			return ErrCircuitOpen
		}
		b.halfOpenPermits--
		return nil
	}
	return nil
}

// RecordSuccess reports a completed call. Calls at or over the slow-call
// threshold still count as failures.
func (b *CircuitBreaker) RecordSuccess(d time.Duration) {
	b.record(d >= b.cfg.SlowCallDurationThreshold)
}

// RecordFailure reports a failed call.
func (b *CircuitBreaker) RecordFailure(d time.Duration) {
	b.record(true)
}

func (b *CircuitBreaker) record(failure bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.push(failure)
		if b.count >= b.cfg.MinimumNumberOfCalls && b.failureRate() >= b.cfg.FailureRateThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.halfOpenCalls++
		if failure {
			b.halfOpenFailures++
		}
		if b.halfOpenCalls >= b.cfg.PermittedCallsInHalfOpen {
			rate := float64(b.halfOpenFailures) / float64(b.halfOpenCalls) * 100
			if rate >= b.cfg.FailureRateThreshold {
				b.transition(StateOpen)
			} else {
				b.transition(StateClosed)
			}
		}
	case StateOpen:
		// A call that was in flight when the breaker tripped; its outcome
		// no longer affects the decision.
	}
}

// push appends an outcome to the rolling window, evicting the oldest entry
// once the window is full.
func (b *CircuitBreaker) push(failure bool) {
	if b.count == len(b.window) {
		if b.window[b.head] {
			b.failures--
		}
	} else {
		b.count++
	}
	b.window[b.head] = failure
	if failure {
		b.failures++
	}
	b.head = (b.head + 1) % len(b.window)
}

func (b *CircuitBreaker) failureRate() float64 {
	if b.count == 0 {
		return 0
	}
	return float64(b.failures) / float64(b.count) * 100
}

// transition moves to the target state and resets the bookkeeping the new
// state relies on. Caller holds the lock.
func (b *CircuitBreaker) transition(to State) {
	from := b.state
	b.state = to

	switch to {
	case StateOpen:
		b.openedAt = b.now()
	case StateHalfOpen:
		b.halfOpenPermits = b.cfg.PermittedCallsInHalfOpen
		b.halfOpenCalls = 0
		b.halfOpenFailures = 0
	case StateClosed:
		b.head = 0
		b.count = 0
		b.failures = 0
	}

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
