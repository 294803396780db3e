package guardx

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when no permit becomes available within the
// limiter's timeout.
var ErrRateLimited = errors.New("guardx: rate limit exceeded")

// LimiterConfig tunes a RateLimiter. Zero fields fall back to the defaults:
// 100 permits per 1s window, callers wait at most 100ms for the next refill.
type LimiterConfig struct {
	LimitForPeriod  int
	RefreshPeriod   time.Duration
	TimeoutDuration time.Duration
}

// DefaultLimiterConfig returns the shared defaults.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		LimitForPeriod:  100,
		RefreshPeriod:   time.Second,
		TimeoutDuration: 100 * time.Millisecond,
	}
}

func (c LimiterConfig) withDefaults() LimiterConfig {
	def := DefaultLimiterConfig()
	if c.LimitForPeriod <= 0 {
		c.LimitForPeriod = def.LimitForPeriod
	}
	if c.RefreshPeriod <= 0 {
		c.RefreshPeriod = def.RefreshPeriod
	}
	if c.TimeoutDuration <= 0 {
		c.TimeoutDuration = def.TimeoutDuration
	}
	return c
}

// RateLimiter is a fixed-window admission gate for one named resource.
// Each refresh period resets the remaining count to LimitForPeriod; unused
// permits never carry over into the next window.
type RateLimiter struct {
	name  string
	cfg   LimiterConfig
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	remaining   int
	windowStart time.Time
}

// NewRateLimiter builds a limiter with a full current window.
func NewRateLimiter(name string, cfg LimiterConfig) *RateLimiter {
	cfg = cfg.withDefaults()
	l := &RateLimiter{
		name:  name,
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepCtx,
	}
	l.windowStart = l.now()
	l.remaining = cfg.LimitForPeriod
	return l
}

// Name returns the resource name this limiter guards.
func (l *RateLimiter) Name() string { return l.name }

// Acquire takes one permit, returning immediately when the current window
// has capacity. When exhausted it waits for the next refill, but never
// longer than TimeoutDuration; past that it fails with ErrRateLimited.
// Context cancellation aborts the wait.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.refill()
	if l.remaining > 0 {
		l.remaining--
		l.mu.Unlock()
		return nil
	}
	wait := l.windowStart.Add(l.cfg.RefreshPeriod).Sub(l.now())
	l.mu.Unlock()

	if wait > l.cfg.TimeoutDuration {
		return ErrRateLimited
	}
	if wait > 0 {
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	if l.remaining > 0 {
		l.remaining--
		return nil
	}
	// Another caller drained the fresh window while we slept.
	return ErrRateLimited
}

// refill advances the window to cover now and resets the permit count when
// at least one full period has elapsed. Caller holds the lock.
func (l *RateLimiter) refill() {
	elapsed := l.now().Sub(l.windowStart)
	if elapsed < l.cfg.RefreshPeriod {
		return
	}
	cycles := elapsed / l.cfg.RefreshPeriod
	l.windowStart = l.windowStart.Add(cycles * l.cfg.RefreshPeriod)
	l.remaining = l.cfg.LimitForPeriod
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
