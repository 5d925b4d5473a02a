package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CallGuard enforces a minimum spacing between calls sharing a key.
//
// Each key gets its own [rate.Limiter] with a burst of one. State lives in this process only;
// replicas behind a load balancer each keep their own spacing.
type CallGuard struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewCallGuard creates a guard allowing one call per interval per key.
func NewCallGuard(interval time.Duration) *CallGuard {
	return &CallGuard{
		interval: interval,
		limiters: map[string]*rate.Limiter{},
		now:      time.Now,
	}
}

// WithClock replaces the guard's clock, for tests.
func (g *CallGuard) WithClock(now func() time.Time) *CallGuard {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
	return g
}

// Allow reports whether a call for key may proceed now; otherwise it returns how long to wait.
func (g *CallGuard) Allow(key string) (bool, time.Duration) {
	if g == nil || g.interval <= 0 {
		return true, 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	limiter, ok := g.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(g.interval), 1)
		g.limiters[key] = limiter
	}

	now := g.now()
	reservation := limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}
