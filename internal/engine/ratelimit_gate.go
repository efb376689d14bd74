package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitGate pauses the next SELECT until a vendor-reported
// rate-limit cooldown elapses. Grounded on
// goadesign-goa-ai/features/model/middleware's AdaptiveRateLimiter,
// trimmed from its cluster-aware token-bucket down to the one thing
// the engine needs: "stop calling the vendor CLI until retryAfter has
// passed," reusing golang.org/x/time/rate as that limiter does.
type rateLimitGate struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

func newRateLimitGate() *rateLimitGate {
	return &rateLimitGate{limiter: rate.NewLimiter(rate.Inf, 1)}
}

// Cooldown blocks the gate for d starting now. A zero or negative d
// leaves the gate open (the rate-limit signal carried no usable hint).
func (g *rateLimitGate) Cooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	// A fresh limiter ticking over once every d, with its single burst
	// token consumed immediately: the next Wait call blocks for ~d
	// while the bucket refills.
	g.limiter = rate.NewLimiter(rate.Every(d), 1)
	g.limiter.AllowN(time.Now(), 1)
}

// Wait blocks until any active cooldown has elapsed, or ctx is
// cancelled first (reporting false in that case).
func (g *rateLimitGate) Wait(ctx context.Context) bool {
	g.mu.Lock()
	l := g.limiter
	g.mu.Unlock()
	if err := l.Wait(ctx); err != nil {
		return false
	}
	// The cooldown has elapsed: reopen the gate unless a newer Cooldown
	// already replaced the limiter.
	g.mu.Lock()
	if g.limiter == l {
		g.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	g.mu.Unlock()
	return true
}
