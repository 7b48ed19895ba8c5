package server

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultClientIdleTTL is how long an idle client's limiter is kept.
const DefaultClientIdleTTL = 10 * time.Minute

// RateLimiter enforces a token-bucket frame rate per client.
type RateLimiter struct {
	mu sync.Mutex

	limit rate.Limit
	burst int

	clients   map[string]*clientUsage
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// clientUsage tracks one client's bucket.
type clientUsage struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitError reports a refused request and when to retry.
type RateLimitError struct {
	Limit      float64
	Burst      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %.2f frames/s (burst %d), retry after %v",
		e.Limit, e.Burst, e.RetryAfter.Round(time.Millisecond))
}

// NewRateLimiter allows perSecond frames per client with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   max(burst, 1),
		clients: make(map[string]*clientUsage),
		idleTTL: DefaultClientIdleTTL,
		now:     time.Now,
	}
}

// CheckRateLimit takes one token for clientID or returns a *RateLimitError.
func (rl *RateLimiter) CheckRateLimit(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &clientUsage{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientID] = usage
	}
	usage.lastSeen = now

	r := usage.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &RateLimitError{Limit: float64(rl.limit), Burst: rl.burst, RetryAfter: delay}
	}
	return nil
}

// sweep drops clients idle for longer than idleTTL, at most once per TTL.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.idleTTL {
		return
	}
	rl.lastSweep = now
	for id, usage := range rl.clients {
		if now.Sub(usage.lastSeen) >= rl.idleTTL {
			delete(rl.clients, id)
		}
	}
}

// ClientCount returns the number of tracked clients.
func (rl *RateLimiter) ClientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
