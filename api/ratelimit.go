/*
ratelimit.go - Request rate limiting for public endpoints

PURPOSE:
  Bounds how fast an anonymous client can hit the public quote, voucher,
  and booking endpoints. Admin routes are not limited.

  Limiter is the interface; two implementations exist:
    MemoryLimiter: in-process sliding window, the default
    RedisLimiter:  shared fixed window for multi-instance deployments
                   (ratelimit_redis.go)

  The middleware fails open: if the limiter itself errors (e.g. Redis is
  down), the request proceeds and the error is logged. A broken limiter
  must not take bookings down with it.

SEE ALSO:
  - server.go: where the middleware is mounted
*/
package api

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more request from client on endpoint is
// allowed right now. Implementations must be safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, client, endpoint string) (bool, error)
}

// =============================================================================
// IN-PROCESS SLIDING WINDOW
// =============================================================================

// MemoryLimiter allows at most limit requests per (client, endpoint) pair
// within a sliding window.
type MemoryLimiter struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:     limit,
		window:    window,
		hits:      make(map[string][]time.Time),
		lastSweep: time.Now(),
	}
}

// Allow records a hit and reports whether it fits in the window.
func (l *MemoryLimiter) Allow(ctx context.Context, client, endpoint string) (bool, error) {
	now := time.Now()
	key := client + "|" + endpoint

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	fresh := pruneBefore(l.hits[key], now.Add(-l.window))
	if len(fresh) >= l.limit {
		l.hits[key] = fresh
		return false, nil
	}
	l.hits[key] = append(fresh, now)
	return true, nil
}

// sweepLocked drops keys whose every hit has aged out, at most once per
// window, so idle clients don't accumulate forever.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	cutoff := now.Add(-l.window)
	for key, stamps := range l.hits {
		fresh := pruneBefore(stamps, cutoff)
		if len(fresh) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = fresh
		}
	}
	l.lastSweep = now
}

func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && stamps[i].Before(cutoff) {
		i++
	}
	return stamps[i:]
}
