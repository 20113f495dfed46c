package echoapi

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	limiterAPI  = "api"
	limiterAuth = "auth"

	purgeInterval = time.Minute
	bucketIdle    = 10 * time.Minute
)

type (
	bucket struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	// rateLimiter keeps a token bucket per key: the user id when authenticated, the client IP otherwise.
	rateLimiter struct {
		name    string
		limit   rate.Limit
		burst   int
		metrics Metrics
		now     func() time.Time

		mu      sync.Mutex
		buckets map[string]*bucket
	}
)

// newRateLimiter returns nil when rps is not positive; a nil rateLimiter lets everything through.
func newRateLimiter(name string, rps float64, burst int, metrics Metrics) *rateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		name:    name,
		limit:   rate.Limit(rps),
		burst:   burst,
		metrics: metrics,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (rl *rateLimiter) allow(key string) bool {
	if rl == nil {
		return true
	}
	now := rl.now()

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// purge drops the buckets not used for idle and returns how many were dropped.
func (rl *rateLimiter) purge(idle time.Duration) int {
	if rl == nil {
		return 0
	}
	cutoff := rl.now().Add(-idle)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	var n int
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

func (rl *rateLimiter) size() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// run purges idle buckets until ctx is done.
func (rl *rateLimiter) run(ctx context.Context) {
	if rl == nil {
		return
	}
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.purge(bucketIdle)
		}
	}
}

func (rl *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if rl == nil {
				return next(ctx)
			}
			key := ctx.RealIP()
			if claims, err := getContextClaims(ctx); err == nil && claims.Subject != "" {
				key = "user:" + claims.Subject
			}
			if !rl.allow(key) {
				if rl.metrics != nil {
					rl.metrics.RateLimited(rl.name)
				}
				return errRateLimited
			}
			return next(ctx)
		}
	}
}
