// Package memory holds in-process stand-ins for the Redis cache types,
// used when the server runs standalone.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// RateLimiter is a token-bucket domain.RateLimiter: each key may burst to
// limit requests and refills at limit per window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	idle    time.Duration
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewRateLimiter creates a RateLimiter. Buckets unused for idle are
// dropped on the next sweep.
func NewRateLimiter(idle time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		idle:    idle,
	}
}

// Allow reports whether one more request under key fits the budget. A
// non-positive limit allows everything.
func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	if window <= 0 {
		return false, fmt.Errorf("memory: rate limit window %s: %w", window, domain.ErrInvalidArgument)
	}
	now := l.now()
	id := fmt.Sprintf("%s|%d|%s", key, limit, window)

	l.mu.Lock()
	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		l.buckets[id] = b
	}
	b.seen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

// Sweep drops idle buckets and returns how many were removed.
func (l *RateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idle)
	n := 0
	for id, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (l *RateLimiter) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			l.Sweep()
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
