package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Lease is a held distributed lock.
type Lease interface {
	Extend(ctx context.Context, ttl time.Duration) error
	Release()
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// SignalBus publishes committed events to consumers outside the process:
// live on a pub/sub channel and durably on a capped stream.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// TeamCache holds the latest ledger view for readers outside the process.
type TeamCache interface {
	SetTeams(ctx context.Context, seq uint64, teams []Team) error
	Teams(ctx context.Context) ([]Team, uint64, error)
}
