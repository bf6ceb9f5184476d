package domain

import (
	"context"
	"time"
)

// RoundCache provides fast access to the live lobby state served each tick.
type RoundCache interface {
	SetSnapshot(ctx context.Context, snap RoundSnapshot) error
	GetSnapshot(ctx context.Context) (RoundSnapshot, error)
	Invalidate(ctx context.Context) error
}

// LockManager provides distributed locking. The round clock holds the
// lobby lock for its whole run so only one process advances rounds.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub for phase transitions and settlement events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
