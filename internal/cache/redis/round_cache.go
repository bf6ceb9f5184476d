package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veyselaydin/gamehouse/internal/domain"
)

// snapshotKey holds the JSON-serialized live lobby snapshot. The TTL keeps a
// dead clock from serving a frozen countdown forever.
const (
	snapshotKey = "round:active"
	snapshotTTL = 10 * time.Second
)

// RoundCache implements domain.RoundCache over a single Redis key that the
// clock rewrites every tick.
type RoundCache struct {
	rdb *redis.Client
}

// NewRoundCache creates a RoundCache backed by the given Client.
func NewRoundCache(c *Client) *RoundCache {
	return &RoundCache{rdb: c.Underlying()}
}

// SetSnapshot stores the current lobby snapshot.
func (rc *RoundCache) SetSnapshot(ctx context.Context, snap domain.RoundSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}
	if err := rc.rdb.Set(ctx, snapshotKey, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the cached lobby snapshot, or domain.ErrNotFound when
// the key is missing or expired.
func (rc *RoundCache) GetSnapshot(ctx context.Context) (domain.RoundSnapshot, error) {
	data, err := rc.rdb.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RoundSnapshot{}, domain.ErrNotFound
		}
		return domain.RoundSnapshot{}, fmt.Errorf("redis: get snapshot: %w", err)
	}
	var snap domain.RoundSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.RoundSnapshot{}, fmt.Errorf("redis: unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Invalidate drops the cached snapshot.
func (rc *RoundCache) Invalidate(ctx context.Context) error {
	if err := rc.rdb.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate snapshot: %w", err)
	}
	return nil
}

var _ domain.RoundCache = (*RoundCache)(nil)
