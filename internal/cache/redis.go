package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/crestline-tours/service-booking/internal/config"
	"github.com/crestline-tours/service-booking/internal/domain/resource"
	"github.com/crestline-tours/service-booking/internal/domain/rules"
	"github.com/redis/go-redis/v9"
)

// RedisCache holds short-lived snapshots of the resource directory and
// rule store. Only read-side availability queries consume these; the
// commit path always re-reads the authoritative tables.
type RedisCache struct {
	client      *redis.Client
	snapshotTTL time.Duration
}

// NewRedisCache creates a RedisCache from the service configuration.
func NewRedisCache(cfg config.RedisConfig, snapshotTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:      redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		snapshotTTL: snapshotTTL,
	}
}

// Ping verifies connectivity at startup.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetResourceSnapshot returns the cached directory snapshot, or ok=false
// on a miss.
func (c *RedisCache) GetResourceSnapshot(ctx context.Context) (resource.Snapshot, bool, error) {
	data, err := c.client.Get(ctx, resourceSnapshotKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return resource.Snapshot{}, false, nil
		}
		return resource.Snapshot{}, false, err
	}

	var snap resource.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return resource.Snapshot{}, false, err
	}
	return snap, true, nil
}

// SetResourceSnapshot caches the directory snapshot for the configured TTL.
func (c *RedisCache) SetResourceSnapshot(ctx context.Context, snap resource.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, resourceSnapshotKey(), payload, c.snapshotTTL).Err()
}

// GetRuleSnapshot returns the cached rule snapshot, or ok=false on a miss.
func (c *RedisCache) GetRuleSnapshot(ctx context.Context) (rules.Snapshot, bool, error) {
	data, err := c.client.Get(ctx, ruleSnapshotKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return rules.Snapshot{}, false, nil
		}
		return rules.Snapshot{}, false, err
	}

	var snap rules.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return rules.Snapshot{}, false, err
	}
	return snap, true, nil
}

// SetRuleSnapshot caches the rule snapshot for the configured TTL.
func (c *RedisCache) SetRuleSnapshot(ctx context.Context, snap rules.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ruleSnapshotKey(), payload, c.snapshotTTL).Err()
}

// Invalidate drops both cached snapshots (admin rule changes).
func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, resourceSnapshotKey(), ruleSnapshotKey()).Err()
}

func resourceSnapshotKey() string {
	return "cache:snapshot:resources"
}

func ruleSnapshotKey() string {
	return "cache:snapshot:rules"
}
