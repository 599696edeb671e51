package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"voyalty/internal/model"
)

// CatalogCache fronts reward catalog reads with Redis. It is a read-through
// cache only: the redemption cap is always enforced against the underlying
// ledger, never against cached counters. Entries carry a short TTL so the
// displayed counters converge quickly.
type CatalogCache struct {
	rdb    *redis.Client
	ledger Ledger
	ttl    time.Duration
}

func NewCatalogCache(rdb *redis.Client, ledger Ledger, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CatalogCache{rdb: rdb, ledger: ledger, ttl: ttl}
}

func rewardKey(id string) string { return "reward:" + id }

const rewardListKey = "rewards:all"

// GetReward returns the cached entry, falling back to the ledger on a miss.
func (c *CatalogCache) GetReward(ctx context.Context, rewardID string) (*model.RewardCatalogEntry, error) {
	raw, err := c.rdb.Get(ctx, rewardKey(rewardID)).Bytes()
	if err == nil {
		var rw model.RewardCatalogEntry
		if err := json.Unmarshal(raw, &rw); err == nil {
			return &rw, nil
		}
		// Corrupt cache entry: fall through to the ledger.
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("catalog cache read failed, falling back to ledger", "reward_id", rewardID, "error", err)
	}

	rw, err := c.ledger.GetReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, rewardKey(rewardID), rw)
	return rw, nil
}

// ListRewards returns the cached catalog, falling back to the ledger.
func (c *CatalogCache) ListRewards(ctx context.Context) ([]model.RewardCatalogEntry, error) {
	raw, err := c.rdb.Get(ctx, rewardListKey).Bytes()
	if err == nil {
		var rewards []model.RewardCatalogEntry
		if err := json.Unmarshal(raw, &rewards); err == nil {
			return rewards, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("catalog cache read failed, falling back to ledger", "error", err)
	}

	rewards, err := c.ledger.ListRewards(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, rewardListKey, rewards)
	return rewards, nil
}

// Invalidate drops the cached entry for a reward after its counter moved.
func (c *CatalogCache) Invalidate(ctx context.Context, rewardID string) {
	if err := c.rdb.Del(ctx, rewardKey(rewardID), rewardListKey).Err(); err != nil {
		slog.Warn("catalog cache invalidation failed", "reward_id", rewardID, "error", err)
	}
}

func (c *CatalogCache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("catalog cache write failed", "key", key, "error", err)
	}
}

// Warm preloads the full catalog into the cache.
func (c *CatalogCache) Warm(ctx context.Context) error {
	rewards, err := c.ledger.ListRewards(ctx)
	if err != nil {
		return fmt.Errorf("warm catalog cache: %w", err)
	}
	c.set(ctx, rewardListKey, rewards)
	for i := range rewards {
		c.set(ctx, rewardKey(rewards[i].ID), &rewards[i])
	}
	return nil
}
