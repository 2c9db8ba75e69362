// Package cache keeps the serialised list of all cafes in Redis so repeated
// list requests skip the database. Writers invalidate the entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coffeewifi/config"
	"coffeewifi/model"

	"github.com/redis/go-redis/v9"
)

const allKey = "cafes:all"

// CafeCache is nil-safe: every method on a nil *CafeCache is a miss or no-op.
type CafeCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to Redis. It returns (nil, nil) when no address is configured.
func New(ctx context.Context, cfg config.Redis) (*CafeCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &CafeCache{rdb: rdb, ttl: cfg.TTL}, nil
}

// All returns the cached list and whether it was present.
func (c *CafeCache) All(ctx context.Context) ([]model.Cafe, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	data, err := c.rdb.Get(ctx, allKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache: %w", err)
	}
	var cafes []model.Cafe
	if err := json.Unmarshal(data, &cafes); err != nil {
		return nil, false, fmt.Errorf("decode cache: %w", err)
	}
	return cafes, true, nil
}

func (c *CafeCache) SetAll(ctx context.Context, cafes []model.Cafe) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(cafes)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	return c.rdb.Set(ctx, allKey, data, c.ttl).Err()
}

func (c *CafeCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, allKey).Err()
}

func (c *CafeCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
