// Package cache stores derived per-user read models in Redis.
// A nil *Cache or a Cache without a client is valid and caches nothing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"devpulse/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	DashboardTTL     = 5 * time.Minute
	GitHubProfileTTL = 10 * time.Minute
)

func DashboardKey(userID string) string     { return fmt.Sprintf("dashboard:metrics:%s", userID) }
func GitHubProfileKey(userID string) string { return fmt.Sprintf("github:profile:%s", userID) }

type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON decodes the cached value into dst and reports whether there was a hit.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	if !c.enabled() {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.ErrorLogger.Error("Redis get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.ErrorLogger.Error("Corrupt cache entry", zap.String("key", key), zap.Error(err))
		c.Delete(ctx, key)
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if !c.enabled() {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		logger.ErrorLogger.Error("Error encoding cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.SetEX(ctx, key, raw, ttl).Err(); err != nil {
		logger.ErrorLogger.Error("Redis set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.enabled() || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.ErrorLogger.Error("Redis delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
