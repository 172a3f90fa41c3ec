// Package cache holds the Redis-backed cache for payment requirements, so
// repeated mint attempts do not hammer the payment endpoint.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"moveregistry-backend/internal/metrics"
	"moveregistry-backend/internal/x402"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const cacheName = "payment_requirements"

// RequirementCache caches resolved payment requirements keyed by endpoint
// URL. A nil cache is valid and behaves as a permanent miss.
type RequirementCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRequirementCache creates a cache over the given Redis client.
func NewRequirementCache(rdb *redis.Client, ttl time.Duration) *RequirementCache {
	return &RequirementCache{rdb: rdb, ttl: ttl}
}

func key(endpoint string) string {
	return "moveregistry:x402:req:" + endpoint
}

// Get returns the cached requirement for an endpoint, or nil on miss.
func (c *RequirementCache) Get(ctx context.Context, endpoint string) *x402.PaymentRequirement {
	if c == nil || c.rdb == nil {
		return nil
	}

	data, err := c.rdb.Get(ctx, key(endpoint)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logrus.WithError(err).Warn("⚠️ Requirement cache read failed")
		}
		metrics.CacheMisses.WithLabelValues(cacheName).Inc()
		return nil
	}

	var req x402.PaymentRequirement
	if err := json.Unmarshal(data, &req); err != nil {
		metrics.CacheMisses.WithLabelValues(cacheName).Inc()
		return nil
	}

	metrics.CacheHits.WithLabelValues(cacheName).Inc()
	return &req
}

// Put stores a requirement. Failures are logged, never surfaced; the cache
// is an optimization only.
func (c *RequirementCache) Put(ctx context.Context, endpoint string, req *x402.PaymentRequirement) {
	if c == nil || c.rdb == nil || req == nil {
		return
	}

	data, err := json.Marshal(req)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key(endpoint), data, c.ttl).Err(); err != nil {
		logrus.WithError(err).Warn("⚠️ Requirement cache write failed")
	}
}

// Invalidate drops a cached requirement, used when verification rejects a
// proof built from it.
func (c *RequirementCache) Invalidate(ctx context.Context, endpoint string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key(endpoint)).Err(); err != nil {
		logrus.WithError(err).Warn("⚠️ Requirement cache invalidation failed")
	}
}

// NewRedisClient dials Redis and verifies connectivity.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}
