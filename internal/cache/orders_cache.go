package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// OrderCache is a derived read model for resolved order details. It is
// populated only from engine reads and never consulted as a source of truth:
// every miss or error falls through to the record store.
type OrderCache interface {
	Get(ctx context.Context, orderID string) (*domain.WorkOrder, bool)
	Set(ctx context.Context, order *domain.WorkOrder)
	Invalidate(ctx context.Context, orderID string)
}

const keyPrefix = "workorder:detail:"

// RedisOrderCache caches order details in Redis with a TTL.
type RedisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisOrderCache constructs the cache.
func NewRedisOrderCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisOrderCache {
	return &RedisOrderCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached order, or (nil, false) on miss or any cache failure.
func (c *RedisOrderCache) Get(ctx context.Context, orderID string) (*domain.WorkOrder, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, keyPrefix+orderID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("order cache get failed", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, false
	}
	var order domain.WorkOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		c.logger.Debug("order cache decode failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, false
	}
	return &order, true
}

// Set stores the resolved order. Failures are logged and ignored.
func (c *RedisOrderCache) Set(ctx context.Context, order *domain.WorkOrder) {
	if c == nil || c.client == nil || order == nil {
		return
	}
	raw, err := json.Marshal(order)
	if err != nil {
		c.logger.Debug("order cache encode failed", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, keyPrefix+order.ID, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("order cache set failed", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// Invalidate drops the cached entry after a mutation.
func (c *RedisOrderCache) Invalidate(ctx context.Context, orderID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+orderID).Err(); err != nil {
		c.logger.Debug("order cache invalidate failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
