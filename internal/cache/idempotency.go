package cache

import (
	"context"
	"encoding/json"
	"time"

	"payout-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const idempotencyPrefix = "idempotency:"

// redisClient is the slice of the go-redis API the cache uses. Narrowed so
// tests can substitute a fake via redis.NewStringResult/NewStatusResult.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// IdempotencyCache maps an idempotency key to the finished withdrawal
// receipt for a short retention window. It is a derived projection: the
// transaction store stays authoritative, so every backing-store error here
// degrades to "not cached" instead of failing the request path.
type IdempotencyCache struct {
	rdb    redisClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewIdempotencyCache(rdb redisClient, ttl time.Duration, logger *zap.Logger) *IdempotencyCache {
	return &IdempotencyCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached receipt for the key, or absent. An empty key never
// touches the backing store.
func (c *IdempotencyCache) Get(ctx context.Context, key string) (*domain.WithdrawalReceipt, bool) {
	if key == "" {
		c.logger.Warn("idempotency lookup with empty key")
		return nil, false
	}

	payload, err := c.rdb.Get(ctx, idempotencyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Error("idempotency cache read failed",
			zap.String("idempotency_key", key),
			zap.Error(err))
		return nil, false
	}

	var receipt domain.WithdrawalReceipt
	if err := json.Unmarshal(payload, &receipt); err != nil {
		c.logger.Error("idempotency cache entry is not a receipt",
			zap.String("idempotency_key", key),
			zap.Error(err))
		return nil, false
	}

	return &receipt, true
}

// Put stores the finished receipt under the key with the configured TTL.
// Best-effort: a write failure only risks a duplicate re-execution, so it is
// logged and swallowed.
func (c *IdempotencyCache) Put(ctx context.Context, key string, receipt *domain.WithdrawalReceipt) {
	if key == "" || receipt == nil {
		c.logger.Warn("skipping idempotency cache write",
			zap.String("idempotency_key", key),
			zap.Bool("has_receipt", receipt != nil))
		return
	}

	payload, err := json.Marshal(receipt)
	if err != nil {
		c.logger.Error("failed to marshal withdrawal receipt",
			zap.String("idempotency_key", key),
			zap.Error(err))
		return
	}

	if err := c.rdb.Set(ctx, idempotencyPrefix+key, payload, c.ttl).Err(); err != nil {
		c.logger.Error("idempotency cache write failed",
			zap.String("idempotency_key", key),
			zap.Error(err))
		return
	}

	c.logger.Info("cached withdrawal receipt",
		zap.String("idempotency_key", key),
		zap.String("status", string(receipt.Status)),
		zap.Duration("ttl", c.ttl))
}
