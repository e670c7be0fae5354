package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/bernarddwumfour/estore-backend/internal/util"
)

const stockSnapshotKey = "stock:snapshot"

// Client wraps Redis for read caching and the storefront stock snapshot.
// Every method tolerates a nil Client and Redis outages: caching is an
// optimization, never a dependency, so failures are logged and swallowed.
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewClient creates a new Redis client and verifies connectivity
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, logger: util.GetLogger()}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// GetJSON loads a cached JSON value into dest. The bool reports a cache hit.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.logger.Warn("Redis get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A stale or corrupt entry is treated as a miss and dropped.
		c.rdb.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON caches a JSON-encoded value with a TTL.
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Redis cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("Redis set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes cached entries.
func (c *Client) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Redis delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// SetStock writes one SKU's stock level into the snapshot hash.
func (c *Client) SetStock(ctx context.Context, sku string, stock int) {
	if c == nil {
		return
	}
	if err := c.rdb.HSet(ctx, stockSnapshotKey, sku, stock).Err(); err != nil {
		c.logger.Warn("Redis stock write failed", zap.String("sku", sku), zap.Error(err))
	}
}

// SetStockSnapshot replaces the whole stock snapshot hash in one pipeline.
func (c *Client) SetStockSnapshot(ctx context.Context, stock map[string]int) error {
	if c == nil {
		return nil
	}
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, stockSnapshotKey)
	for sku, qty := range stock {
		pipe.HSet(ctx, stockSnapshotKey, sku, qty)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetStock reads one SKU's stock level from the snapshot. The bool reports
// whether the SKU is present.
func (c *Client) GetStock(ctx context.Context, sku string) (int, bool, error) {
	if c == nil {
		return 0, false, nil
	}
	val, err := c.rdb.HGet(ctx, stockSnapshotKey, sku).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	stock, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("malformed stock value for %s: %q", sku, val)
	}
	return stock, true, nil
}
