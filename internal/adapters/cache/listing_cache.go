package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autobizz/autobet/internal/domain/auctions"
)

// Short TTL so a missed invalidation self-heals quickly.
const listingTTL = 30 * time.Second

// RedisListingCache caches the default public auction listing in Redis. Cache
// failures are logged and treated as misses; the database remains the source
// of truth.
type RedisListingCache struct {
	client *redis.Client
	logger *slog.Logger
	keys   []string
}

func NewRedisListingCache(client *redis.Client, logger *slog.Logger, keys ...string) *RedisListingCache {
	return &RedisListingCache{client: client, logger: logger, keys: keys}
}

func (c *RedisListingCache) GetListing(ctx context.Context, key string) ([]*auctions.Auction, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("listing cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var listing []*auctions.Auction
	if err := json.Unmarshal(data, &listing); err != nil {
		c.logger.Warn("listing cache entry corrupt, dropping", "key", key, "error", err)
		c.client.Del(ctx, key)
		return nil, false
	}
	return listing, true
}

func (c *RedisListingCache) SetListing(ctx context.Context, key string, listing []*auctions.Auction) {
	data, err := json.Marshal(listing)
	if err != nil {
		c.logger.Warn("listing cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, listingTTL).Err(); err != nil {
		c.logger.Warn("listing cache write failed", "key", key, "error", err)
	}
}

func (c *RedisListingCache) Invalidate(ctx context.Context) {
	if len(c.keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, c.keys...).Err(); err != nil {
		c.logger.Warn("listing cache invalidation failed", "error", err)
	}
}
