package chunk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chunkgame/server/internal/terrain"
)

// CacheTTL bounds staleness when an invalidation event is lost.
const CacheTTL = 3600 * time.Second

// Cache is the shared advisory chunk cache. The store stays authoritative;
// writers delete cache entries rather than updating them.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb, ttl: CacheTTL}
}

func cacheKey(cx, cy int) string {
	return fmt.Sprintf("chunk:%d:%d", cx, cy)
}

// Get loads the cached chunk at (cx, cy), or ErrNotFound on a miss.
func (c *Cache) Get(ctx context.Context, cx, cy int) (*terrain.Chunk, error) {
	data, err := c.rdb.Get(ctx, cacheKey(cx, cy)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache %s: %w", cacheKey(cx, cy), err)
	}
	var chunk terrain.Chunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("failed to decode cached chunk %s: %w", cacheKey(cx, cy), err)
	}
	return &chunk, nil
}

// Set caches the chunk with the standard TTL.
func (c *Cache) Set(ctx context.Context, chunk *terrain.Chunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to encode chunk %s: %w", chunk.Key(), err)
	}
	if err := c.rdb.Set(ctx, cacheKey(chunk.CX, chunk.CY), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache %s: %w", chunk.Key(), err)
	}
	return nil
}

// Delete evicts the cached chunk at (cx, cy).
func (c *Cache) Delete(ctx context.Context, cx, cy int) error {
	if err := c.rdb.Del(ctx, cacheKey(cx, cy)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache %s: %w", cacheKey(cx, cy), err)
	}
	return nil
}

// Ping reports cache reachability.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PurgeDebugKeys removes chunk and player keys on a debug-mode boot.
func PurgeDebugKeys(ctx context.Context, rdb *redis.Client) error {
	for _, pattern := range []string{"*chunk*", "*player*"} {
		iter := rdb.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := rdb.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to purge key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan %s keys: %w", pattern, err)
		}
	}
	return nil
}
