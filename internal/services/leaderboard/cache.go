package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/models"
	"github.com/evn/shiftbot/internal/services/events"
)

const (
	cacheKeyPrefix  = "leaderboard:"
	cacheVersionKey = "leaderboard:version"
	cacheTTL        = 5 * time.Minute
)

// RedisCache keeps computed leaderboards in Redis and drops them whenever a
// shift closes or the data is reset. Entries live under the current value of
// an INCR'd version key; invalidating bumps the version and leaves older
// entries to expire.
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func NewRedisCache(client *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{redis: client, ttl: cacheTTL, log: logger.Named("leaderboard_cache")}
}

func versionedKey(gen int64, key string) string {
	return fmt.Sprintf("%s%d:%s", cacheKeyPrefix, gen, key)
}

func (c *RedisCache) version(ctx context.Context) (int64, error) {
	v, err := c.redis.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]models.LeaderboardEntry, int64, bool) {
	gen, err := c.version(ctx)
	if err != nil {
		c.log.Warn("cache version read failed", zap.Error(err))
		return nil, -1, false
	}
	data, err := c.redis.Get(ctx, versionedKey(gen, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, gen, false
	}
	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.log.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, gen, false
	}
	return entries, gen, true
}

// Set writes under generation gen. If the version has moved on since, the
// entry lands under a key no reader looks up and simply expires.
func (c *RedisCache) Set(ctx context.Context, key string, gen int64, entries []models.LeaderboardEntry) {
	if gen < 0 {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, versionedKey(gen, key), data, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.redis.Incr(ctx, cacheVersionKey).Err(); err != nil {
		c.log.Warn("cache invalidation failed", zap.Error(err))
	}
}

// Publish invalidates on events that change totals. Starting a shift does not.
func (c *RedisCache) Publish(ctx context.Context, e events.Event) {
	switch e.Type {
	case events.ShiftEnded, events.ShiftsReset:
		c.Invalidate(ctx)
	}
}

// MemoryCache is an in-process Cache used when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	gen     int64
	entries map[string][]models.LeaderboardEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]models.LeaderboardEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]models.LeaderboardEntry, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, c.gen, ok
}

func (c *MemoryCache) Set(_ context.Context, key string, gen int64, entries []models.LeaderboardEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.entries[key] = entries
}

func (c *MemoryCache) Invalidate(context.Context) {
	c.mu.Lock()
	c.gen++
	clear(c.entries)
	c.mu.Unlock()
}

func (c *MemoryCache) Publish(ctx context.Context, e events.Event) {
	switch e.Type {
	case events.ShiftEnded, events.ShiftsReset:
		c.Invalidate(ctx)
	}
}
