package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultCacheTTL is how long a resolved transcript is reused.
const DefaultCacheTTL = 24 * time.Hour

const cacheKeyPrefix = "ytpipeline:transcript:"

// TieredCache keeps transcripts in memory and, when configured, in Redis.
// Reads check memory first and backfill it from Redis.
type TieredCache struct {
	mu  sync.Mutex
	mem map[string]cacheEntry
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewTieredCache creates a cache. An empty redisURL gives a memory-only
// cache; an unreachable Redis is an error.
func NewTieredCache(ctx context.Context, redisURL string, ttl time.Duration, log logrus.FieldLogger) (*TieredCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &TieredCache{mem: make(map[string]cacheEntry), ttl: ttl, now: time.Now}

	if redisURL == "" {
		return c, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", opts.Addr, err)
	}
	log.WithFields(logrus.Fields{"component": "transcript-cache", "addr": opts.Addr}).Info("redis connected")
	c.rdb = rdb
	return c, nil
}

func cacheKey(videoID string) string { return cacheKeyPrefix + videoID }

// Get implements Cache.
func (c *TieredCache) Get(ctx context.Context, videoID string) (*Transcript, bool, error) {
	key := cacheKey(videoID)

	c.mu.Lock()
	entry, ok := c.mem[key]
	if ok && !c.now().Before(entry.expiresAt) {
		delete(c.mem, key)
		ok = false
	}
	c.mu.Unlock()

	if ok {
		var t Transcript
		if err := json.Unmarshal(entry.data, &t); err == nil {
			return &t, true, nil
		}
	}

	if c.rdb == nil {
		return nil, false, nil
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, false, fmt.Errorf("decode cached transcript: %w", err)
	}
	c.store(key, data)
	return &t, true, nil
}

// Set implements Cache.
func (c *TieredCache) Set(ctx context.Context, videoID string, t *Transcript) error {
	if t == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	key := cacheKey(videoID)
	c.store(key, data)

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			return fmt.Errorf("redis set: %w", err)
		}
	}
	return nil
}

func (c *TieredCache) store(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[key] = cacheEntry{data: data, expiresAt: c.now().Add(c.ttl)}
}

// Close releases the Redis connection, if any.
func (c *TieredCache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
