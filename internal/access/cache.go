package access

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache holds team access decisions keyed by user, team and role. A cache
// failure never denies access: the guard falls back to the oracle.
type Cache interface {
	Get(ctx context.Context, key Key) (allowed, found bool)
	Set(ctx context.Context, key Key, allowed bool)
	InvalidateUser(ctx context.Context, userID string) error
}

// Key identifies one cached decision.
type Key struct {
	UserID string
	TeamID string
	Role   string
}

func (k Key) String() string {
	return k.UserID + ":" + k.TeamID + ":" + k.Role
}

// LRUCache is an in-process cache bounded by size and TTL.
type LRUCache struct {
	lru *expirable.LRU[string, bool]
}

// NewLRUCache returns a cache holding at most size entries for ttl each.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[string, bool](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, key Key) (bool, bool) {
	return c.lru.Get(key.String())
}

func (c *LRUCache) Set(_ context.Context, key Key, allowed bool) {
	c.lru.Add(key.String(), allowed)
}

// InvalidateUser drops every decision cached for userID.
func (c *LRUCache) InvalidateUser(_ context.Context, userID string) error {
	prefix := userID + ":"
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
	return nil
}

// Len reports the number of live entries.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

const redisPrefix = "taskyard:access:"

// RedisCache shares decisions between service replicas.
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisCache returns a cache storing entries in client for ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisCache{redis: client, ttl: ttl}
}

func redisKey(key Key) string {
	return redisPrefix + key.String()
}

func (c *RedisCache) Get(ctx context.Context, key Key) (bool, bool) {
	v, err := c.redis.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, redisKey(key)).Err()
		}
		return false, false
	}
	switch v {
	case "1":
		return true, true
	case "0":
		return false, true
	default:
		_ = c.redis.Del(ctx, redisKey(key)).Err()
		return false, false
	}
}

func (c *RedisCache) Set(ctx context.Context, key Key, allowed bool) {
	if c.ttl == 0 {
		return
	}
	v := "0"
	if allowed {
		v = "1"
	}
	_ = c.redis.Set(ctx, redisKey(key), v, c.ttl).Err()
}

// InvalidateUser deletes every key for userID.
func (c *RedisCache) InvalidateUser(ctx context.Context, userID string) error {
	iter := c.redis.Scan(ctx, 0, redisPrefix+userID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}
