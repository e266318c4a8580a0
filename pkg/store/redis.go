package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisBackend.
const DefaultRedisPrefix = "swcache:"

// RedisBackend keeps each store in a hash and the store names in a sorted
// set scored by creation time.
type RedisBackend struct {
	redis  *redis.Client
	prefix string
}

// NewRedisBackend creates a Backend on top of an existing Redis client.
func NewRedisBackend(redisClient *redis.Client, prefix string) *RedisBackend {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{redis: redisClient, prefix: prefix}
}

func (b *RedisBackend) indexKey() string {
	return b.prefix + "stores"
}

func (b *RedisBackend) storeKey(name string) string {
	return b.prefix + "store:" + name
}

func (b *RedisBackend) CreateStore(ctx context.Context, name string) error {
	err := b.redis.ZAddNX(ctx, b.indexKey(), redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: name,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}

func (b *RedisBackend) HasStore(ctx context.Context, name string) (bool, error) {
	err := b.redis.ZScore(ctx, b.indexKey(), name).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis zscore: %w", err)
	}
	return true, nil
}

func (b *RedisBackend) ListStores(ctx context.Context) ([]string, error) {
	names, err := b.redis.ZRange(ctx, b.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	return names, nil
}

func (b *RedisBackend) DeleteStore(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.storeKey(name))
		removed = pipe.ZRem(ctx, b.indexKey(), name)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis delete store: %w", err)
	}
	return removed.Val() > 0, nil
}

func (b *RedisBackend) GetEntry(ctx context.Context, name, field string) ([]byte, error) {
	data, err := b.redis.HGet(ctx, b.storeKey(name), field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	return data, nil
}

// PutEntry writes the entry and registers the store in one transaction so a
// store never holds entries without being listed.
func (b *RedisBackend) PutEntry(ctx context.Context, name, field string, data []byte) error {
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, b.indexKey(), redis.Z{
			Score:  float64(time.Now().UnixNano()),
			Member: name,
		})
		pipe.HSet(ctx, b.storeKey(name), field, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (b *RedisBackend) DeleteEntry(ctx context.Context, name, field string) (bool, error) {
	n, err := b.redis.HDel(ctx, b.storeKey(name), field).Result()
	if err != nil {
		return false, fmt.Errorf("redis hdel: %w", err)
	}
	return n > 0, nil
}

// Close closes the underlying Redis client.
func (b *RedisBackend) Close() error {
	return b.redis.Close()
}
