package securestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
)

var _ Backend = (*RedisBackend)(nil)

// RedisBackend stores every record under prefix+key and tracks the known keys
// in a redis set, so listing never needs a KEYS scan.
type RedisBackend struct {
	redisClient *redis.Client
	prefix      string
	keysSetKey  string
}

func NewRedisBackend(redisClient *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{
		redisClient: redisClient,
		prefix:      prefix,
		keysSetKey:  strings.TrimSuffix(prefix, "||") + "-keys",
	}
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := b.redisClient.Get(ctx, b.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get [%s]: %w", key, err)
	}
	return value, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	if err := b.redisClient.Set(ctx, b.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set [%s]: %w", key, err)
	}
	if err := b.redisClient.SAdd(ctx, b.keysSetKey, key).Err(); err != nil {
		return fmt.Errorf("redis index key [%s]: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Remove(ctx context.Context, key string) error {
	if err := b.redisClient.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del [%s]: %w", key, err)
	}
	if err := b.redisClient.SRem(ctx, b.keysSetKey, key).Err(); err != nil {
		return fmt.Errorf("redis unindex key [%s]: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.redisClient.SMembers(ctx, b.keysSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
