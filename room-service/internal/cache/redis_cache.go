package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-live/room-service/internal/config"
)

var ErrCacheMiss = errors.New("cache miss")

type RedisMovieCache struct {
	client *redis.Client
	prefix string
}

func NewRedisMovieCache(cfg config.RedisConfig, prefix string) (*RedisMovieCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisMovieCacheFromClient(client, prefix), nil
}

// NewRedisMovieCacheFromClient wraps an existing client.
func NewRedisMovieCacheFromClient(client *redis.Client, prefix string) *RedisMovieCache {
	return &RedisMovieCache{
		client: client,
		prefix: prefix,
	}
}

func (c *RedisMovieCache) BuildKeyByID(movieID string) string {
	return fmt.Sprintf("%s:movie:%s", c.prefix, movieID)
}

func (c *RedisMovieCache) Get(ctx context.Context, key string) (*MovieCacheResult, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var result MovieCacheResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return &result, nil
}

func (c *RedisMovieCache) Set(ctx context.Context, key string, result *MovieCacheResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

func (c *RedisMovieCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}

	return nil
}

func (c *RedisMovieCache) Close() error {
	return c.client.Close()
}

// NoopMovieCache is used when Redis is not configured. Every Get misses.
type NoopMovieCache struct{}

func (NoopMovieCache) Get(ctx context.Context, key string) (*MovieCacheResult, error) {
	return nil, ErrCacheMiss
}

func (NoopMovieCache) Set(ctx context.Context, key string, result *MovieCacheResult, ttl time.Duration) error {
	return nil
}

func (NoopMovieCache) Delete(ctx context.Context, keys ...string) error { return nil }

func (NoopMovieCache) BuildKeyByID(movieID string) string { return "movie:" + movieID }

func (NoopMovieCache) Close() error { return nil }
