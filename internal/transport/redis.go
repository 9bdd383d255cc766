package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ricesearch/rice-facets/internal/query"
)

// RedisCache stores results in Redis, shared across processes.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to url. Returns error if connection fails.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisCache{
		client: client,
		prefix: "rice:facets:",
		ttl:    ttl,
	}, nil
}

// Get loads and decodes a stored result.
func (c *RedisCache) Get(ctx context.Context, key string) (*query.Result, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading cached result: %w", err)
	}

	var res query.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("decoding cached result: %w", err)
	}
	return &res, true, nil
}

// Set encodes and stores res with the configured expiry.
func (c *RedisCache) Set(ctx context.Context, key string, res *query.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("storing cached result: %w", err)
	}
	return nil
}

// Clear removes every key under the cache prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("deleting %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
