package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
)

const keyPrefix = "analysis:"

// RedisCache stores ChangeAnalysis JSON under analysis:<change id>.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and checks the connection.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(client, ttl), nil
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

var _ analysis.Cache = (*RedisCache)(nil)

func key(changeID int64) string {
	return keyPrefix + strconv.FormatInt(changeID, 10)
}

func (c *RedisCache) Get(ctx context.Context, changeID int64) (*analysis.ChangeAnalysis, bool, error) {
	data, err := c.client.Get(ctx, key(changeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var ca analysis.ChangeAnalysis
	if err := json.Unmarshal(data, &ca); err != nil {
		return nil, false, fmt.Errorf("decode cached analysis: %w", err)
	}
	return &ca, true, nil
}

func (c *RedisCache) Set(ctx context.Context, ca *analysis.ChangeAnalysis) error {
	if ca == nil || ca.Record == nil {
		return errors.New("cache: analysis without record")
	}
	data, err := json.Marshal(ca)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	return c.client.Set(ctx, key(ca.Record.ID), data, c.ttl).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
