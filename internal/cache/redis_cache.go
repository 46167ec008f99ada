package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CutzuDev/itec2025/internal/config"
	"github.com/CutzuDev/itec2025/internal/domain"
)

type RedisProfileCache struct {
	client *redis.Client
	prefix string
}

func NewRedisProfileCache(cfg config.RedisConfig, prefix string) (*RedisProfileCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisProfileCacheFromClient(client, prefix), nil
}

// NewRedisProfileCacheFromClient wraps an existing client. Close closes it.
func NewRedisProfileCacheFromClient(client *redis.Client, prefix string) *RedisProfileCache {
	return &RedisProfileCache{client: client, prefix: prefix}
}

func (c *RedisProfileCache) key(userID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, userID)
}

func (c *RedisProfileCache) Get(ctx context.Context, userID string) (*domain.SenderProfile, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var profile domain.SenderProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return &profile, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, profile *domain.SenderProfile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, c.key(profile.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisProfileCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

func (c *RedisProfileCache) Close() error {
	return c.client.Close()
}
