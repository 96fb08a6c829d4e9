package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

// RedisSettingsRepository keeps console settings in Redis without expiry.
type RedisSettingsRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSettingsRepository constructs a Redis-backed settings repository.
func NewRedisSettingsRepository(client *redis.Client, logger *zap.Logger) *RedisSettingsRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSettingsRepository{client: client, logger: logger}
}

// Get returns the stored value or appErrors.ErrSettingsMiss.
func (r *RedisSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	if r.client == nil {
		return "", appErrors.ErrSettingsMiss
	}

	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", appErrors.ErrSettingsMiss
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}

	return raw, nil
}

// Set stores the value with no TTL.
func (r *RedisSettingsRepository) Set(ctx context.Context, key, value string) error {
	if r.client == nil {
		return nil
	}

	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// Close releases the underlying Redis connection if present.
func (r *RedisSettingsRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
