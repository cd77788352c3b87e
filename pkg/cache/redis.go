package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/edu-tenant-core/pkg/config"
)

// NewRedis returns a configured Redis client, or nil when Redis is disabled
// and settings are read straight from the database.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	return client, nil
}

// SettingsKey builds the cache key for a settings document at one scope.
func SettingsKey(scopeKey, key string) string {
	return fmt.Sprintf("settings:%s:%s", scopeKey, key)
}

// SettingsScopePattern matches every cached document of a scope.
func SettingsScopePattern(scopeKey string) string {
	return fmt.Sprintf("settings:%s:*", scopeKey)
}
