package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
)

// CacheRepository stores settings documents in Redis. A nil client behaves as
// a permanently empty cache.
type CacheRepository struct {
	client *redis.Client
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client) *CacheRepository {
	return &CacheRepository{client: client}
}

// GetDocument returns the cached document, or ErrCacheMiss.
func (r *CacheRepository) GetDocument(ctx context.Context, key string) (models.Document, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	doc := models.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode cached document %s: %w", key, err)
	}
	return doc, nil
}

// SetDocument caches doc under key for ttl.
func (r *CacheRepository) SetDocument(ctx context.Context, key string, doc models.Document, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode cached document %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete drops the given keys.
func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if r.client == nil || len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}
