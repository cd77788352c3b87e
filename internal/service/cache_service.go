package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
)

// CacheRepository abstracts storage for cached settings documents.
type CacheRepository interface {
	GetDocument(ctx context.Context, key string) (models.Document, error)
	SetDocument(ctx context.Context, key string, doc models.Document, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheService wraps the settings cache with metrics. Cache failures are
// logged and reported as misses; they never fail a settings operation.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get returns the cached document and whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string) (models.Document, bool) {
	if !s.Enabled() {
		return nil, false
	}
	start := time.Now()
	doc, err := s.repo.GetDocument(ctx, key)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("settings cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return doc, true
}

// Set stores doc under key with the configured TTL.
func (s *CacheService) Set(ctx context.Context, key string, doc models.Document) {
	if !s.Enabled() {
		return
	}
	start := time.Now()
	err := s.repo.SetDocument(ctx, key, doc, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("settings cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops cached keys.
func (s *CacheService) Invalidate(ctx context.Context, keys ...string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("settings cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
