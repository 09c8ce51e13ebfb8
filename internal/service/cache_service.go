package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
)

type cacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService wraps the cache repository with hit/miss accounting so the
// metrics endpoint can expose cache effectiveness.
type CacheService struct {
	repo   cacheRepository
	logger *zap.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCacheService constructs a CacheService. The repository may be nil
// when caching is disabled, every Get then reports a miss.
func NewCacheService(repo cacheRepository, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, logger: logger}
}

// Get fetches a cached value into dest. Returns ErrCacheMiss when absent.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if s.repo == nil {
		s.misses.Add(1)
		return appErrors.ErrCacheMiss
	}

	err := s.repo.Get(ctx, key, dest)
	if err != nil {
		s.misses.Add(1)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return appErrors.ErrCacheMiss
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return appErrors.ErrCacheMiss
	}

	s.hits.Add(1)
	return nil
}

// Set stores a value under key for the given TTL. Failures are logged and
// swallowed, caching is best effort.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes every key matching the pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) {
	if s.repo == nil {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// Stats reports accumulated hit and miss counts.
func (s *CacheService) Stats() (hits, misses uint64) {
	return s.hits.Load(), s.misses.Load()
}
