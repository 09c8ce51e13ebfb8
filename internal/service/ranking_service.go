package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codequest-edu/codequest-api/internal/models"
	"github.com/codequest-edu/codequest-api/pkg/config"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
)

const (
	rankingCachePattern = "rankings:*"
	rankingScanLimit    = 100
)

type rankingSource interface {
	TopByAverageScore(ctx context.Context, limit int) ([]models.RankingEntry, error)
	GlobalStats(ctx context.Context) (*models.GlobalRankingStats, error)
	UserSummary(ctx context.Context, userID string) (*models.UserSummary, error)
}

type rankingPointsSource interface {
	TotalPoints(ctx context.Context, userID string) (int, error)
}

type rankingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string)
}

// RankingService serves the quality leaderboard with a Redis cache in
// front of the aggregate queries.
type RankingService struct {
	source rankingSource
	points rankingPointsSource
	cache  rankingCache
	config config.RankingsConfig
	logger *zap.Logger
}

// NewRankingService constructs a RankingService. Cache and points may be
// nil, the service then always hits the database.
func NewRankingService(source rankingSource, points rankingPointsSource, cache rankingCache, cfg config.RankingsConfig, logger *zap.Logger) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopLimit <= 0 {
		cfg.TopLimit = 20
	}
	return &RankingService{source: source, points: points, cache: cache, config: cfg, logger: logger}
}

// Top returns the leaderboard limited to the requested size.
func (s *RankingService) Top(ctx context.Context, limit int) ([]models.RankingEntry, error) {
	if !s.config.Enabled {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "rankings are disabled")
	}
	if limit <= 0 || limit > s.config.TopLimit {
		limit = s.config.TopLimit
	}

	key := fmt.Sprintf("rankings:top:%d", limit)
	if s.cache != nil {
		var cached []models.RankingEntry
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	entries, err := s.source.TopByAverageScore(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rankings")
	}
	s.attachPoints(ctx, entries)

	if s.cache != nil {
		s.cache.Set(ctx, key, entries, s.config.CacheTTL)
	}
	return entries, nil
}

// UserRank locates the user's position within the leaderboard. Users
// outside the scanned window get rank 0 with their personal aggregates.
func (s *RankingService) UserRank(ctx context.Context, userID string) (*models.UserRank, error) {
	if !s.config.Enabled {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "rankings are disabled")
	}

	entries, err := s.source.TopByAverageScore(ctx, rankingScanLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rankings")
	}

	for _, entry := range entries {
		if entry.UserID == userID {
			return &models.UserRank{
				UserID:       userID,
				Rank:         entry.Rank,
				TotalRanked:  len(entries),
				AverageScore: entry.AverageScore,
				RunCount:     entry.RunCount,
			}, nil
		}
	}

	summary, err := s.source.UserSummary(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user summary")
	}
	return &models.UserRank{
		UserID:       userID,
		Rank:         0,
		TotalRanked:  len(entries),
		AverageScore: summary.AverageScore,
		RunCount:     summary.TotalRuns,
	}, nil
}

// GlobalStats returns platform-wide leaderboard aggregates, annotated
// with the most active and best scoring users.
func (s *RankingService) GlobalStats(ctx context.Context) (*models.GlobalRankingStats, error) {
	if !s.config.Enabled {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "rankings are disabled")
	}

	const key = "rankings:global"
	if s.cache != nil {
		var cached models.GlobalRankingStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := s.source.GlobalStats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load global stats")
	}

	entries, err := s.source.TopByAverageScore(ctx, rankingScanLimit)
	if err == nil && len(entries) > 0 {
		best := entries[0]
		stats.BestQuality = &best

		mostActive := entries[0]
		for _, entry := range entries[1:] {
			if entry.RunCount > mostActive.RunCount {
				mostActive = entry
			}
		}
		stats.MostActive = &mostActive
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, stats, s.config.CacheTTL)
	}
	return stats, nil
}

// InvalidateCache drops every cached leaderboard payload. Called after
// an analysis completes.
func (s *RankingService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, rankingCachePattern)
}

func (s *RankingService) attachPoints(ctx context.Context, entries []models.RankingEntry) {
	if s.points == nil {
		return
	}
	for i := range entries {
		points, err := s.points.TotalPoints(ctx, entries[i].UserID)
		if err != nil {
			s.logger.Warn("failed to load achievement points", zap.String("user_id", entries[i].UserID), zap.Error(err))
			continue
		}
		entries[i].TotalPoints = points
	}
}
