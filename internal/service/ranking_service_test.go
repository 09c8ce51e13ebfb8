package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codequest-edu/codequest-api/internal/models"
	"github.com/codequest-edu/codequest-api/pkg/config"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
)

type stubRankingSource struct {
	entries   []models.RankingEntry
	stats     *models.GlobalRankingStats
	summary   *models.UserSummary
	topCalls  int
	statCalls int
}

func (s *stubRankingSource) TopByAverageScore(ctx context.Context, limit int) ([]models.RankingEntry, error) {
	s.topCalls++
	if limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func (s *stubRankingSource) GlobalStats(ctx context.Context) (*models.GlobalRankingStats, error) {
	s.statCalls++
	return s.stats, nil
}

func (s *stubRankingSource) UserSummary(ctx context.Context, userID string) (*models.UserSummary, error) {
	return s.summary, nil
}

type stubPointsSource struct {
	points map[string]int
}

func (s *stubPointsSource) TotalPoints(ctx context.Context, userID string) (int, error) {
	return s.points[userID], nil
}

type memoryCache struct {
	store map[string]interface{}
}

func newMemoryCache() *memoryCache {
	return &memoryCache{store: map[string]interface{}{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	value, ok := c.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *[]models.RankingEntry:
		*d = value.([]models.RankingEntry)
	case *models.GlobalRankingStats:
		*d = *value.(*models.GlobalRankingStats)
	}
	return nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	c.store[key] = value
}

func (c *memoryCache) Invalidate(ctx context.Context, pattern string) {
	c.store = map[string]interface{}{}
}

func rankingEntries() []models.RankingEntry {
	return []models.RankingEntry{
		{Rank: 1, UserID: "u1", FullName: "Alice", RunCount: 5, AverageScore: 92.5},
		{Rank: 2, UserID: "u2", FullName: "Bob", RunCount: 9, AverageScore: 85.0},
	}
}

func TestTopAttachesAchievementPoints(t *testing.T) {
	source := &stubRankingSource{entries: rankingEntries()}
	points := &stubPointsSource{points: map[string]int{"u1": 120, "u2": 45}}
	svc := NewRankingService(source, points, nil, config.RankingsConfig{Enabled: true, TopLimit: 20}, zap.NewNop())

	entries, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 120, entries[0].TotalPoints)
	assert.Equal(t, 45, entries[1].TotalPoints)
}

func TestTopServesFromCache(t *testing.T) {
	source := &stubRankingSource{entries: rankingEntries()}
	cache := newMemoryCache()
	svc := NewRankingService(source, nil, cache, config.RankingsConfig{Enabled: true, TopLimit: 20, CacheTTL: time.Minute}, zap.NewNop())

	_, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)
	_, err = svc.Top(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, source.topCalls)
}

func TestTopRejectedWhenDisabled(t *testing.T) {
	svc := NewRankingService(&stubRankingSource{}, nil, nil, config.RankingsConfig{Enabled: false}, zap.NewNop())

	_, err := svc.Top(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFeatureDisabled.Code, appErrors.FromError(err).Code)
}

func TestUserRankFoundInLeaderboard(t *testing.T) {
	source := &stubRankingSource{entries: rankingEntries()}
	svc := NewRankingService(source, nil, nil, config.RankingsConfig{Enabled: true}, zap.NewNop())

	rank, err := svc.UserRank(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, 2, rank.Rank)
	assert.Equal(t, 2, rank.TotalRanked)
	assert.Equal(t, 85.0, rank.AverageScore)
}

func TestUserRankFallsBackToSummary(t *testing.T) {
	source := &stubRankingSource{
		entries: rankingEntries(),
		summary: &models.UserSummary{UserID: "u9", TotalRuns: 1, AverageScore: 40.0},
	}
	svc := NewRankingService(source, nil, nil, config.RankingsConfig{Enabled: true}, zap.NewNop())

	rank, err := svc.UserRank(context.Background(), "u9")
	require.NoError(t, err)
	assert.Equal(t, 0, rank.Rank)
	assert.Equal(t, 40.0, rank.AverageScore)
	assert.Equal(t, 1, rank.RunCount)
}

func TestGlobalStatsAnnotatesLeaders(t *testing.T) {
	source := &stubRankingSource{
		entries: rankingEntries(),
		stats:   &models.GlobalRankingStats{TotalUsers: 2, TotalRuns: 14, AverageScore: 88.0},
	}
	svc := NewRankingService(source, nil, nil, config.RankingsConfig{Enabled: true}, zap.NewNop())

	stats, err := svc.GlobalStats(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stats.BestQuality)
	require.NotNil(t, stats.MostActive)
	assert.Equal(t, "u1", stats.BestQuality.UserID)
	assert.Equal(t, "u2", stats.MostActive.UserID)
}

func TestInvalidateCacheDropsEntries(t *testing.T) {
	source := &stubRankingSource{entries: rankingEntries()}
	cache := newMemoryCache()
	svc := NewRankingService(source, nil, cache, config.RankingsConfig{Enabled: true, TopLimit: 20, CacheTTL: time.Minute}, zap.NewNop())

	_, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)
	svc.InvalidateCache(context.Background())
	_, err = svc.Top(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 2, source.topCalls)
}
