package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/codequest-edu/codequest-api/internal/models"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
)

const lowIssueRunThreshold = 20

type achievementRepository interface {
	InitCatalog(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string) ([]models.Achievement, error)
	Unlock(ctx context.Context, userID string, achievementType models.AchievementType, at time.Time) (bool, error)
	UpdateProgress(ctx context.Context, userID string, achievementType models.AchievementType, current int) error
	TotalPoints(ctx context.Context, userID string) (int, error)
	UnlockedCount(ctx context.Context, userID string) (int, error)
}

type achievementRunSource interface {
	CompletedByUser(ctx context.Context, userID string) ([]models.AnalysisRun, error)
}

type achievementMissionSource interface {
	AllByUser(ctx context.Context, userID string) ([]models.Mission, error)
}

// AchievementService evaluates the achievement catalog against a user's
// accumulated analysis history.
type AchievementService struct {
	repo     achievementRepository
	runs     achievementRunSource
	missions achievementMissionSource
	enabled  bool
	metrics  *MetricsService
	logger   *zap.Logger

	predicates map[models.AchievementType]func(models.UserStats) bool
	progress   map[models.AchievementType]func(models.UserStats) int
}

// NewAchievementService constructs an AchievementService. Metrics may be nil.
func NewAchievementService(repo achievementRepository, runs achievementRunSource, missions achievementMissionSource, enabled bool, metrics *MetricsService, logger *zap.Logger) *AchievementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AchievementService{
		repo:       repo,
		runs:       runs,
		missions:   missions,
		enabled:    enabled,
		metrics:    metrics,
		logger:     logger,
		predicates: achievementPredicates(),
		progress:   achievementProgress(),
	}
}

// achievementPredicates maps each catalog entry to its unlock condition.
// The legendary meta achievement is evaluated separately from the
// unlocked count.
func achievementPredicates() map[models.AchievementType]func(models.UserStats) bool {
	return map[models.AchievementType]func(models.UserStats) bool{
		models.AchievementFirstAnalysis: func(s models.UserStats) bool { return s.CompletedRuns >= 1 },
		models.AchievementBugHunter:     func(s models.UserStats) bool { return s.TotalDetected >= 50 },
		models.AchievementSecurityExpert: func(s models.UserStats) bool {
			return s.CriticalFixed >= 20
		},
		models.AchievementPerfectionist: func(s models.UserStats) bool { return s.PerfectRuns >= 1 },
		models.AchievementPersistent:    func(s models.UserStats) bool { return s.LongestFixedStreak >= 10 },
		models.AchievementCodeMaster:    func(s models.UserStats) bool { return s.ImprovingIterations >= 5 },
		models.AchievementVulnerabilitySlayer: func(s models.UserStats) bool {
			return s.TotalFixed >= 100
		},
		models.AchievementQualityGuardian: func(s models.UserStats) bool { return s.LongestNoHighStreak >= 3 },
		models.AchievementSpeedAnalyzer:   func(s models.UserStats) bool { return s.CompletedRuns >= 15 },
		models.AchievementMissionMaster: func(s models.UserStats) bool {
			return s.TotalMissions > 0 && s.FixedMissions+s.SkippedMissions == s.TotalMissions
		},
		models.AchievementCriticalFixer: func(s models.UserStats) bool { return s.CriticalFixed >= 50 },
		models.AchievementConsistencyChampion: func(s models.UserStats) bool {
			return s.CorrectionRate >= 0.8
		},
		models.AchievementLearningChampion: func(s models.UserStats) bool {
			return s.TotalMissions > 0 && s.FixedMissions == s.TotalMissions
		},
		models.AchievementEliteAnalyst: func(s models.UserStats) bool {
			return s.CompletedRuns >= 20 && s.CorrectionRate >= 0.7
		},
		models.AchievementOptimizationMaster: func(s models.UserStats) bool {
			return s.CompletedRuns >= 20 && s.ImprovingIterations >= 15
		},
		models.AchievementEfficientDeveloper: func(s models.UserStats) bool { return s.LowIssueRuns >= 10 },
	}
}

// achievementProgress maps each catalog entry to the quantity counted
// toward its target. Repositories cap the value at the target, so the
// measures return raw counts.
func achievementProgress() map[models.AchievementType]func(models.UserStats) int {
	boolToInt := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	return map[models.AchievementType]func(models.UserStats) int{
		models.AchievementFirstAnalysis:       func(s models.UserStats) int { return s.CompletedRuns },
		models.AchievementBugHunter:           func(s models.UserStats) int { return s.TotalDetected },
		models.AchievementSecurityExpert:      func(s models.UserStats) int { return s.CriticalFixed },
		models.AchievementPerfectionist:       func(s models.UserStats) int { return s.PerfectRuns },
		models.AchievementPersistent:          func(s models.UserStats) int { return s.LongestFixedStreak },
		models.AchievementCodeMaster:          func(s models.UserStats) int { return s.ImprovingIterations },
		models.AchievementVulnerabilitySlayer: func(s models.UserStats) int { return s.TotalFixed },
		models.AchievementQualityGuardian:     func(s models.UserStats) int { return s.LongestNoHighStreak },
		models.AchievementSpeedAnalyzer:       func(s models.UserStats) int { return s.CompletedRuns },
		models.AchievementMissionMaster: func(s models.UserStats) int {
			return boolToInt(s.TotalMissions > 0 && s.FixedMissions+s.SkippedMissions == s.TotalMissions)
		},
		models.AchievementCriticalFixer: func(s models.UserStats) int { return s.CriticalFixed },
		models.AchievementConsistencyChampion: func(s models.UserStats) int {
			return int(s.CorrectionRate * 100)
		},
		models.AchievementLearningChampion: func(s models.UserStats) int {
			return boolToInt(s.TotalMissions > 0 && s.FixedMissions == s.TotalMissions)
		},
		models.AchievementEliteAnalyst: func(s models.UserStats) int {
			if s.CorrectionRate < 0.7 {
				return 0
			}
			return s.CompletedRuns
		},
		models.AchievementOptimizationMaster: func(s models.UserStats) int { return s.ImprovingIterations },
		models.AchievementEfficientDeveloper: func(s models.UserStats) int { return s.LowIssueRuns },
	}
}

// BuildUserStats folds completed runs and missions, both in chronological
// order, into the aggregate the predicates are evaluated against.
func BuildUserStats(runs []models.AnalysisRun, missions []models.Mission) models.UserStats {
	stats := models.UserStats{
		TotalRuns:     len(runs),
		CompletedRuns: len(runs),
	}

	noHighStreak := 0
	prevTotal := -1
	for _, run := range runs {
		stats.TotalDetected += run.TotalIssues
		stats.CriticalDetected += run.HighIssues

		if run.TotalIssues == 0 {
			stats.PerfectRuns++
		}
		if run.TotalIssues < lowIssueRunThreshold {
			stats.LowIssueRuns++
		}

		if prevTotal >= 0 && run.TotalIssues < prevTotal {
			stats.ImprovingIterations++
		}
		prevTotal = run.TotalIssues

		if run.HighIssues == 0 {
			noHighStreak++
			if noHighStreak > stats.LongestNoHighStreak {
				stats.LongestNoHighStreak = noHighStreak
			}
		} else {
			noHighStreak = 0
		}
	}

	fixedStreak := 0
	for _, mission := range missions {
		stats.TotalMissions++
		switch mission.Status {
		case models.MissionStatusFixed:
			stats.FixedMissions++
			if mission.Severity == models.SeverityHigh {
				stats.CriticalFixed++
			}
			fixedStreak++
			if fixedStreak > stats.LongestFixedStreak {
				stats.LongestFixedStreak = fixedStreak
			}
		case models.MissionStatusSkipped:
			stats.SkippedMissions++
			fixedStreak = 0
		default:
			fixedStreak = 0
		}
	}
	stats.TotalFixed = stats.FixedMissions

	// Correction rate counts fixes against every detected issue, not
	// just the ones that became missions (the mission cap would inflate
	// the rate otherwise).
	if stats.TotalDetected > 0 {
		stats.CorrectionRate = float64(stats.FixedMissions) / float64(stats.TotalDetected)
	}

	return stats
}

// Evaluate re-checks every locked achievement for the user and unlocks
// the ones whose condition now holds. It is called after every completed
// analysis and mission transition; failures are logged, never surfaced.
func (s *AchievementService) Evaluate(ctx context.Context, userID string) {
	if !s.enabled || userID == "" {
		return
	}

	stats, err := s.UserStats(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to build user stats", zap.String("user_id", userID), zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, def := range models.AchievementCatalog() {
		predicate, ok := s.predicates[def.Type]
		if !ok {
			continue
		}
		if predicate(stats) {
			s.unlock(ctx, userID, def.Type, now)
			continue
		}
		if measure, ok := s.progress[def.Type]; ok {
			s.recordProgress(ctx, userID, def.Type, measure(stats))
		}
	}

	// The meta achievement unlocks once every other entry is earned.
	count, err := s.repo.UnlockedCount(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to count unlocked achievements", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if count >= len(models.AchievementCatalog())-1 {
		s.unlock(ctx, userID, models.AchievementLegendaryDeveloper, now)
	} else {
		s.recordProgress(ctx, userID, models.AchievementLegendaryDeveloper, count)
	}
}

// UserStats loads the user's run and mission history and folds it into
// the predicate aggregate.
func (s *AchievementService) UserStats(ctx context.Context, userID string) (models.UserStats, error) {
	runs, err := s.runs.CompletedByUser(ctx, userID)
	if err != nil {
		return models.UserStats{}, err
	}
	missions, err := s.missions.AllByUser(ctx, userID)
	if err != nil {
		return models.UserStats{}, err
	}
	return BuildUserStats(runs, missions), nil
}

// ListByUser returns the user's full catalog with unlock state and the
// sum of earned points.
func (s *AchievementService) ListByUser(ctx context.Context, userID string) ([]models.Achievement, int, error) {
	if !s.enabled {
		return nil, 0, appErrors.Clone(appErrors.ErrFeatureDisabled, "achievements are disabled")
	}

	achievements, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list achievements")
	}

	points, err := s.repo.TotalPoints(ctx, userID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum points")
	}

	return achievements, points, nil
}

// SeedCatalog ensures the user has one row per catalog entry.
func (s *AchievementService) SeedCatalog(ctx context.Context, userID string) error {
	return s.repo.InitCatalog(ctx, userID)
}

func (s *AchievementService) recordProgress(ctx context.Context, userID string, achievementType models.AchievementType, current int) {
	if err := s.repo.UpdateProgress(ctx, userID, achievementType, current); err != nil {
		s.logger.Warn("failed to update achievement progress",
			zap.String("user_id", userID),
			zap.String("type", string(achievementType)),
			zap.Error(err))
	}
}

func (s *AchievementService) unlock(ctx context.Context, userID string, achievementType models.AchievementType, at time.Time) {
	newlyUnlocked, err := s.repo.Unlock(ctx, userID, achievementType, at)
	if err != nil {
		s.logger.Warn("failed to unlock achievement",
			zap.String("user_id", userID),
			zap.String("type", string(achievementType)),
			zap.Error(err))
		return
	}
	if newlyUnlocked {
		s.logger.Info("achievement unlocked",
			zap.String("user_id", userID),
			zap.String("type", string(achievementType)))
		if s.metrics != nil {
			s.metrics.ObserveAchievementUnlocked()
		}
	}
}
