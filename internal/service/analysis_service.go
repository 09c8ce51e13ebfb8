package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codequest-edu/codequest-api/internal/analyzer"
	"github.com/codequest-edu/codequest-api/internal/models"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
)

type analysisRepository interface {
	Create(ctx context.Context, run *models.AnalysisRun) error
	FindByID(ctx context.Context, id string) (*models.AnalysisRun, error)
	Update(ctx context.Context, run *models.AnalysisRun) error
	UpdateStatus(ctx context.Context, id string, status models.AnalysisStatus, errorMessage *string) error
	List(ctx context.Context, filter models.AnalysisFilter) ([]models.AnalysisRun, int, error)
	LatestCompletedByUser(ctx context.Context, userID string) (*models.AnalysisRun, error)
	Delete(ctx context.Context, id string) error
	UserSummary(ctx context.Context, userID string) (*models.UserSummary, error)
}

type workspacePreparer interface {
	Prepare(ctx context.Context, runID, filename string, archive io.Reader, size int64) (string, *models.FileStats, error)
	Cleanup(runID string)
}

type toolExecutor interface {
	Execute(ctx context.Context, workspaceDir string, stats models.FileStats) []models.RawToolResult
}

type missionEngine interface {
	GenerateMissions(ctx context.Context, run *models.AnalysisRun) ([]models.Mission, error)
	ReconcileMissions(ctx context.Context, runID string, findings []models.NormalizedFinding) (int, error)
	DeleteByRun(ctx context.Context, runID string) error
}

type achievementEvaluator interface {
	Evaluate(ctx context.Context, userID string)
}

type rankingInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// AnalysisService runs the full submission pipeline: extract the
// uploaded archive, execute the applicable tools, normalize and score
// the findings, and either merge with the user's previous submission of
// the same project or start a fresh mission set.
type AnalysisService struct {
	repo         analysisRepository
	workspace    workspacePreparer
	executor     toolExecutor
	missions     missionEngine
	achievements achievementEvaluator
	rankings     rankingInvalidator
	metrics      *MetricsService
	logger       *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewAnalysisService constructs an AnalysisService. Achievements,
// rankings and metrics may be nil.
func NewAnalysisService(repo analysisRepository, workspace workspacePreparer, executor toolExecutor, missions missionEngine, achievements achievementEvaluator, rankings rankingInvalidator, metrics *MetricsService, logger *zap.Logger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{
		repo:         repo,
		workspace:    workspace,
		executor:     executor,
		missions:     missions,
		achievements: achievements,
		rankings:     rankings,
		metrics:      metrics,
		logger:       logger,
		active:       make(map[string]struct{}),
	}
}

// Submit runs the analysis pipeline for an uploaded archive. One run per
// user at a time; concurrent submissions are rejected.
func (s *AnalysisService) Submit(ctx context.Context, userID *string, projectName, filename string, archive io.Reader, size int64) (*models.AnalysisRun, error) {
	if userID != nil {
		if !s.acquire(*userID) {
			return nil, appErrors.Clone(appErrors.ErrAnalysisRunning, "")
		}
		defer s.release(*userID)
	}

	runID := uuid.NewString()
	started := time.Now()

	// The run row exists before any pipeline work so that extraction
	// failures surface as a failed run, not a vanished submission.
	run := &models.AnalysisRun{
		ID:          runID,
		UserID:      userID,
		ProjectName: projectName,
		Status:      models.AnalysisStatusPending,
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create analysis run")
	}

	if err := s.repo.UpdateStatus(ctx, run.ID, models.AnalysisStatusProcessing, nil); err != nil {
		return nil, s.fail(ctx, run.ID, started, err, "failed to start analysis")
	}
	run.Status = models.AnalysisStatusProcessing

	workspaceDir, stats, err := s.workspace.Prepare(ctx, runID, filename, archive, size)
	if err != nil {
		return nil, s.fail(ctx, run.ID, started, err, "failed to prepare workspace")
	}
	defer s.workspace.Cleanup(runID)
	run.FileStats = stats

	results := s.executor.Execute(ctx, workspaceDir, *stats)
	if s.metrics != nil {
		for _, result := range results {
			s.metrics.ObserveToolRun(result.Tool, result.Success)
		}
	}

	findings, summary := analyzer.Normalize(results)
	metrics := analyzer.ComputeMetrics(findings)

	run.Findings = findings
	run.ToolSummary = &summary
	run.HighIssues = metrics.HighIssues
	run.MediumIssues = metrics.MediumIssues
	run.LowIssues = metrics.LowIssues
	run.TotalIssues = metrics.TotalIssues
	run.QualityScore = metrics.QualityScore
	run.Status = models.AnalysisStatusCompleted
	now := time.Now().UTC()
	run.CompletedAt = &now

	result, err := s.finalize(ctx, run)
	if err != nil {
		return nil, s.fail(ctx, run.ID, started, err, "failed to finalize analysis")
	}

	if s.metrics != nil {
		s.metrics.ObserveAnalysis(models.AnalysisStatusCompleted, time.Since(started))
	}
	if userID != nil && s.achievements != nil {
		s.achievements.Evaluate(ctx, *userID)
	}
	if s.rankings != nil {
		s.rankings.InvalidateCache(ctx)
	}

	return result, nil
}

// finalize decides whether this submission continues an earlier run of
// the same project. A re-submission keeps the original run and its
// missions: findings are replaced, open missions whose finding
// disappeared are closed, and the fresh row is discarded.
func (s *AnalysisService) finalize(ctx context.Context, run *models.AnalysisRun) (*models.AnalysisRun, error) {
	prior := s.priorRun(ctx, run)
	if prior == nil {
		if err := s.repo.Update(ctx, run); err != nil {
			return nil, err
		}
		if _, err := s.missions.GenerateMissions(ctx, run); err != nil {
			return nil, err
		}
		return run, nil
	}

	prior.FileStats = run.FileStats
	prior.Findings = run.Findings
	prior.ToolSummary = run.ToolSummary
	prior.HighIssues = run.HighIssues
	prior.MediumIssues = run.MediumIssues
	prior.LowIssues = run.LowIssues
	prior.TotalIssues = run.TotalIssues
	prior.QualityScore = run.QualityScore
	prior.CompletedAt = run.CompletedAt
	prior.Status = models.AnalysisStatusCompleted

	if err := s.repo.Update(ctx, prior); err != nil {
		return nil, err
	}

	if _, err := s.missions.ReconcileMissions(ctx, prior.ID, run.Findings); err != nil {
		return nil, err
	}

	if err := s.repo.Delete(ctx, run.ID); err != nil {
		s.logger.Warn("failed to discard superseded run", zap.String("run_id", run.ID), zap.Error(err))
	}

	return prior, nil
}

func (s *AnalysisService) priorRun(ctx context.Context, run *models.AnalysisRun) *models.AnalysisRun {
	if run.UserID == nil || run.FileStats == nil {
		return nil
	}

	prior, err := s.repo.LatestCompletedByUser(ctx, *run.UserID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load previous run", zap.Error(err))
		}
		return nil
	}
	if prior.ID == run.ID || prior.FileStats == nil {
		return nil
	}
	if !analyzer.SameProject(prior.FileStats, run.FileStats) {
		return nil
	}
	return prior
}

// Get returns a run, enforcing ownership for non-admins.
func (s *AnalysisService) Get(ctx context.Context, runID, userID string, isAdmin bool) (*models.AnalysisRun, error) {
	run, err := s.repo.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "analysis run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load analysis run")
	}
	if !isAdmin && (run.UserID == nil || *run.UserID != userID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "analysis run belongs to another user")
	}
	return run, nil
}

// List returns runs per filter plus the total count.
func (s *AnalysisService) List(ctx context.Context, filter models.AnalysisFilter) ([]models.AnalysisRun, int, error) {
	runs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list analysis runs")
	}
	return runs, total, nil
}

// Delete removes a run together with its missions.
func (s *AnalysisService) Delete(ctx context.Context, runID, userID string, isAdmin bool) error {
	if _, err := s.Get(ctx, runID, userID, isAdmin); err != nil {
		return err
	}
	if err := s.missions.DeleteByRun(ctx, runID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete missions")
	}
	if err := s.repo.Delete(ctx, runID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete analysis run")
	}
	return nil
}

// UserSummary aggregates the user's completed runs.
func (s *AnalysisService) UserSummary(ctx context.Context, userID string) (*models.UserSummary, error) {
	summary, err := s.repo.UserSummary(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user summary")
	}
	return summary, nil
}

// fail marks the run failed and returns the error the caller should
// surface. Typed domain errors (oversized upload, bad archive) keep
// their status; anything else is wrapped as internal.
func (s *AnalysisService) fail(ctx context.Context, runID string, started time.Time, cause error, message string) error {
	errMsg := cause.Error()
	if err := s.repo.UpdateStatus(ctx, runID, models.AnalysisStatusFailed, &errMsg); err != nil {
		s.logger.Error("failed to mark run as failed", zap.String("run_id", runID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.ObserveAnalysis(models.AnalysisStatusFailed, time.Since(started))
	}

	var appErr *appErrors.Error
	if errors.As(cause, &appErr) {
		return appErr
	}
	return appErrors.Wrap(cause, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *AnalysisService) acquire(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[userID]; busy {
		return false
	}
	s.active[userID] = struct{}{}
	return true
}

func (s *AnalysisService) release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, userID)
}
