package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codequest-edu/codequest-api/internal/models"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
)

type stubAnalysisRepo struct {
	mu        sync.Mutex
	created   []*models.AnalysisRun
	updated   []*models.AnalysisRun
	deleted   []string
	statuses  []models.AnalysisStatus
	lastError *string
	latest    *models.AnalysisRun

	findByIDFn func(ctx context.Context, id string) (*models.AnalysisRun, error)
	listFn     func(ctx context.Context, filter models.AnalysisFilter) ([]models.AnalysisRun, int, error)
	summaryFn  func(ctx context.Context, userID string) (*models.UserSummary, error)
}

func (s *stubAnalysisRepo) Create(ctx context.Context, run *models.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, run)
	return nil
}

func (s *stubAnalysisRepo) FindByID(ctx context.Context, id string) (*models.AnalysisRun, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, id)
	}
	return nil, sql.ErrNoRows
}

func (s *stubAnalysisRepo) Update(ctx context.Context, run *models.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, run)
	return nil
}

func (s *stubAnalysisRepo) UpdateStatus(ctx context.Context, id string, status models.AnalysisStatus, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	s.lastError = errorMessage
	return nil
}

func (s *stubAnalysisRepo) List(ctx context.Context, filter models.AnalysisFilter) ([]models.AnalysisRun, int, error) {
	return s.listFn(ctx, filter)
}

func (s *stubAnalysisRepo) LatestCompletedByUser(ctx context.Context, userID string) (*models.AnalysisRun, error) {
	if s.latest == nil {
		return nil, sql.ErrNoRows
	}
	return s.latest, nil
}

func (s *stubAnalysisRepo) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubAnalysisRepo) UserSummary(ctx context.Context, userID string) (*models.UserSummary, error) {
	return s.summaryFn(ctx, userID)
}

type stubWorkspace struct {
	stats      *models.FileStats
	prepareErr error
	cleaned    []string
	block      chan struct{}
}

func (s *stubWorkspace) Prepare(ctx context.Context, runID, filename string, archive io.Reader, size int64) (string, *models.FileStats, error) {
	if s.block != nil {
		<-s.block
	}
	if s.prepareErr != nil {
		return "", nil, s.prepareErr
	}
	return "/tmp/ws/" + runID, s.stats, nil
}

func (s *stubWorkspace) Cleanup(runID string) {
	s.cleaned = append(s.cleaned, runID)
}

type stubExecutor struct {
	results []models.RawToolResult
}

func (s *stubExecutor) Execute(ctx context.Context, workspaceDir string, stats models.FileStats) []models.RawToolResult {
	return s.results
}

type stubMissionEngine struct {
	generated  []*models.AnalysisRun
	reconciled []string
	deleted    []string
}

func (s *stubMissionEngine) GenerateMissions(ctx context.Context, run *models.AnalysisRun) ([]models.Mission, error) {
	s.generated = append(s.generated, run)
	return nil, nil
}

func (s *stubMissionEngine) ReconcileMissions(ctx context.Context, runID string, findings []models.NormalizedFinding) (int, error) {
	s.reconciled = append(s.reconciled, runID)
	return 0, nil
}

func (s *stubMissionEngine) DeleteByRun(ctx context.Context, runID string) error {
	s.deleted = append(s.deleted, runID)
	return nil
}

func eslintResult(messages ...map[string]interface{}) models.RawToolResult {
	findings := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		findings = append(findings, m)
	}
	return models.RawToolResult{Tool: "eslint", Success: true, Findings: findings}
}

func jsStats() *models.FileStats {
	return &models.FileStats{TotalFiles: 5, JSFiles: 5, LinesOfCode: 500}
}

func newAnalysisService(repo *stubAnalysisRepo, ws *stubWorkspace, exec *stubExecutor, engine *stubMissionEngine) *AnalysisService {
	return NewAnalysisService(repo, ws, exec, engine, nil, nil, nil, zap.NewNop())
}

func TestSubmitNewProjectGeneratesMissions(t *testing.T) {
	repo := &stubAnalysisRepo{}
	ws := &stubWorkspace{stats: jsStats()}
	exec := &stubExecutor{results: []models.RawToolResult{eslintResult(
		map[string]interface{}{"filePath": "a.js", "line": float64(3), "ruleId": "no-eval", "message": "bad", "severity": float64(2)},
		map[string]interface{}{"filePath": "a.js", "line": float64(9), "ruleId": "semi", "message": "missing", "severity": float64(1)},
	)}}
	engine := &stubMissionEngine{}
	svc := newAnalysisService(repo, ws, exec, engine)

	userID := "u1"
	run, err := svc.Submit(context.Background(), &userID, "demo", "demo.zip", strings.NewReader(""), 10)
	require.NoError(t, err)

	assert.Equal(t, models.AnalysisStatusCompleted, run.Status)
	assert.Equal(t, 1, run.HighIssues)
	assert.Equal(t, 1, run.MediumIssues)
	assert.Equal(t, 2, run.TotalIssues)
	assert.Equal(t, 85.0, run.QualityScore)
	require.NotNil(t, run.ToolSummary)
	assert.Equal(t, 1, run.ToolSummary.SuccessfulTools)
	require.Len(t, engine.generated, 1)
	assert.Empty(t, engine.reconciled)
	assert.Equal(t, []string{run.ID}, ws.cleaned)
}

func TestSubmitSameProjectMergesIntoPriorRun(t *testing.T) {
	userID := "u1"
	prior := &models.AnalysisRun{
		ID:        "prior-run",
		UserID:    &userID,
		FileStats: jsStats(),
		Status:    models.AnalysisStatusCompleted,
	}
	repo := &stubAnalysisRepo{latest: prior}
	ws := &stubWorkspace{stats: jsStats()}
	exec := &stubExecutor{results: []models.RawToolResult{eslintResult(
		map[string]interface{}{"filePath": "a.js", "line": float64(3), "ruleId": "no-eval", "message": "bad", "severity": float64(2)},
	)}}
	engine := &stubMissionEngine{}
	svc := newAnalysisService(repo, ws, exec, engine)

	run, err := svc.Submit(context.Background(), &userID, "demo", "demo.zip", strings.NewReader(""), 10)
	require.NoError(t, err)

	assert.Equal(t, "prior-run", run.ID)
	assert.Equal(t, 1, run.TotalIssues)
	assert.Equal(t, []string{"prior-run"}, engine.reconciled)
	assert.Empty(t, engine.generated)
	// the temporary row created for this submission is discarded
	require.Len(t, repo.created, 1)
	assert.Equal(t, []string{repo.created[0].ID}, repo.deleted)
}

func TestSubmitDifferentProjectStartsFresh(t *testing.T) {
	userID := "u1"
	prior := &models.AnalysisRun{
		ID:        "prior-run",
		UserID:    &userID,
		FileStats: &models.FileStats{TotalFiles: 40, JavaFiles: 40, LinesOfCode: 9000},
		Status:    models.AnalysisStatusCompleted,
	}
	repo := &stubAnalysisRepo{latest: prior}
	ws := &stubWorkspace{stats: jsStats()}
	exec := &stubExecutor{}
	engine := &stubMissionEngine{}
	svc := newAnalysisService(repo, ws, exec, engine)

	run, err := svc.Submit(context.Background(), &userID, "demo", "demo.zip", strings.NewReader(""), 10)
	require.NoError(t, err)

	assert.NotEqual(t, "prior-run", run.ID)
	assert.Len(t, engine.generated, 1)
	assert.Empty(t, engine.reconciled)
	assert.Empty(t, repo.deleted)
}

func TestSubmitExtractionFailureMarksRunFailed(t *testing.T) {
	repo := &stubAnalysisRepo{}
	ws := &stubWorkspace{prepareErr: appErrors.Clone(appErrors.ErrUnsupportedArchive, "not a zip archive")}
	svc := newAnalysisService(repo, ws, &stubExecutor{}, &stubMissionEngine{})

	userID := "u1"
	_, err := svc.Submit(context.Background(), &userID, "demo", "demo.txt", strings.NewReader(""), 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedArchive.Code, appErrors.FromError(err).Code)

	// the submission leaves a run row behind, transitioned to failed
	// with the extraction error recorded
	require.Len(t, repo.created, 1)
	require.NotEmpty(t, repo.statuses)
	assert.Equal(t, models.AnalysisStatusProcessing, repo.statuses[0])
	assert.Equal(t, models.AnalysisStatusFailed, repo.statuses[len(repo.statuses)-1])
	require.NotNil(t, repo.lastError)
	assert.Contains(t, *repo.lastError, "not a zip archive")
}

func TestSubmitRejectsConcurrentRunsPerUser(t *testing.T) {
	repo := &stubAnalysisRepo{}
	block := make(chan struct{})
	ws := &stubWorkspace{stats: jsStats(), block: block}
	svc := newAnalysisService(repo, ws, &stubExecutor{}, &stubMissionEngine{})

	userID := "u1"
	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), &userID, "demo", "demo.zip", strings.NewReader(""), 10)
		firstDone <- err
	}()

	// wait for the first submission to hold the user slot
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		_, busy := svc.active[userID]
		return busy
	}, 2*time.Second, 10*time.Millisecond)

	_, err := svc.Submit(context.Background(), &userID, "demo", "demo.zip", strings.NewReader(""), 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAnalysisRunning.Code, appErrors.FromError(err).Code)

	close(block)
	require.NoError(t, <-firstDone)
}

func TestGetEnforcesOwnership(t *testing.T) {
	owner := "u1"
	repo := &stubAnalysisRepo{
		findByIDFn: func(_ context.Context, id string) (*models.AnalysisRun, error) {
			return &models.AnalysisRun{ID: id, UserID: &owner}, nil
		},
	}
	svc := newAnalysisService(repo, &stubWorkspace{}, &stubExecutor{}, &stubMissionEngine{})

	_, err := svc.Get(context.Background(), "run-1", "intruder", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	run, err := svc.Get(context.Background(), "run-1", "intruder", true)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
}

func TestDeleteRemovesMissionsFirst(t *testing.T) {
	owner := "u1"
	repo := &stubAnalysisRepo{
		findByIDFn: func(_ context.Context, id string) (*models.AnalysisRun, error) {
			return &models.AnalysisRun{ID: id, UserID: &owner}, nil
		},
	}
	engine := &stubMissionEngine{}
	svc := newAnalysisService(repo, &stubWorkspace{}, &stubExecutor{}, engine)

	err := svc.Delete(context.Background(), "run-1", "u1", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, engine.deleted)
	assert.Equal(t, []string{"run-1"}, repo.deleted)
}
