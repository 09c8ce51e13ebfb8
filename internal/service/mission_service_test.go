package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codequest-edu/codequest-api/internal/models"
	"github.com/codequest-edu/codequest-api/pkg/config"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
)

type stubMissionRepo struct {
	createBatchFn        func(ctx context.Context, missions []models.Mission) error
	findByIDFn           func(ctx context.Context, id string) (*models.Mission, error)
	listFn               func(ctx context.Context, filter models.MissionFilter) ([]models.Mission, int, error)
	openByRunFn          func(ctx context.Context, runID string) ([]models.Mission, error)
	updateStatusFn       func(ctx context.Context, id string, status models.MissionStatus, fixedAt *time.Time) error
	summaryByRunFn       func(ctx context.Context, runID string) (*models.MissionSummary, error)
	createFindingLinksFn func(ctx context.Context, links []models.MissionFindingLink) error
	linksByRunFn         func(ctx context.Context, runID string) ([]models.MissionFindingLink, error)
}

func (s *stubMissionRepo) CreateBatch(ctx context.Context, missions []models.Mission) error {
	if s.createBatchFn != nil {
		return s.createBatchFn(ctx, missions)
	}
	return nil
}

func (s *stubMissionRepo) FindByID(ctx context.Context, id string) (*models.Mission, error) {
	return s.findByIDFn(ctx, id)
}

func (s *stubMissionRepo) List(ctx context.Context, filter models.MissionFilter) ([]models.Mission, int, error) {
	return s.listFn(ctx, filter)
}

func (s *stubMissionRepo) OpenByRun(ctx context.Context, runID string) ([]models.Mission, error) {
	return s.openByRunFn(ctx, runID)
}

func (s *stubMissionRepo) UpdateStatus(ctx context.Context, id string, status models.MissionStatus, fixedAt *time.Time) error {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, id, status, fixedAt)
	}
	return nil
}

func (s *stubMissionRepo) SummaryByRun(ctx context.Context, runID string) (*models.MissionSummary, error) {
	return s.summaryByRunFn(ctx, runID)
}

func (s *stubMissionRepo) CreateFindingLinks(ctx context.Context, links []models.MissionFindingLink) error {
	if s.createFindingLinksFn != nil {
		return s.createFindingLinksFn(ctx, links)
	}
	return nil
}

func (s *stubMissionRepo) LinksByRun(ctx context.Context, runID string) ([]models.MissionFindingLink, error) {
	if s.linksByRunFn != nil {
		return s.linksByRunFn(ctx, runID)
	}
	return nil, nil
}

func (s *stubMissionRepo) DeleteByRun(ctx context.Context, runID string) error { return nil }

func (s *stubMissionRepo) DeleteLinksByRun(ctx context.Context, runID string) error { return nil }

func newMissionService(repo missionRepository, cfg config.AnalysisConfig) *MissionService {
	return NewMissionService(repo, cfg, nil, zap.NewNop())
}

func eslintFinding(file string, line int, rule, message string) models.NormalizedFinding {
	return models.NormalizedFinding{
		Tool: "eslint",
		Raw: map[string]interface{}{
			"filePath": file,
			"line":     float64(line),
			"ruleId":   rule,
			"message":  message,
			"severity": float64(2),
		},
	}
}

func TestGenerateMissionsFromFindings(t *testing.T) {
	var created []models.Mission
	repo := &stubMissionRepo{
		createBatchFn: func(_ context.Context, missions []models.Mission) error {
			created = missions
			return nil
		},
	}
	svc := newMissionService(repo, config.AnalysisConfig{MissionCap: 200})

	userID := "u1"
	run := &models.AnalysisRun{
		ID:     "run-1",
		UserID: &userID,
		Findings: models.FindingList{
			eslintFinding("src/app.js", 12, "no-eval", "eval can be harmful"),
			eslintFinding("src/app.js", 30, "semi", "missing semicolon"),
		},
	}

	missions, err := svc.GenerateMissions(context.Background(), run)
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Len(t, missions, 2)

	first := missions[0]
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, &userID, first.UserID)
	assert.Equal(t, models.SeverityHigh, first.Severity)
	assert.Equal(t, "eslint", first.Tool)
	assert.Equal(t, "src/app.js", first.FilePath)
	assert.Equal(t, 12, first.LineStart)
	assert.Equal(t, "no-eval", first.RuleID)
	assert.Equal(t, models.MissionStatusPending, first.Status)
	assert.Equal(t, "no-eval in app.js", first.Title)
}

func TestGenerateMissionsHonorsCap(t *testing.T) {
	var created []models.Mission
	repo := &stubMissionRepo{
		createBatchFn: func(_ context.Context, missions []models.Mission) error {
			created = missions
			return nil
		},
	}
	svc := newMissionService(repo, config.AnalysisConfig{MissionCap: 3})

	run := &models.AnalysisRun{ID: "run-1"}
	for i := 0; i < 10; i++ {
		run.Findings = append(run.Findings, eslintFinding("a.js", i+1, "semi", "missing semicolon"))
	}

	missions, err := svc.GenerateMissions(context.Background(), run)
	require.NoError(t, err)
	assert.Len(t, missions, 3)
	assert.Len(t, created, 3)
	// order preserved: caps keep the earliest findings
	assert.Equal(t, 1, created[0].LineStart)
	assert.Equal(t, 3, created[2].LineStart)
}

func TestReconcileClosesAbsentMissions(t *testing.T) {
	statuses := map[string]models.MissionStatus{}
	repo := &stubMissionRepo{
		openByRunFn: func(_ context.Context, runID string) ([]models.Mission, error) {
			return []models.Mission{
				{ID: "m1", Tool: "eslint", FilePath: "src/app.js", LineStart: 12, Description: "eval can be harmful", RuleID: "no-eval"},
				{ID: "m2", Tool: "eslint", FilePath: "src/app.js", LineStart: 30, Description: "missing semicolon", RuleID: "semi"},
			}, nil
		},
		updateStatusFn: func(_ context.Context, id string, status models.MissionStatus, fixedAt *time.Time) error {
			statuses[id] = status
			assert.NotNil(t, fixedAt)
			return nil
		},
	}
	svc := newMissionService(repo, config.AnalysisConfig{LineTolerance: 2})

	// m1 persists (line drifted by 1), m2's finding is gone.
	findings := []models.NormalizedFinding{
		eslintFinding("src/app.js", 13, "no-eval", "eval can be harmful"),
	}

	fixed, err := svc.ReconcileMissions(context.Background(), "run-1", findings)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.NotContains(t, statuses, "m1")
	assert.Equal(t, models.MissionStatusFixed, statuses["m2"])
}

func TestReconcileMatchesOnLineToleranceBoundary(t *testing.T) {
	updated := 0
	repo := &stubMissionRepo{
		openByRunFn: func(_ context.Context, runID string) ([]models.Mission, error) {
			return []models.Mission{
				{ID: "m1", Tool: "eslint", FilePath: "src/app.js", LineStart: 10, Description: "missing semicolon", RuleID: "semi"},
			}, nil
		},
		updateStatusFn: func(_ context.Context, id string, status models.MissionStatus, fixedAt *time.Time) error {
			updated++
			return nil
		},
	}
	svc := newMissionService(repo, config.AnalysisConfig{LineTolerance: 2})

	// within tolerance: still open
	fixed, err := svc.ReconcileMissions(context.Background(), "run-1", []models.NormalizedFinding{
		eslintFinding("src/app.js", 12, "semi", "missing semicolon"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, fixed)
	assert.Equal(t, 0, updated)

	// beyond tolerance: treated as fixed
	fixed, err = svc.ReconcileMissions(context.Background(), "run-1", []models.NormalizedFinding{
		eslintFinding("src/app.js", 13, "semi", "missing semicolon"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
}

func TestReconcileMatchesMessageSubstringEitherDirection(t *testing.T) {
	repo := &stubMissionRepo{
		openByRunFn: func(_ context.Context, runID string) ([]models.Mission, error) {
			return []models.Mission{
				{ID: "m1", Tool: "eslint", FilePath: "a.js", LineStart: 5, Description: "semicolon"},
			}, nil
		},
	}
	svc := newMissionService(repo, config.AnalysisConfig{LineTolerance: 2})

	fixed, err := svc.ReconcileMissions(context.Background(), "run-1", []models.NormalizedFinding{
		eslintFinding("a.js", 5, "", "missing semicolon at end of statement"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, fixed)
}

func TestReconcileMatchesRelativeAgainstAbsolutePath(t *testing.T) {
	repo := &stubMissionRepo{
		openByRunFn: func(_ context.Context, runID string) ([]models.Mission, error) {
			return []models.Mission{
				{ID: "m1", Tool: "eslint", FilePath: "/tmp/ws/run-1/src/app.js", LineStart: 5, Description: "missing semicolon"},
			}, nil
		},
	}
	svc := newMissionService(repo, config.AnalysisConfig{LineTolerance: 2})

	fixed, err := svc.ReconcileMissions(context.Background(), "run-1", []models.NormalizedFinding{
		eslintFinding("src/app.js", 5, "semi", "missing semicolon"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, fixed)
}

func TestReconcileSecondPassLeavesStateUnchanged(t *testing.T) {
	statuses := map[string]models.MissionStatus{
		"m1": models.MissionStatusPending,
		"m2": models.MissionStatusPending,
	}
	all := []models.Mission{
		{ID: "m1", Tool: "eslint", FilePath: "src/app.js", LineStart: 12, Description: "eval can be harmful", RuleID: "no-eval"},
		{ID: "m2", Tool: "eslint", FilePath: "src/app.js", LineStart: 30, Description: "missing semicolon", RuleID: "semi"},
	}
	updates := 0
	repo := &stubMissionRepo{
		openByRunFn: func(_ context.Context, runID string) ([]models.Mission, error) {
			var open []models.Mission
			for _, m := range all {
				if statuses[m.ID] == models.MissionStatusPending {
					open = append(open, m)
				}
			}
			return open, nil
		},
		updateStatusFn: func(_ context.Context, id string, status models.MissionStatus, _ *time.Time) error {
			statuses[id] = status
			updates++
			return nil
		},
	}
	svc := newMissionService(repo, config.AnalysisConfig{LineTolerance: 2})

	// m1's finding persists, m2's is gone
	findings := []models.NormalizedFinding{
		eslintFinding("src/app.js", 12, "no-eval", "eval can be harmful"),
	}

	fixed, err := svc.ReconcileMissions(context.Background(), "run-1", findings)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	// a second pass over the unchanged finding set is a no-op
	fixed, err = svc.ReconcileMissions(context.Background(), "run-1", findings)
	require.NoError(t, err)
	assert.Equal(t, 0, fixed)
	assert.Equal(t, 1, updates)
	assert.Equal(t, models.MissionStatusPending, statuses["m1"])
	assert.Equal(t, models.MissionStatusFixed, statuses["m2"])
}

func TestFindingLinksReturnsRunLinks(t *testing.T) {
	repo := &stubMissionRepo{
		linksByRunFn: func(_ context.Context, runID string) ([]models.MissionFindingLink, error) {
			return []models.MissionFindingLink{
				{MissionID: "m1", RunID: runID, Tool: "eslint", FilePath: "src/app.js", Line: 12},
			}, nil
		},
	}
	svc := newMissionService(repo, config.AnalysisConfig{})

	links, err := svc.FindingLinks(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "m1", links[0].MissionID)
	assert.Equal(t, "run-1", links[0].RunID)
}

func TestMissionTitleTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 3*maxTitleLength)
	title := missionTitle("eslint", models.CanonicalFinding{Message: long})

	assert.True(t, utf8.ValidString(title))
	assert.Equal(t, maxTitleLength, utf8.RuneCountInString(title))
	assert.True(t, strings.HasSuffix(title, "..."))
}

func TestMarkFixedRejectsClosedMission(t *testing.T) {
	userID := "u1"
	repo := &stubMissionRepo{
		findByIDFn: func(_ context.Context, id string) (*models.Mission, error) {
			return &models.Mission{ID: id, UserID: &userID, Status: models.MissionStatusSkipped}, nil
		},
	}
	svc := newMissionService(repo, config.AnalysisConfig{})

	_, err := svc.MarkFixed(context.Background(), "m1", "u1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissionClosed.Code, appErrors.FromError(err).Code)
}

func TestMarkSkippedEnforcesOwnership(t *testing.T) {
	owner := "u1"
	repo := &stubMissionRepo{
		findByIDFn: func(_ context.Context, id string) (*models.Mission, error) {
			return &models.Mission{ID: id, UserID: &owner, Status: models.MissionStatusPending}, nil
		},
	}
	svc := newMissionService(repo, config.AnalysisConfig{})

	_, err := svc.MarkSkipped(context.Background(), "m1", "intruder", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestMarkFixedStampsFixedAt(t *testing.T) {
	owner := "u1"
	var gotFixedAt *time.Time
	repo := &stubMissionRepo{
		findByIDFn: func(_ context.Context, id string) (*models.Mission, error) {
			return &models.Mission{ID: id, UserID: &owner, Status: models.MissionStatusPending}, nil
		},
		updateStatusFn: func(_ context.Context, id string, status models.MissionStatus, fixedAt *time.Time) error {
			gotFixedAt = fixedAt
			return nil
		},
	}
	svc := newMissionService(repo, config.AnalysisConfig{})

	mission, err := svc.MarkFixed(context.Background(), "m1", "u1", false)
	require.NoError(t, err)
	require.NotNil(t, gotFixedAt)
	assert.Equal(t, models.MissionStatusFixed, mission.Status)
	assert.Equal(t, gotFixedAt, mission.FixedAt)
}
