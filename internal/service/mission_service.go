package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codequest-edu/codequest-api/internal/analyzer"
	"github.com/codequest-edu/codequest-api/internal/models"
	"github.com/codequest-edu/codequest-api/pkg/config"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
)

const (
	defaultMissionCap    = 200
	defaultLineTolerance = 2
	maxTitleLength       = 120
)

type missionRepository interface {
	CreateBatch(ctx context.Context, missions []models.Mission) error
	FindByID(ctx context.Context, id string) (*models.Mission, error)
	List(ctx context.Context, filter models.MissionFilter) ([]models.Mission, int, error)
	OpenByRun(ctx context.Context, runID string) ([]models.Mission, error)
	UpdateStatus(ctx context.Context, id string, status models.MissionStatus, fixedAt *time.Time) error
	SummaryByRun(ctx context.Context, runID string) (*models.MissionSummary, error)
	CreateFindingLinks(ctx context.Context, links []models.MissionFindingLink) error
	LinksByRun(ctx context.Context, runID string) ([]models.MissionFindingLink, error)
	DeleteByRun(ctx context.Context, runID string) error
	DeleteLinksByRun(ctx context.Context, runID string) error
}

// MissionService derives persistent remediation tasks from analysis
// findings and reconciles them across re-submissions of the same project.
type MissionService struct {
	repo    missionRepository
	config  config.AnalysisConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewMissionService constructs a MissionService. Metrics may be nil.
func NewMissionService(repo missionRepository, cfg config.AnalysisConfig, metrics *MetricsService, logger *zap.Logger) *MissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MissionCap <= 0 {
		cfg.MissionCap = defaultMissionCap
	}
	if cfg.LineTolerance <= 0 {
		cfg.LineTolerance = defaultLineTolerance
	}
	return &MissionService{repo: repo, config: cfg, metrics: metrics, logger: logger}
}

// GenerateMissions creates one mission per finding, in finding order,
// capped at the configured limit. Finding links are recorded best effort
// so later submissions can be traced back to the originating mission.
func (s *MissionService) GenerateMissions(ctx context.Context, run *models.AnalysisRun) ([]models.Mission, error) {
	missions := make([]models.Mission, 0, len(run.Findings))
	for _, finding := range run.Findings {
		severity := analyzer.Classify(finding.Tool, finding.Raw)
		canonical := analyzer.ToCanonical(finding.Tool, finding.Raw)

		missions = append(missions, models.Mission{
			RunID:       run.ID,
			UserID:      run.UserID,
			Title:       missionTitle(finding.Tool, canonical),
			Description: canonical.Message,
			Severity:    severity,
			Tool:        finding.Tool,
			FilePath:    canonical.Path,
			LineStart:   canonical.LineStart,
			LineEnd:     canonical.LineEnd,
			RuleID:      canonical.RuleID,
			Status:      models.MissionStatusPending,
			Metadata:    models.MissionMetadata{Tool: finding.Tool, Raw: finding.Raw},
		})
		if len(missions) >= s.config.MissionCap {
			break
		}
	}

	if err := s.repo.CreateBatch(ctx, missions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist missions")
	}

	links := make([]models.MissionFindingLink, 0, len(missions))
	for _, mission := range missions {
		links = append(links, models.MissionFindingLink{
			MissionID: mission.ID,
			RunID:     run.ID,
			Tool:      mission.Tool,
			FilePath:  mission.FilePath,
			Line:      mission.LineStart,
			Message:   mission.Description,
		})
	}
	if err := s.repo.CreateFindingLinks(ctx, links); err != nil {
		s.logger.Warn("failed to record finding links", zap.String("run_id", run.ID), zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.AddMissionsGenerated(len(missions))
	}

	return missions, nil
}

// ReconcileMissions matches the run's open missions against the findings
// of a new submission. A mission whose finding no longer appears is
// considered fixed. Returns the missions that transitioned to fixed.
func (s *MissionService) ReconcileMissions(ctx context.Context, runID string, findings []models.NormalizedFinding) (int, error) {
	open, err := s.repo.OpenByRun(ctx, runID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open missions")
	}
	if len(open) == 0 {
		return 0, nil
	}

	canonicals := make([]models.CanonicalFinding, len(findings))
	for i, finding := range findings {
		canonicals[i] = analyzer.ToCanonical(finding.Tool, finding.Raw)
	}

	fixed := 0
	now := time.Now().UTC()
	for _, mission := range open {
		if s.missionStillPresent(mission, findings, canonicals) {
			continue
		}
		fixedAt := now
		if err := s.repo.UpdateStatus(ctx, mission.ID, models.MissionStatusFixed, &fixedAt); err != nil {
			return fixed, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close mission")
		}
		fixed++
		if s.metrics != nil {
			s.metrics.ObserveMissionResolved(models.MissionStatusFixed)
		}
	}

	return fixed, nil
}

// MarkFixed closes a mission as fixed on behalf of its owner.
func (s *MissionService) MarkFixed(ctx context.Context, missionID, userID string, isAdmin bool) (*models.Mission, error) {
	return s.resolve(ctx, missionID, userID, isAdmin, models.MissionStatusFixed)
}

// MarkSkipped closes a mission as skipped on behalf of its owner.
func (s *MissionService) MarkSkipped(ctx context.Context, missionID, userID string, isAdmin bool) (*models.Mission, error) {
	return s.resolve(ctx, missionID, userID, isAdmin, models.MissionStatusSkipped)
}

// List returns missions matching the filter along with the total count.
func (s *MissionService) List(ctx context.Context, filter models.MissionFilter) ([]models.Mission, int, error) {
	missions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list missions")
	}
	return missions, total, nil
}

// Get returns a single mission, enforcing ownership for non-admins.
func (s *MissionService) Get(ctx context.Context, missionID, userID string, isAdmin bool) (*models.Mission, error) {
	mission, err := s.repo.FindByID(ctx, missionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mission")
	}
	if !isAdmin && !ownedBy(mission, userID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "mission belongs to another user")
	}
	return mission, nil
}

// DeleteByRun removes a run's missions together with their finding links.
func (s *MissionService) DeleteByRun(ctx context.Context, runID string) error {
	if err := s.repo.DeleteLinksByRun(ctx, runID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete finding links")
	}
	if err := s.repo.DeleteByRun(ctx, runID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete missions")
	}
	return nil
}

// FindingLinks returns the run's finding→mission links so a displayed
// finding can be traced to the mission it produced.
func (s *MissionService) FindingLinks(ctx context.Context, runID string) ([]models.MissionFindingLink, error) {
	links, err := s.repo.LinksByRun(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load finding links")
	}
	return links, nil
}

// Summary aggregates mission progress for a run.
func (s *MissionService) Summary(ctx context.Context, runID string) (*models.MissionSummary, error) {
	summary, err := s.repo.SummaryByRun(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise missions")
	}
	return summary, nil
}

func (s *MissionService) resolve(ctx context.Context, missionID, userID string, isAdmin bool, status models.MissionStatus) (*models.Mission, error) {
	mission, err := s.repo.FindByID(ctx, missionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mission")
	}

	if !isAdmin && !ownedBy(mission, userID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "mission belongs to another user")
	}

	if mission.Status.Closed() {
		return nil, appErrors.Clone(appErrors.ErrMissionClosed,
			fmt.Sprintf("mission already %s", mission.Status))
	}

	var fixedAt *time.Time
	if status == models.MissionStatusFixed {
		now := time.Now().UTC()
		fixedAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, mission.ID, status, fixedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mission")
	}

	mission.Status = status
	mission.FixedAt = fixedAt
	mission.UpdatedAt = time.Now().UTC()

	if s.metrics != nil {
		s.metrics.ObserveMissionResolved(status)
	}

	return mission, nil
}

// missionStillPresent reports whether any new finding corresponds to the
// mission: same tool, matching path, line within tolerance, and either a
// message overlap or the same rule.
func (s *MissionService) missionStillPresent(mission models.Mission, findings []models.NormalizedFinding, canonicals []models.CanonicalFinding) bool {
	for i, finding := range findings {
		if !strings.EqualFold(finding.Tool, mission.Tool) {
			continue
		}
		c := canonicals[i]
		if !pathsMatch(mission.FilePath, c.Path) {
			continue
		}
		if !linesClose(mission.LineStart, c.LineStart, s.config.LineTolerance) {
			continue
		}
		if messagesOverlap(mission.Description, c.Message) {
			return true
		}
		if mission.RuleID != "" && mission.RuleID == c.RuleID {
			return true
		}
	}
	return false
}

func ownedBy(mission *models.Mission, userID string) bool {
	return mission.UserID != nil && *mission.UserID == userID
}

func missionTitle(tool string, c models.CanonicalFinding) string {
	title := c.RuleID
	if title == "" {
		title = c.Message
	}
	if title == "" {
		title = fmt.Sprintf("%s finding", tool)
	}
	if c.Path != "" {
		title = fmt.Sprintf("%s in %s", title, path.Base(strings.ReplaceAll(c.Path, "\\", "/")))
	}
	// truncate on rune boundaries, tool messages are not always ASCII
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength-3]) + "..."
	}
	return title
}

// pathsMatch tolerates tools reporting the same file with different
// prefixes (absolute workspace path vs repository-relative path).
func pathsMatch(a, b string) bool {
	a = strings.ToLower(strings.ReplaceAll(a, "\\", "/"))
	b = strings.ToLower(strings.ReplaceAll(b, "\\", "/"))
	if a == "" || b == "" {
		return a == b
	}
	if a == b {
		return true
	}
	return strings.HasSuffix(a, "/"+strings.TrimPrefix(b, "/")) ||
		strings.HasSuffix(b, "/"+strings.TrimPrefix(a, "/"))
}

func linesClose(a, b, tolerance int) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func messagesOverlap(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
