package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/codequest-edu/codequest-api/internal/analyzer"
	"github.com/codequest-edu/codequest-api/internal/models"
	"github.com/codequest-edu/codequest-api/pkg/config"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
	"github.com/codequest-edu/codequest-api/pkg/export"
	"github.com/codequest-edu/codequest-api/pkg/jobs"
	"github.com/codequest-edu/codequest-api/pkg/storage"
)

const reportJobType = "report.generate"

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, resultURL string, at time.Time) error
	MarkFailed(ctx context.Context, id, message string, at time.Time) error
}

type reportRunSource interface {
	FindByID(ctx context.Context, id string) (*models.AnalysisRun, error)
}

type reportMissionSource interface {
	SummaryByRun(ctx context.Context, runID string) (*models.MissionSummary, error)
}

// ReportService generates downloadable findings exports asynchronously.
// Jobs are queued, rendered by a worker pool, stored on disk and served
// through signed URLs.
type ReportService struct {
	repo     reportRepository
	runs     reportRunSource
	missions reportMissionSource
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	queue    *jobs.Queue
	config   config.ReportsConfig
	logger   *zap.Logger
}

// NewReportService constructs a ReportService with its own worker queue.
// Call StartWorkers before enqueueing jobs.
func NewReportService(repo reportRepository, runs reportRunSource, missions reportMissionSource, store *storage.LocalStorage, signer *storage.SignedURLSigner, cfg config.ReportsConfig, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReportService{
		repo:     repo,
		runs:     runs,
		missions: missions,
		store:    store,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		config:   cfg,
		logger:   logger,
	}
	s.queue = jobs.NewQueue("reports", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// StartWorkers launches the report worker pool.
func (s *ReportService) StartWorkers(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopWorkers drains and stops the worker pool.
func (s *ReportService) StopWorkers() {
	s.queue.Stop()
}

// CreateJob validates the request, persists a queued job and hands it to
// the worker pool.
func (s *ReportService) CreateJob(ctx context.Context, runID, userID string, isAdmin bool, format models.ReportFormat) (*models.ReportJob, error) {
	if !s.config.Enabled {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "reports are disabled")
	}
	if format != models.ReportFormatCSV && format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}

	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "analysis run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load analysis run")
	}
	if !isAdmin && (run.UserID == nil || *run.UserID != userID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "analysis run belongs to another user")
	}

	job := &models.ReportJob{
		RunID:     runID,
		Params:    models.ReportJobParams{Format: format},
		Status:    models.ReportStatusQueued,
		CreatedBy: userID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: reportJobType, Payload: job.ID}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "failed to enqueue", time.Now().UTC()); markErr != nil {
			s.logger.Error("failed to mark report job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	return job, nil
}

// Status returns the job record, enforcing ownership for non-admins.
func (s *ReportService) Status(ctx context.Context, jobID, userID string, isAdmin bool) (*models.ReportJob, error) {
	if !s.config.Enabled {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "reports are disabled")
	}

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if !isAdmin && job.CreatedBy != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return job, nil
}

// Download validates a signed token and resolves the stored file.
func (s *ReportService) Download(ctx context.Context, token string) (absolutePath, filename string, err error) {
	if !s.config.Enabled {
		return "", "", appErrors.Clone(appErrors.ErrFeatureDisabled, "reports are disabled")
	}

	reportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrLinkExpired, "")
	}

	job, err := s.repo.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusFinished {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "report is not ready")
	}

	return s.store.Path(relPath), filepath.Base(relPath), nil
}

// Sweep removes generated report files older than the signed URL TTL.
func (s *ReportService) Sweep() {
	deleted, err := s.store.CleanupOlderThan(s.config.SignedURLTTL)
	if err != nil {
		s.logger.Warn("report sweep failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("removed expired reports", zap.Int("count", len(deleted)))
	}
}

func (s *ReportService) process(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected report payload %T", job.Payload)
	}

	record, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", jobID, err)
	}

	if err := s.repo.MarkProcessing(ctx, record.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	resultURL, err := s.render(ctx, record)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, record.ID, err.Error(), time.Now().UTC()); markErr != nil {
			s.logger.Error("failed to mark report job", zap.String("job_id", record.ID), zap.Error(markErr))
		}
		return err
	}

	if err := s.repo.MarkFinished(ctx, record.ID, resultURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	return nil
}

func (s *ReportService) render(ctx context.Context, record *models.ReportJob) (string, error) {
	run, err := s.runs.FindByID(ctx, record.RunID)
	if err != nil {
		return "", fmt.Errorf("load analysis run %s: %w", record.RunID, err)
	}

	dataset := findingsDataset(run)

	var payload []byte
	var name string
	switch record.Params.Format {
	case models.ReportFormatPDF:
		summary := s.summaryLines(ctx, run)
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Analysis report %s", run.ProjectName), summary)
		name = "report.pdf"
	default:
		payload, err = s.csv.Render(dataset)
		name = "findings.csv"
	}
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	relPath := filepath.Join(record.ID, name)
	if _, err := s.store.Save(relPath, payload); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}

	token, _, err := s.signer.Generate(record.ID, relPath)
	if err != nil {
		return "", fmt.Errorf("sign report url: %w", err)
	}
	return "/reports/download/" + token, nil
}

func (s *ReportService) summaryLines(ctx context.Context, run *models.AnalysisRun) []export.SummaryLine {
	lines := []export.SummaryLine{
		{Label: "Project", Value: run.ProjectName},
		{Label: "Status", Value: string(run.Status)},
		{Label: "Quality score", Value: strconv.FormatFloat(run.QualityScore, 'f', 2, 64)},
		{Label: "Issues", Value: fmt.Sprintf("%d high / %d medium / %d low", run.HighIssues, run.MediumIssues, run.LowIssues)},
	}
	if s.missions != nil {
		if summary, err := s.missions.SummaryByRun(ctx, run.ID); err == nil {
			lines = append(lines, export.SummaryLine{
				Label: "Missions",
				Value: fmt.Sprintf("%d total / %d fixed / %d skipped", summary.Total, summary.Fixed, summary.Skipped),
			})
		}
	}
	return lines
}

func findingsDataset(run *models.AnalysisRun) export.Dataset {
	headers := []string{"tool", "severity", "file", "line", "rule", "message"}
	rows := make([]map[string]string, 0, len(run.Findings))
	for _, finding := range run.Findings {
		severity := analyzer.Classify(finding.Tool, finding.Raw)
		canonical := analyzer.ToCanonical(finding.Tool, finding.Raw)
		rows = append(rows, map[string]string{
			"tool":     finding.Tool,
			"severity": string(severity),
			"file":     canonical.Path,
			"line":     strconv.Itoa(canonical.LineStart),
			"rule":     canonical.RuleID,
			"message":  canonical.Message,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
