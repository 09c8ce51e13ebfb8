package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/codequest-edu/codequest-api/internal/models"
)

const analysisColumns = `id, user_id, project_name, status, file_stats, findings, tool_summary, high_issues, medium_issues, low_issues, total_issues, quality_score, error_message, created_at, updated_at, completed_at`

// AnalysisRepository manages persistence for analysis runs.
type AnalysisRepository struct {
	db *sqlx.DB
}

// NewAnalysisRepository constructs a new repository.
func NewAnalysisRepository(db *sqlx.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create inserts a new analysis run.
func (r *AnalysisRepository) Create(ctx context.Context, run *models.AnalysisRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	const query = `INSERT INTO analysis_runs (id, user_id, project_name, status, file_stats, findings, tool_summary, high_issues, medium_issues, low_issues, total_issues, quality_score, error_message, created_at, updated_at, completed_at)
VALUES (:id, :user_id, :project_name, :status, :file_stats, :findings, :tool_summary, :high_issues, :medium_issues, :low_issues, :total_issues, :quality_score, :error_message, :created_at, :updated_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create analysis run: %w", err)
	}
	return nil
}

// FindByID returns a run by identifier.
func (r *AnalysisRepository) FindByID(ctx context.Context, id string) (*models.AnalysisRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM analysis_runs WHERE id = $1 LIMIT 1`, analysisColumns)
	var run models.AnalysisRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find analysis run: %w", err)
	}
	return &run, nil
}

// Update rewrites the mutable payload of a run.
func (r *AnalysisRepository) Update(ctx context.Context, run *models.AnalysisRun) error {
	run.UpdatedAt = time.Now().UTC()
	const query = `UPDATE analysis_runs SET project_name = :project_name, status = :status, file_stats = :file_stats, findings = :findings, tool_summary = :tool_summary, high_issues = :high_issues, medium_issues = :medium_issues, low_issues = :low_issues, total_issues = :total_issues, quality_score = :quality_score, error_message = :error_message, updated_at = :updated_at, completed_at = :completed_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("update analysis run: %w", err)
	}
	return nil
}

// UpdateStatus transitions the run lifecycle, optionally recording an error.
func (r *AnalysisRepository) UpdateStatus(ctx context.Context, id string, status models.AnalysisStatus, errorMessage *string) error {
	const query = `UPDATE analysis_runs SET status = $2, error_message = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, errorMessage, time.Now().UTC()); err != nil {
		return fmt.Errorf("update analysis status: %w", err)
	}
	return nil
}

// List returns runs per filter with total count.
func (r *AnalysisRepository) List(ctx context.Context, filter models.AnalysisFilter) ([]models.AnalysisRun, int, error) {
	base := "FROM analysis_runs"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.UserID != "" {
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, analysisColumns, base, whereClause, size, offset)
	var runs []models.AnalysisRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list analysis runs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count analysis runs: %w", err)
	}
	return runs, total, nil
}

// LatestCompletedByUser returns the user's most recent completed run,
// or sql.ErrNoRows when they have none.
func (r *AnalysisRepository) LatestCompletedByUser(ctx context.Context, userID string) (*models.AnalysisRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM analysis_runs WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`, analysisColumns)
	var run models.AnalysisRun
	if err := r.db.GetContext(ctx, &run, query, userID, models.AnalysisStatusCompleted); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("latest completed run: %w", err)
	}
	return &run, nil
}

// CompletedByUser returns every completed run for the user in
// chronological order. Used by the achievement stats builder.
func (r *AnalysisRepository) CompletedByUser(ctx context.Context, userID string) ([]models.AnalysisRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM analysis_runs WHERE user_id = $1 AND status = $2 ORDER BY created_at ASC`, analysisColumns)
	var runs []models.AnalysisRun
	if err := r.db.SelectContext(ctx, &runs, query, userID, models.AnalysisStatusCompleted); err != nil {
		return nil, fmt.Errorf("completed runs by user: %w", err)
	}
	return runs, nil
}

// Delete removes a run. Missions cascade via foreign key.
func (r *AnalysisRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM analysis_runs WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete analysis run: %w", err)
	}
	return nil
}

// UserSummary aggregates a user's completed run history.
func (r *AnalysisRepository) UserSummary(ctx context.Context, userID string) (*models.UserSummary, error) {
	const query = `SELECT COUNT(*) AS total_runs,
        COALESCE(AVG(quality_score),0) AS average_score,
        COALESCE(SUM(total_issues),0) AS total_issues
FROM analysis_runs
WHERE user_id = $1 AND status = $2`
	summary := models.UserSummary{UserID: userID}
	if err := r.db.QueryRowxContext(ctx, query, userID, models.AnalysisStatusCompleted).Scan(&summary.TotalRuns, &summary.AverageScore, &summary.TotalIssues); err != nil {
		return nil, fmt.Errorf("user analysis summary: %w", err)
	}
	return &summary, nil
}

// TopByAverageScore returns the leaderboard, best average score first,
// run count as tiebreak.
func (r *AnalysisRepository) TopByAverageScore(ctx context.Context, limit int) ([]models.RankingEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT u.id AS user_id, u.full_name,
        COUNT(a.id) AS run_count,
        COALESCE(AVG(a.quality_score),0) AS average_score,
        0 AS total_points
FROM users u
JOIN analysis_runs a ON a.user_id = u.id AND a.status = 'completed'
WHERE u.active = TRUE
GROUP BY u.id, u.full_name
ORDER BY average_score DESC, run_count DESC
LIMIT %d`, limit)
	var entries []models.RankingEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("ranking query: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// GlobalStats aggregates platform-wide ranking figures.
func (r *AnalysisRepository) GlobalStats(ctx context.Context) (*models.GlobalRankingStats, error) {
	const query = `SELECT COUNT(DISTINCT user_id) AS total_users,
        COUNT(*) AS total_runs,
        COALESCE(AVG(quality_score),0) AS average_score
FROM analysis_runs
WHERE status = 'completed' AND user_id IS NOT NULL`
	var stats models.GlobalRankingStats
	if err := r.db.QueryRowxContext(ctx, query).Scan(&stats.TotalUsers, &stats.TotalRuns, &stats.AverageScore); err != nil {
		return nil, fmt.Errorf("global ranking stats: %w", err)
	}
	return &stats, nil
}
