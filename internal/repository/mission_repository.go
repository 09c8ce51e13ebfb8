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

const missionColumns = `id, run_id, user_id, title, description, severity, tool, file_path, line_start, line_end, rule_id, status, metadata, fixed_at, created_at, updated_at`

// MissionRepository manages persistence for missions and the
// finding-to-mission link table.
type MissionRepository struct {
	db *sqlx.DB
}

// NewMissionRepository constructs a new repository.
func NewMissionRepository(db *sqlx.DB) *MissionRepository {
	return &MissionRepository{db: db}
}

// CreateBatch inserts missions preserving the slice order.
func (r *MissionRepository) CreateBatch(ctx context.Context, missions []models.Mission) error {
	if len(missions) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range missions {
		if missions[i].ID == "" {
			missions[i].ID = uuid.NewString()
		}
		if missions[i].CreatedAt.IsZero() {
			missions[i].CreatedAt = now
		}
		missions[i].UpdatedAt = now
	}

	const query = `INSERT INTO missions (id, run_id, user_id, title, description, severity, tool, file_path, line_start, line_end, rule_id, status, metadata, fixed_at, created_at, updated_at)
VALUES (:id, :run_id, :user_id, :title, :description, :severity, :tool, :file_path, :line_start, :line_end, :rule_id, :status, :metadata, :fixed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, missions); err != nil {
		return fmt.Errorf("create missions: %w", err)
	}
	return nil
}

// FindByID returns a mission by identifier.
func (r *MissionRepository) FindByID(ctx context.Context, id string) (*models.Mission, error) {
	query := fmt.Sprintf(`SELECT %s FROM missions WHERE id = $1 LIMIT 1`, missionColumns)
	var mission models.Mission
	if err := r.db.GetContext(ctx, &mission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find mission: %w", err)
	}
	return &mission, nil
}

// List returns missions per filter with total count.
func (r *MissionRepository) List(ctx context.Context, filter models.MissionFilter) ([]models.Mission, int, error) {
	base := "FROM missions"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.RunID != "" {
		where = append(where, fmt.Sprintf("run_id = $%d", len(args)+1))
		args = append(args, filter.RunID)
	}
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
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY created_at ASC LIMIT %d OFFSET %d`, missionColumns, base, whereClause, size, offset)
	var missions []models.Mission
	if err := r.db.SelectContext(ctx, &missions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list missions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count missions: %w", err)
	}
	return missions, total, nil
}

// OpenByRun returns the run's missions still awaiting resolution, in
// creation order.
func (r *MissionRepository) OpenByRun(ctx context.Context, runID string) ([]models.Mission, error) {
	query := fmt.Sprintf(`SELECT %s FROM missions WHERE run_id = $1 AND status = $2 ORDER BY created_at ASC`, missionColumns)
	var missions []models.Mission
	if err := r.db.SelectContext(ctx, &missions, query, runID, models.MissionStatusPending); err != nil {
		return nil, fmt.Errorf("open missions by run: %w", err)
	}
	return missions, nil
}

// AllByUser returns every mission owned by the user in creation order.
// Used by the achievement stats builder.
func (r *MissionRepository) AllByUser(ctx context.Context, userID string) ([]models.Mission, error) {
	query := fmt.Sprintf(`SELECT %s FROM missions WHERE user_id = $1 ORDER BY created_at ASC`, missionColumns)
	var missions []models.Mission
	if err := r.db.SelectContext(ctx, &missions, query, userID); err != nil {
		return nil, fmt.Errorf("missions by user: %w", err)
	}
	return missions, nil
}

// UpdateStatus transitions a mission, stamping fixed_at when it closes
// as fixed.
func (r *MissionRepository) UpdateStatus(ctx context.Context, id string, status models.MissionStatus, fixedAt *time.Time) error {
	const query = `UPDATE missions SET status = $2, fixed_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, fixedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update mission status: %w", err)
	}
	return nil
}

// SummaryByRun aggregates mission state for a run.
func (r *MissionRepository) SummaryByRun(ctx context.Context, runID string) (*models.MissionSummary, error) {
	const query = `SELECT COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),0) AS pending,
        COALESCE(SUM(CASE WHEN status = 'fixed' THEN 1 ELSE 0 END),0) AS fixed,
        COALESCE(SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END),0) AS skipped
FROM missions WHERE run_id = $1`
	var summary models.MissionSummary
	if err := r.db.QueryRowxContext(ctx, query, runID).Scan(&summary.Total, &summary.Pending, &summary.Fixed, &summary.Skipped); err != nil {
		return nil, fmt.Errorf("mission summary: %w", err)
	}
	return &summary, nil
}

// DeleteByRun removes every mission belonging to a run.
func (r *MissionRepository) DeleteByRun(ctx context.Context, runID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM missions WHERE run_id = $1", runID); err != nil {
		return fmt.Errorf("delete missions by run: %w", err)
	}
	return nil
}

// CreateFindingLinks records which finding produced which mission.
func (r *MissionRepository) CreateFindingLinks(ctx context.Context, links []models.MissionFindingLink) error {
	if len(links) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range links {
		if links[i].ID == "" {
			links[i].ID = uuid.NewString()
		}
		if links[i].CreatedAt.IsZero() {
			links[i].CreatedAt = now
		}
	}

	const query = `INSERT INTO mission_finding_links (id, mission_id, run_id, tool, file_path, line, message, created_at)
VALUES (:id, :mission_id, :run_id, :tool, :file_path, :line, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, links); err != nil {
		return fmt.Errorf("create finding links: %w", err)
	}
	return nil
}

// LinksByRun returns the finding links recorded for a run.
func (r *MissionRepository) LinksByRun(ctx context.Context, runID string) ([]models.MissionFindingLink, error) {
	const query = `SELECT id, mission_id, run_id, tool, file_path, line, message, created_at FROM mission_finding_links WHERE run_id = $1 ORDER BY created_at ASC`
	var links []models.MissionFindingLink
	if err := r.db.SelectContext(ctx, &links, query, runID); err != nil {
		return nil, fmt.Errorf("finding links by run: %w", err)
	}
	return links, nil
}

// DeleteLinksByRun removes the finding links of a run.
func (r *MissionRepository) DeleteLinksByRun(ctx context.Context, runID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM mission_finding_links WHERE run_id = $1", runID); err != nil {
		return fmt.Errorf("delete finding links by run: %w", err)
	}
	return nil
}
