package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/codequest-edu/codequest-api/internal/models"
)

const achievementColumns = `id, user_id, type, name, description, category, points, progress_current, progress_target, unlocked, unlocked_at, created_at, updated_at`

// AchievementRepository manages per-user achievement rows.
type AchievementRepository struct {
	db *sqlx.DB
}

// NewAchievementRepository constructs a new repository.
func NewAchievementRepository(db *sqlx.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// InitCatalog seeds the full achievement catalog for a new user.
// Existing rows are left untouched.
func (r *AchievementRepository) InitCatalog(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	rows := make([]models.Achievement, 0)
	for _, def := range models.AchievementCatalog() {
		rows = append(rows, models.Achievement{
			ID:             uuid.NewString(),
			UserID:         userID,
			Type:           def.Type,
			Name:           def.Name,
			Description:    def.Description,
			Category:       def.Category,
			Points:         def.Points,
			ProgressTarget: def.Target,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	const query = `INSERT INTO achievements (id, user_id, type, name, description, category, points, progress_current, progress_target, unlocked, unlocked_at, created_at, updated_at)
VALUES (:id, :user_id, :type, :name, :description, :category, :points, :progress_current, :progress_target, :unlocked, :unlocked_at, :created_at, :updated_at)
ON CONFLICT (user_id, type) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("init achievement catalog: %w", err)
	}
	return nil
}

// ListByUser returns every achievement row for a user in catalog order.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string) ([]models.Achievement, error) {
	query := fmt.Sprintf(`SELECT %s FROM achievements WHERE user_id = $1 ORDER BY created_at ASC, type ASC`, achievementColumns)
	var achievements []models.Achievement
	if err := r.db.SelectContext(ctx, &achievements, query, userID); err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return achievements, nil
}

// FindByUserAndType returns a single achievement row.
func (r *AchievementRepository) FindByUserAndType(ctx context.Context, userID string, achievementType models.AchievementType) (*models.Achievement, error) {
	query := fmt.Sprintf(`SELECT %s FROM achievements WHERE user_id = $1 AND type = $2 LIMIT 1`, achievementColumns)
	var achievement models.Achievement
	if err := r.db.GetContext(ctx, &achievement, query, userID, achievementType); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find achievement: %w", err)
	}
	return &achievement, nil
}

// UpdateProgress stores the latest measured progress toward a locked
// achievement, capped at its target. Unlocked rows keep their final value.
func (r *AchievementRepository) UpdateProgress(ctx context.Context, userID string, achievementType models.AchievementType, current int) error {
	const query = `UPDATE achievements
SET progress_current = LEAST($3, progress_target), updated_at = NOW()
WHERE user_id = $1 AND type = $2 AND unlocked = FALSE AND progress_current <> LEAST($3, progress_target)`
	if _, err := r.db.ExecContext(ctx, query, userID, achievementType, current); err != nil {
		return fmt.Errorf("update achievement progress: %w", err)
	}
	return nil
}

// Unlock marks an achievement as earned. Already-unlocked rows are not
// touched, keeping the original unlock timestamp.
func (r *AchievementRepository) Unlock(ctx context.Context, userID string, achievementType models.AchievementType, at time.Time) (bool, error) {
	const query = `UPDATE achievements SET unlocked = TRUE, unlocked_at = $3, updated_at = $3, progress_current = progress_target WHERE user_id = $1 AND type = $2 AND unlocked = FALSE`
	result, err := r.db.ExecContext(ctx, query, userID, achievementType, at)
	if err != nil {
		return false, fmt.Errorf("unlock achievement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlock achievement rows: %w", err)
	}
	return affected > 0, nil
}

// TotalPoints sums the points of a user's unlocked achievements.
func (r *AchievementRepository) TotalPoints(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COALESCE(SUM(points),0) FROM achievements WHERE user_id = $1 AND unlocked = TRUE`
	var total int
	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("total achievement points: %w", err)
	}
	return total, nil
}

// UnlockedCount returns how many achievements the user has earned.
func (r *AchievementRepository) UnlockedCount(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM achievements WHERE user_id = $1 AND unlocked = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("unlocked achievement count: %w", err)
	}
	return count, nil
}
