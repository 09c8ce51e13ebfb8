package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codequest-edu/codequest-api/internal/models"
)

func TestCreateMissionBatchGeneratesIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMissionRepository(db)

	mock.ExpectExec("INSERT INTO missions").WillReturnResult(sqlmock.NewResult(2, 2))

	missions := []models.Mission{
		{RunID: "run-1", Title: "Fix SQL injection", Severity: models.SeverityHigh, Tool: "spotbugs", Status: models.MissionStatusPending},
		{RunID: "run-1", Title: "Remove unused variable", Severity: models.SeverityLow, Tool: "pmd", Status: models.MissionStatusPending},
	}
	err := repo.CreateBatch(context.Background(), missions)
	require.NoError(t, err)
	assert.NotEmpty(t, missions[0].ID)
	assert.NotEmpty(t, missions[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMissionBatchEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMissionRepository(db)

	err := repo.CreateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenByRun(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMissionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "run_id", "user_id", "title", "description", "severity", "tool", "file_path", "line_start", "line_end", "rule_id", "status", "metadata", "fixed_at", "created_at", "updated_at"}).
		AddRow("m1", "run-1", "u1", "Fix it", "desc", string(models.SeverityHigh), "eslint", "src/a.js", 10, 10, "semi",
			string(models.MissionStatusPending), []byte(`{"tool":"eslint"}`), nil, now, now)
	mock.ExpectQuery("SELECT .* FROM missions WHERE run_id = ").
		WithArgs("run-1", models.MissionStatusPending).
		WillReturnRows(rows)

	missions, err := repo.OpenByRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, missions, 1)
	assert.Equal(t, "eslint", missions[0].Metadata.Tool)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissionStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMissionRepository(db)

	fixedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE missions SET status = $2, fixed_at = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("m1", models.MissionStatusFixed, fixedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "m1", models.MissionStatusFixed, &fixedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMissionSummaryByRun(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMissionRepository(db)

	rows := sqlmock.NewRows([]string{"total", "pending", "fixed", "skipped"}).AddRow(5, 2, 2, 1)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS total").
		WithArgs("run-1").
		WillReturnRows(rows)

	summary, err := repo.SummaryByRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 2, summary.Fixed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFindingLinks(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMissionRepository(db)

	mock.ExpectExec("INSERT INTO mission_finding_links").WillReturnResult(sqlmock.NewResult(1, 1))

	links := []models.MissionFindingLink{
		{MissionID: "m1", RunID: "run-1", Tool: "pmd", FilePath: "Main.java", Line: 10, Message: "Avoid unused"},
	}
	err := repo.CreateFindingLinks(context.Background(), links)
	require.NoError(t, err)
	assert.NotEmpty(t, links[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
