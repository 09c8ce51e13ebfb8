package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AnalysisStatus captures the lifecycle of an analysis run.
type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "pending"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// FileStats is the inventory of an extracted project workspace,
// persisted as JSONB on the run.
type FileStats struct {
	TotalFiles  int `json:"total_files"`
	JavaFiles   int `json:"java_files"`
	PythonFiles int `json:"python_files"`
	JSFiles     int `json:"js_files"`
	LinesOfCode int `json:"lines_of_code"`
}

// Value marshals the stats to JSON for persistence.
func (f FileStats) Value() (driver.Value, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal file stats: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the stats.
func (f *FileStats) Scan(value interface{}) error {
	return scanJSON(value, f, "FileStats")
}

// AnalysisRun is a single submission of a project and its scan outcome.
type AnalysisRun struct {
	ID           string         `db:"id" json:"id"`
	UserID       *string        `db:"user_id" json:"user_id,omitempty"`
	ProjectName  string         `db:"project_name" json:"project_name"`
	Status       AnalysisStatus `db:"status" json:"status"`
	FileStats    *FileStats     `db:"file_stats" json:"file_stats,omitempty"`
	Findings     FindingList    `db:"findings" json:"findings,omitempty"`
	ToolSummary  *ToolSummary   `db:"tool_summary" json:"tool_summary,omitempty"`
	HighIssues   int            `db:"high_issues" json:"high_issues"`
	MediumIssues int            `db:"medium_issues" json:"medium_issues"`
	LowIssues    int            `db:"low_issues" json:"low_issues"`
	TotalIssues  int            `db:"total_issues" json:"total_issues"`
	QualityScore float64        `db:"quality_score" json:"quality_score"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
	CompletedAt  *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

// AnalysisFilter lists runs for a user or globally.
type AnalysisFilter struct {
	UserID   string
	Status   *AnalysisStatus
	Page     int
	PageSize int
}

// RunMetrics holds the per-severity counts and score derived from findings.
type RunMetrics struct {
	HighIssues   int     `json:"high_issues"`
	MediumIssues int     `json:"medium_issues"`
	LowIssues    int     `json:"low_issues"`
	TotalIssues  int     `json:"total_issues"`
	QualityScore float64 `json:"quality_score"`
}

// UserSummary aggregates a user's analysis history.
type UserSummary struct {
	UserID       string        `json:"user_id"`
	TotalRuns    int           `json:"total_runs"`
	AverageScore float64       `json:"average_score"`
	TotalIssues  int           `json:"total_issues"`
	RecentRuns   []AnalysisRun `json:"recent_runs,omitempty"`
}
