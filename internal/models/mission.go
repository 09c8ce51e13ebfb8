package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MissionStatus captures the lifecycle of a mission. Transitions out of
// fixed or skipped are not allowed.
type MissionStatus string

const (
	MissionStatusPending MissionStatus = "pending"
	MissionStatusFixed   MissionStatus = "fixed"
	MissionStatusSkipped MissionStatus = "skipped"
)

// Closed reports whether the status is terminal.
func (s MissionStatus) Closed() bool {
	return s == MissionStatusFixed || s == MissionStatusSkipped
}

// MissionMetadata preserves the originating tool payload, persisted as JSONB.
type MissionMetadata struct {
	Tool string                 `json:"tool"`
	Raw  map[string]interface{} `json:"raw,omitempty"`
}

// Value marshals the metadata to JSON for persistence.
func (m MissionMetadata) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal mission metadata: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the metadata.
func (m *MissionMetadata) Scan(value interface{}) error {
	return scanJSON(value, m, "MissionMetadata")
}

// Mission is a persistent remediation task derived from a finding.
type Mission struct {
	ID          string          `db:"id" json:"id"`
	RunID       string          `db:"run_id" json:"run_id"`
	UserID      *string         `db:"user_id" json:"user_id,omitempty"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	Severity    Severity        `db:"severity" json:"severity"`
	Tool        string          `db:"tool" json:"tool"`
	FilePath    string          `db:"file_path" json:"file_path"`
	LineStart   int             `db:"line_start" json:"line_start"`
	LineEnd     int             `db:"line_end" json:"line_end"`
	RuleID      string          `db:"rule_id" json:"rule_id"`
	Status      MissionStatus   `db:"status" json:"status"`
	Metadata    MissionMetadata `db:"metadata" json:"metadata"`
	FixedAt     *time.Time      `db:"fixed_at" json:"fixed_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// MissionFindingLink records which finding produced which mission.
// It is the lookup table used to re-associate findings with missions on
// re-submission instead of mutating finding payloads in place.
type MissionFindingLink struct {
	ID        string    `db:"id" json:"id"`
	MissionID string    `db:"mission_id" json:"mission_id"`
	RunID     string    `db:"run_id" json:"run_id"`
	Tool      string    `db:"tool" json:"tool"`
	FilePath  string    `db:"file_path" json:"file_path"`
	Line      int       `db:"line" json:"line"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MissionFilter lists missions for a run or user.
type MissionFilter struct {
	RunID    string
	UserID   string
	Status   *MissionStatus
	Page     int
	PageSize int
}

// MissionSummary aggregates mission state for a run.
type MissionSummary struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Fixed   int `json:"fixed"`
	Skipped int `json:"skipped"`
}
