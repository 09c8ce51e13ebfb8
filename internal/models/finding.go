package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RawToolResult is the untyped outcome of one tool invocation.
// Findings keeps whatever shape the tool emitted: a flat list or a
// map of category to list.
type RawToolResult struct {
	Tool     string      `json:"tool"`
	Success  bool        `json:"success"`
	Findings interface{} `json:"findings,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// NormalizedFinding is a single finding tagged with its originating tool.
// Raw preserves the tool-specific payload for downstream classification.
type NormalizedFinding struct {
	Tool string                 `json:"tool"`
	Raw  map[string]interface{} `json:"raw"`
}

// CanonicalFinding is the tool-agnostic location and identity of a finding.
type CanonicalFinding struct {
	Path      string `json:"path"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Message   string `json:"message"`
	RuleID    string `json:"rule_id"`
}

// ToolOutcome summarises one tool's contribution to a run.
type ToolOutcome struct {
	Success       bool   `json:"success"`
	FindingsCount int    `json:"findings_count"`
	Error         string `json:"error,omitempty"`
}

// ToolSummary aggregates tool execution results for a run, persisted as JSONB.
type ToolSummary struct {
	ToolsExecuted   int                    `json:"tools_executed"`
	SuccessfulTools int                    `json:"successful_tools"`
	FailedTools     int                    `json:"failed_tools"`
	Results         map[string]ToolOutcome `json:"results"`
}

// Value marshals the summary to JSON for persistence.
func (t ToolSummary) Value() (driver.Value, error) {
	if t.Results == nil {
		t.Results = map[string]ToolOutcome{}
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal tool summary: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the summary.
func (t *ToolSummary) Scan(value interface{}) error {
	return scanJSON(value, t, "ToolSummary")
}

// FindingList persists normalized findings as a JSONB column.
type FindingList []NormalizedFinding

// Value marshals the findings to JSON for persistence.
func (f FindingList) Value() (driver.Value, error) {
	if f == nil {
		f = FindingList{}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal findings: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the finding list.
func (f *FindingList) Scan(value interface{}) error {
	return scanJSON(value, f, "FindingList")
}

func scanJSON(value, dest interface{}, label string) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for %s", value, label)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", label, err)
	}
	return nil
}
