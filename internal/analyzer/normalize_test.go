package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codequest-edu/codequest-api/internal/models"
)

func TestNormalizeFlatList(t *testing.T) {
	results := []models.RawToolResult{
		{
			Tool:    "eslint",
			Success: true,
			Findings: []interface{}{
				map[string]interface{}{"ruleId": "no-unused-vars", "severity": float64(2)},
				map[string]interface{}{"ruleId": "eqeqeq", "severity": float64(1)},
			},
		},
	}

	findings, summary := Normalize(results)

	require.Len(t, findings, 2)
	assert.Equal(t, "eslint", findings[0].Tool)
	assert.Equal(t, "no-unused-vars", findings[0].Raw["ruleId"])
	assert.Equal(t, 1, summary.ToolsExecuted)
	assert.Equal(t, 1, summary.SuccessfulTools)
	assert.Equal(t, 0, summary.FailedTools)
	assert.Equal(t, 2, summary.Results["eslint"].FindingsCount)
}

func TestNormalizeCategoryMap(t *testing.T) {
	results := []models.RawToolResult{
		{
			Tool:    "spotbugs",
			Success: true,
			Findings: map[string]interface{}{
				"SECURITY": []interface{}{
					map[string]interface{}{"type": "SQL_INJECTION", "priority": "1"},
				},
				"STYLE": []interface{}{
					map[string]interface{}{"type": "DM_CONVERT_CASE", "priority": "3"},
				},
			},
		},
	}

	findings, summary := Normalize(results)

	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, "spotbugs", f.Tool)
	}
	assert.Equal(t, 2, summary.Results["spotbugs"].FindingsCount)
}

func TestNormalizeFailedToolContributesNothing(t *testing.T) {
	results := []models.RawToolResult{
		{Tool: "pmd", Success: false, Error: "pmd not installed"},
		{Tool: "semgrep", Success: true, Findings: []interface{}{
			map[string]interface{}{"check_id": "go.lang.security", "severity": "ERROR"},
		}},
	}

	findings, summary := Normalize(results)

	require.Len(t, findings, 1)
	assert.Equal(t, "semgrep", findings[0].Tool)
	assert.Equal(t, 2, summary.ToolsExecuted)
	assert.Equal(t, 1, summary.SuccessfulTools)
	assert.Equal(t, 1, summary.FailedTools)
	assert.Equal(t, "pmd not installed", summary.Results["pmd"].Error)
	assert.Equal(t, 0, summary.Results["pmd"].FindingsCount)
}

func TestNormalizeEmptyAndNilPayloads(t *testing.T) {
	results := []models.RawToolResult{
		{Tool: "eslint", Success: true, Findings: nil},
		{Tool: "pmd", Success: true, Findings: []interface{}{}},
		{Tool: "semgrep", Success: true, Findings: "unexpected shape"},
	}

	findings, summary := Normalize(results)

	assert.Empty(t, findings)
	assert.Equal(t, 3, summary.SuccessfulTools)
	for _, tool := range []string{"eslint", "pmd", "semgrep"} {
		assert.Equal(t, 0, summary.Results[tool].FindingsCount)
	}
}

func TestNormalizeSkipsNonObjectEntries(t *testing.T) {
	results := []models.RawToolResult{
		{Tool: "eslint", Success: true, Findings: []interface{}{
			"not a finding",
			map[string]interface{}{"ruleId": "semi"},
			float64(42),
		}},
	}

	findings, summary := Normalize(results)

	require.Len(t, findings, 1)
	assert.Equal(t, "semi", findings[0].Raw["ruleId"])
	assert.Equal(t, 1, summary.Results["eslint"].FindingsCount)
}
