package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codequest-edu/codequest-api/internal/models"
)

func eslintFinding(severity float64) models.NormalizedFinding {
	return models.NormalizedFinding{
		Tool: "eslint",
		Raw:  map[string]interface{}{"severity": severity},
	}
}

func TestComputeMetricsCleanRunScores100(t *testing.T) {
	m := ComputeMetrics(nil)

	assert.Equal(t, 0, m.TotalIssues)
	assert.Equal(t, 100.0, m.QualityScore)
}

func TestComputeMetricsCountsAndScore(t *testing.T) {
	findings := []models.NormalizedFinding{
		eslintFinding(2), // high
		eslintFinding(1), // medium
		eslintFinding(1), // medium
		eslintFinding(0), // low
	}

	m := ComputeMetrics(findings)

	assert.Equal(t, 1, m.HighIssues)
	assert.Equal(t, 2, m.MediumIssues)
	assert.Equal(t, 1, m.LowIssues)
	assert.Equal(t, 4, m.TotalIssues)
	// 100 - (10*1 + 5*2 + 2*1)
	assert.Equal(t, 78.0, m.QualityScore)
}

func TestComputeMetricsScoreFloorsAtZero(t *testing.T) {
	findings := make([]models.NormalizedFinding, 0, 15)
	for i := 0; i < 15; i++ {
		findings = append(findings, eslintFinding(2))
	}

	m := ComputeMetrics(findings)

	assert.Equal(t, 15, m.HighIssues)
	assert.Equal(t, 0.0, m.QualityScore)
}
