package analyzer

import (
	"math"

	"github.com/codequest-edu/codequest-api/internal/models"
)

// ComputeMetrics classifies every normalized finding and derives the
// per-severity counts plus the quality score. A clean run scores 100;
// otherwise each severity subtracts its weight, floored at zero.
func ComputeMetrics(findings []models.NormalizedFinding) models.RunMetrics {
	m := models.RunMetrics{}

	for _, finding := range findings {
		switch Classify(finding.Tool, finding.Raw) {
		case models.SeverityHigh:
			m.HighIssues++
		case models.SeverityMedium:
			m.MediumIssues++
		default:
			m.LowIssues++
		}
	}

	m.TotalIssues = m.HighIssues + m.MediumIssues + m.LowIssues
	m.QualityScore = qualityScore(m.HighIssues, m.MediumIssues, m.LowIssues)

	return m
}

func qualityScore(high, medium, low int) float64 {
	if high+medium+low == 0 {
		return 100
	}

	penalty := float64(high*models.SeverityHigh.Weight() +
		medium*models.SeverityMedium.Weight() +
		low*models.SeverityLow.Weight())

	score := 100 - penalty
	if score < 0 {
		score = 0
	}

	return math.Round(score*100) / 100
}
