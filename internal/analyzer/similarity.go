package analyzer

import "github.com/codequest-edu/codequest-api/internal/models"

const (
	typeMatchThreshold  = 0.7
	totalRatioThreshold = 0.7
	locRatioThreshold   = 0.6
	strongTotalRatio    = 0.8
)

// SameProject decides whether two workspace inventories describe the same
// project. The comparison is symmetric. Either side missing means the
// projects are treated as different; so do two empty inventories, since
// every ratio degenerates to zero.
func SameProject(old, current *models.FileStats) bool {
	if old == nil || current == nil {
		return false
	}

	typeMatches := 0
	pairs := [][2]int{
		{old.JavaFiles, current.JavaFiles},
		{old.PythonFiles, current.PythonFiles},
		{old.JSFiles, current.JSFiles},
	}
	for _, pair := range pairs {
		if typeMatch(pair[0], pair[1]) {
			typeMatches++
		}
	}

	totalRatio := ratio(old.TotalFiles, current.TotalFiles)
	locRatio := ratio(old.LinesOfCode, current.LinesOfCode)

	switch {
	case typeMatches >= 2 && totalRatio >= totalRatioThreshold:
		return true
	case typeMatches >= 2 && locRatio >= locRatioThreshold:
		return true
	case totalRatio >= strongTotalRatio && locRatio >= locRatioThreshold:
		return true
	default:
		return false
	}
}

// typeMatch holds when both counts are zero, or both are nonzero and
// within the ratio threshold.
func typeMatch(a, b int) bool {
	if a == 0 && b == 0 {
		return true
	}
	return ratio(a, b) >= typeMatchThreshold
}

// ratio returns min/max of the two counts, zero when either side is zero.
func ratio(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}
