package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codequest-edu/codequest-api/internal/models"
)

func TestSameProject(t *testing.T) {
	cases := []struct {
		name    string
		old     *models.FileStats
		current *models.FileStats
		want    bool
	}{
		{
			name:    "identical stats",
			old:     &models.FileStats{TotalFiles: 20, JavaFiles: 20, LinesOfCode: 1500},
			current: &models.FileStats{TotalFiles: 20, JavaFiles: 20, LinesOfCode: 1500},
			want:    true,
		},
		{
			name:    "small refactor of same project",
			old:     &models.FileStats{TotalFiles: 20, JavaFiles: 18, PythonFiles: 0, JSFiles: 2, LinesOfCode: 1500},
			current: &models.FileStats{TotalFiles: 22, JavaFiles: 19, PythonFiles: 0, JSFiles: 3, LinesOfCode: 1600},
			want:    true,
		},
		{
			name:    "different language mix and size",
			old:     &models.FileStats{TotalFiles: 20, JavaFiles: 20, LinesOfCode: 1500},
			current: &models.FileStats{TotalFiles: 8, PythonFiles: 8, LinesOfCode: 400},
			want:    false,
		},
		{
			name:    "same language mix despite swapped languages when scale matches",
			old:     &models.FileStats{TotalFiles: 20, JavaFiles: 20, LinesOfCode: 1500},
			current: &models.FileStats{TotalFiles: 20, PythonFiles: 20, LinesOfCode: 1500},
			want:    true,
		},
		{
			name:    "loc ratio rescues shrinking file count",
			old:     &models.FileStats{TotalFiles: 40, JavaFiles: 30, JSFiles: 10, LinesOfCode: 2000},
			current: &models.FileStats{TotalFiles: 26, JavaFiles: 22, JSFiles: 4, LinesOfCode: 1800},
			want:    true,
		},
		{
			name:    "ratios alone without type matches",
			old:     &models.FileStats{TotalFiles: 20, JavaFiles: 20, LinesOfCode: 1000},
			current: &models.FileStats{TotalFiles: 19, PythonFiles: 10, JSFiles: 9, LinesOfCode: 950},
			want:    true,
		},
		{
			name:    "nil old side",
			old:     nil,
			current: &models.FileStats{TotalFiles: 10},
			want:    false,
		},
		{
			name:    "nil new side",
			old:     &models.FileStats{TotalFiles: 10},
			current: nil,
			want:    false,
		},
		{
			name:    "two empty projects",
			old:     &models.FileStats{},
			current: &models.FileStats{},
			want:    false,
		},
		{
			name:    "entirely different scale",
			old:     &models.FileStats{TotalFiles: 5, JSFiles: 5, LinesOfCode: 100},
			current: &models.FileStats{TotalFiles: 100, JSFiles: 100, LinesOfCode: 9000},
			want:    false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SameProject(tc.old, tc.current))
		})
	}
}

func TestSameProjectIsSymmetric(t *testing.T) {
	a := &models.FileStats{TotalFiles: 20, JavaFiles: 18, JSFiles: 2, LinesOfCode: 1500}
	b := &models.FileStats{TotalFiles: 24, JavaFiles: 20, JSFiles: 4, LinesOfCode: 1800}

	assert.Equal(t, SameProject(a, b), SameProject(b, a))
}
