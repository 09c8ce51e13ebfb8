package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codequest-edu/codequest-api/internal/models"
)

func TestToCanonicalSpotbugs(t *testing.T) {
	raw := map[string]interface{}{
		"type":        "SQL_INJECTION",
		"longMessage": "SQL injection risk in query builder",
		"sourceLine": map[string]interface{}{
			"sourcefile": "UserDao.java",
			"start":      float64(42),
			"end":        float64(45),
		},
	}

	got := ToCanonical("spotbugs", raw)

	assert.Equal(t, models.CanonicalFinding{
		Path:      "UserDao.java",
		LineStart: 42,
		LineEnd:   45,
		Message:   "SQL injection risk in query builder",
		RuleID:    "SQL_INJECTION",
	}, got)
}

func TestToCanonicalPMD(t *testing.T) {
	raw := map[string]interface{}{
		"rule": "UnusedLocalVariable",
		"text": "Avoid unused local variables",
		"sourceLine": map[string]interface{}{
			"sourcefile": "Main.java",
			"beginline":  float64(10),
			"endline":    float64(10),
		},
	}

	got := ToCanonical("pmd", raw)

	assert.Equal(t, "Main.java", got.Path)
	assert.Equal(t, 10, got.LineStart)
	assert.Equal(t, "UnusedLocalVariable", got.RuleID)
}

func TestToCanonicalSemgrep(t *testing.T) {
	raw := map[string]interface{}{
		"check_id": "python.lang.security.eval",
		"path":     "app/views.py",
		"start":    map[string]interface{}{"line": float64(7)},
		"end":      map[string]interface{}{"line": float64(9)},
		"extra":    map[string]interface{}{"message": "Avoid eval"},
	}

	got := ToCanonical("semgrep", raw)

	assert.Equal(t, "app/views.py", got.Path)
	assert.Equal(t, 7, got.LineStart)
	assert.Equal(t, 9, got.LineEnd)
	assert.Equal(t, "Avoid eval", got.Message)
	assert.Equal(t, "python.lang.security.eval", got.RuleID)
}

func TestToCanonicalESLint(t *testing.T) {
	raw := map[string]interface{}{
		"filePath": "src/index.js",
		"line":     float64(3),
		"message":  "Missing semicolon",
		"ruleId":   "semi",
	}

	got := ToCanonical("eslint", raw)

	assert.Equal(t, "src/index.js", got.Path)
	assert.Equal(t, 3, got.LineStart)
	assert.Equal(t, 3, got.LineEnd)
	assert.Equal(t, "semi", got.RuleID)
}

func TestToCanonicalGenericFallbacks(t *testing.T) {
	raw := map[string]interface{}{
		"file":    "lib/util.py",
		"line":    float64(12),
		"message": "Something odd",
	}

	got := ToCanonical("unknown-tool", raw)

	assert.Equal(t, "lib/util.py", got.Path)
	assert.Equal(t, 12, got.LineStart)
	assert.Equal(t, "Something odd", got.Message)
}

func TestToCanonicalMissingFieldsStayZero(t *testing.T) {
	got := ToCanonical("eslint", map[string]interface{}{})

	assert.Equal(t, models.CanonicalFinding{}, got)
}
