package analyzer

import (
	"fmt"
	"strings"

	"github.com/codequest-edu/codequest-api/internal/models"
)

// Classify maps a tool-specific finding payload onto a severity bucket.
// It is total: any unexpected shape yields medium rather than an error.
func Classify(tool string, raw map[string]interface{}) models.Severity {
	switch strings.ToLower(tool) {
	case "spotbugs":
		return classifySpotbugs(raw)
	case "pmd":
		return classifyPMD(raw)
	case "semgrep":
		return classifySemgrep(raw)
	case "eslint":
		return classifyESLint(raw)
	default:
		return models.SeverityMedium
	}
}

func classifySpotbugs(raw map[string]interface{}) models.Severity {
	priority := lookupString(raw, "priority")
	if priority == "" {
		// XML-derived payloads keep attributes under "$".
		if attrs, ok := raw["$"].(map[string]interface{}); ok {
			priority = lookupString(attrs, "priority")
		}
	}
	switch priority {
	case "1":
		return models.SeverityHigh
	case "2":
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func classifyPMD(raw map[string]interface{}) models.Severity {
	switch lookupString(raw, "priority") {
	case "1", "2":
		return models.SeverityHigh
	case "3":
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func classifySemgrep(raw map[string]interface{}) models.Severity {
	severity := lookupString(raw, "severity")
	if severity == "" {
		if extra, ok := raw["extra"].(map[string]interface{}); ok {
			severity = lookupString(extra, "severity")
		}
	}
	switch strings.ToLower(severity) {
	case "error":
		return models.SeverityHigh
	case "warning":
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func classifyESLint(raw map[string]interface{}) models.Severity {
	switch lookupString(raw, "severity") {
	case "2":
		return models.SeverityHigh
	case "1":
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// lookupString fetches a key and renders scalar values as strings, so
// numeric severities compare the same as their string forms.
func lookupString(raw map[string]interface{}, key string) string {
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%d", int(v))
	case int:
		return fmt.Sprintf("%d", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return ""
	}
}
