package analyzer

import (
	"strings"

	"github.com/codequest-edu/codequest-api/internal/models"
)

// ToCanonical extracts the tool-agnostic location and identity of a
// finding. Every per-tool field fallback chain lives here; first match
// wins across candidate keys. Missing fields come back zero-valued.
func ToCanonical(tool string, raw map[string]interface{}) models.CanonicalFinding {
	switch strings.ToLower(tool) {
	case "spotbugs":
		return canonicalSpotbugs(raw)
	case "pmd":
		return canonicalPMD(raw)
	case "semgrep":
		return canonicalSemgrep(raw)
	case "eslint":
		return canonicalESLint(raw)
	default:
		return canonicalGeneric(raw)
	}
}

func canonicalSpotbugs(raw map[string]interface{}) models.CanonicalFinding {
	c := models.CanonicalFinding{
		Message: firstString(raw, "longMessage", "shortMessage", "message"),
		RuleID:  firstString(raw, "type", "abbrev"),
	}
	if line, ok := nestedMap(raw, "sourceLine"); ok {
		c.Path = firstString(line, "sourcefile", "sourcepath")
		c.LineStart = firstInt(line, "start")
		c.LineEnd = firstInt(line, "end")
	}
	if c.Path == "" {
		c.Path = firstString(raw, "file", "path")
	}
	if c.LineStart == 0 {
		c.LineStart = firstInt(raw, "line")
	}
	if c.LineEnd == 0 {
		c.LineEnd = c.LineStart
	}
	return c
}

func canonicalPMD(raw map[string]interface{}) models.CanonicalFinding {
	c := models.CanonicalFinding{
		Message: firstString(raw, "text", "message", "description"),
		RuleID:  firstString(raw, "rule", "ruleId"),
	}
	if line, ok := nestedMap(raw, "sourceLine"); ok {
		c.Path = firstString(line, "sourcefile", "filename")
		c.LineStart = firstInt(line, "beginline")
		c.LineEnd = firstInt(line, "endline")
	}
	if c.Path == "" {
		c.Path = firstString(raw, "filename", "file", "path")
	}
	if c.LineStart == 0 {
		c.LineStart = firstInt(raw, "beginline", "line")
	}
	if c.LineEnd == 0 {
		c.LineEnd = firstInt(raw, "endline")
	}
	if c.LineEnd == 0 {
		c.LineEnd = c.LineStart
	}
	return c
}

func canonicalSemgrep(raw map[string]interface{}) models.CanonicalFinding {
	c := models.CanonicalFinding{
		Path:   firstString(raw, "path", "file"),
		RuleID: firstString(raw, "check_id", "ruleId"),
	}
	if start, ok := nestedMap(raw, "start"); ok {
		c.LineStart = firstInt(start, "line")
	}
	if end, ok := nestedMap(raw, "end"); ok {
		c.LineEnd = firstInt(end, "line")
	}
	c.Message = firstString(raw, "message")
	if c.Message == "" {
		if extra, ok := nestedMap(raw, "extra"); ok {
			c.Message = firstString(extra, "message")
		}
	}
	if c.LineStart == 0 {
		c.LineStart = firstInt(raw, "line")
	}
	if c.LineEnd == 0 {
		c.LineEnd = c.LineStart
	}
	return c
}

func canonicalESLint(raw map[string]interface{}) models.CanonicalFinding {
	c := models.CanonicalFinding{
		Path:      firstString(raw, "filePath", "file", "path"),
		LineStart: firstInt(raw, "line"),
		LineEnd:   firstInt(raw, "endLine"),
		Message:   firstString(raw, "message"),
		RuleID:    firstString(raw, "ruleId"),
	}
	if c.LineEnd == 0 {
		c.LineEnd = c.LineStart
	}
	return c
}

func canonicalGeneric(raw map[string]interface{}) models.CanonicalFinding {
	c := models.CanonicalFinding{
		Path:      firstString(raw, "file", "path", "filename", "filePath"),
		LineStart: firstInt(raw, "line", "beginline"),
		Message:   firstString(raw, "message", "text", "description"),
		RuleID:    firstString(raw, "rule", "ruleId", "check_id", "type"),
	}
	c.LineEnd = firstInt(raw, "endLine", "endline")
	if c.LineEnd == 0 {
		c.LineEnd = c.LineStart
	}
	return c
}

func nestedMap(raw map[string]interface{}, key string) (map[string]interface{}, bool) {
	m, ok := raw[key].(map[string]interface{})
	return m, ok
}

func firstString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s := lookupString(raw, key); s != "" {
			return s
		}
	}
	return ""
}

func firstInt(raw map[string]interface{}, keys ...string) int {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case string:
			if n := parseInt(v); n != 0 {
				return n
			}
		}
	}
	return 0
}

func parseInt(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
