package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/codequest-edu/codequest-api/internal/models"
)

// ESLintRunner invokes eslint with JSON output over JavaScript sources.
type ESLintRunner struct {
	bin string
}

// NewESLintRunner builds a runner using the given eslint binary.
func NewESLintRunner(bin string) *ESLintRunner {
	if bin == "" {
		bin = "eslint"
	}
	return &ESLintRunner{bin: bin}
}

func (r *ESLintRunner) Name() string { return "eslint" }

func (r *ESLintRunner) Applicable(stats models.FileStats) bool {
	return stats.JSFiles > 0
}

// eslintFileResult mirrors one entry of eslint's JSON formatter output.
type eslintFileResult struct {
	FilePath string `json:"filePath"`
	Messages []struct {
		RuleID   string  `json:"ruleId"`
		Severity float64 `json:"severity"`
		Message  string  `json:"message"`
		Line     float64 `json:"line"`
		EndLine  float64 `json:"endLine"`
	} `json:"messages"`
}

func (r *ESLintRunner) Run(ctx context.Context, workspaceDir string) models.RawToolResult {
	result := models.RawToolResult{Tool: r.Name()}

	cmd := exec.CommandContext(ctx, r.bin, "--format", "json", "--no-error-on-unmatched-pattern", ".")
	cmd.Dir = workspaceDir
	out, err := cmd.Output()
	if err != nil && len(out) == 0 {
		// eslint exits 1 when lint errors exist; the JSON is still on stdout.
		result.Error = fmt.Sprintf("eslint invocation failed: %v", err)
		return result
	}

	var files []eslintFileResult
	if err := json.Unmarshal(out, &files); err != nil {
		result.Error = fmt.Sprintf("parse eslint output: %v", err)
		return result
	}

	findings := make([]interface{}, 0)
	for _, file := range files {
		for _, msg := range file.Messages {
			findings = append(findings, map[string]interface{}{
				"filePath": file.FilePath,
				"ruleId":   msg.RuleID,
				"severity": msg.Severity,
				"message":  msg.Message,
				"line":     msg.Line,
				"endLine":  msg.EndLine,
			})
		}
	}

	result.Success = true
	result.Findings = findings
	return result
}
