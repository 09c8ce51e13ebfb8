package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/codequest-edu/codequest-api/internal/models"
)

// SemgrepRunner invokes semgrep with the auto config and JSON output.
// Semgrep covers every supported language, so it always applies to a
// non-empty workspace.
type SemgrepRunner struct {
	bin string
}

// NewSemgrepRunner builds a runner using the given semgrep binary.
func NewSemgrepRunner(bin string) *SemgrepRunner {
	if bin == "" {
		bin = "semgrep"
	}
	return &SemgrepRunner{bin: bin}
}

func (r *SemgrepRunner) Name() string { return "semgrep" }

func (r *SemgrepRunner) Applicable(stats models.FileStats) bool {
	return stats.TotalFiles > 0
}

func (r *SemgrepRunner) Run(ctx context.Context, workspaceDir string) models.RawToolResult {
	result := models.RawToolResult{Tool: r.Name()}

	cmd := exec.CommandContext(ctx, r.bin, "scan", "--config", "auto", "--json", "--quiet", workspaceDir)
	out, err := cmd.Output()
	if err != nil && len(out) == 0 {
		// semgrep exits nonzero when findings exist; only treat it as a
		// failure when no JSON came back.
		result.Error = fmt.Sprintf("semgrep invocation failed: %v", err)
		return result
	}

	var payload struct {
		Results []interface{} `json:"results"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		result.Error = fmt.Sprintf("parse semgrep output: %v", err)
		return result
	}

	result.Success = true
	result.Findings = payload.Results
	return result
}
