package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/codequest-edu/codequest-api/internal/models"
)

// PMDRunner invokes the PMD Maven plugin and parses its XML report.
type PMDRunner struct {
	mavenBin string
}

// NewPMDRunner builds a runner using the given maven binary.
func NewPMDRunner(mavenBin string) *PMDRunner {
	if mavenBin == "" {
		mavenBin = "mvn"
	}
	return &PMDRunner{mavenBin: mavenBin}
}

func (r *PMDRunner) Name() string { return "pmd" }

func (r *PMDRunner) Applicable(stats models.FileStats) bool {
	return stats.JavaFiles > 0
}

// pmdReport mirrors the PMD XML report schema.
type pmdReport struct {
	XMLName xml.Name `xml:"pmd"`
	Files   []struct {
		Name       string `xml:"name,attr"`
		Violations []struct {
			BeginLine int    `xml:"beginline,attr"`
			EndLine   int    `xml:"endline,attr"`
			Rule      string `xml:"rule,attr"`
			Priority  string `xml:"priority,attr"`
			Text      string `xml:",chardata"`
		} `xml:"violation"`
	} `xml:"file"`
}

func (r *PMDRunner) Run(ctx context.Context, workspaceDir string) models.RawToolResult {
	result := models.RawToolResult{Tool: r.Name()}

	cmd := exec.CommandContext(ctx, r.mavenBin, "-q", "-DskipTests", "pmd:pmd")
	cmd.Dir = workspaceDir
	if out, err := cmd.CombinedOutput(); err != nil {
		result.Error = fmt.Sprintf("pmd invocation failed: %v: %s", err, truncate(out, 500))
		return result
	}

	reportPath := filepath.Join(workspaceDir, "target", "pmd.xml")
	data, err := os.ReadFile(reportPath)
	if err != nil {
		result.Error = fmt.Sprintf("read pmd report: %v", err)
		return result
	}

	var report pmdReport
	if err := xml.Unmarshal(data, &report); err != nil {
		result.Error = fmt.Sprintf("parse pmd report: %v", err)
		return result
	}

	findings := make([]interface{}, 0)
	for _, file := range report.Files {
		for _, violation := range file.Violations {
			findings = append(findings, map[string]interface{}{
				"rule":     violation.Rule,
				"priority": violation.Priority,
				"text":     violation.Text,
				"sourceLine": map[string]interface{}{
					"sourcefile": file.Name,
					"beginline":  float64(violation.BeginLine),
					"endline":    float64(violation.EndLine),
				},
			})
		}
	}

	result.Success = true
	result.Findings = findings
	return result
}
