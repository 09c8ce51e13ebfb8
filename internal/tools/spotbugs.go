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

// SpotBugsRunner invokes the SpotBugs Maven plugin and parses its XML
// report. It only applies to workspaces containing Java sources.
type SpotBugsRunner struct {
	mavenBin string
}

// NewSpotBugsRunner builds a runner using the given maven binary.
func NewSpotBugsRunner(mavenBin string) *SpotBugsRunner {
	if mavenBin == "" {
		mavenBin = "mvn"
	}
	return &SpotBugsRunner{mavenBin: mavenBin}
}

func (r *SpotBugsRunner) Name() string { return "spotbugs" }

func (r *SpotBugsRunner) Applicable(stats models.FileStats) bool {
	return stats.JavaFiles > 0
}

// spotbugsReport mirrors the SpotBugs XML report schema.
type spotbugsReport struct {
	XMLName      xml.Name `xml:"BugCollection"`
	BugInstances []struct {
		Type        string `xml:"type,attr"`
		Priority    string `xml:"priority,attr"`
		Category    string `xml:"category,attr"`
		LongMessage string `xml:"LongMessage"`
		SourceLine  struct {
			SourceFile string `xml:"sourcefile,attr"`
			Start      int    `xml:"start,attr"`
			End        int    `xml:"end,attr"`
		} `xml:"SourceLine"`
	} `xml:"BugInstance"`
}

func (r *SpotBugsRunner) Run(ctx context.Context, workspaceDir string) models.RawToolResult {
	result := models.RawToolResult{Tool: r.Name()}

	cmd := exec.CommandContext(ctx, r.mavenBin,
		"-q", "-DskipTests",
		"compile",
		"com.github.spotbugs:spotbugs-maven-plugin:spotbugs",
	)
	cmd.Dir = workspaceDir
	if out, err := cmd.CombinedOutput(); err != nil {
		result.Error = fmt.Sprintf("spotbugs invocation failed: %v: %s", err, truncate(out, 500))
		return result
	}

	reportPath := filepath.Join(workspaceDir, "target", "spotbugsXml.xml")
	data, err := os.ReadFile(reportPath)
	if err != nil {
		result.Error = fmt.Sprintf("read spotbugs report: %v", err)
		return result
	}

	var report spotbugsReport
	if err := xml.Unmarshal(data, &report); err != nil {
		result.Error = fmt.Sprintf("parse spotbugs report: %v", err)
		return result
	}

	findings := make([]interface{}, 0, len(report.BugInstances))
	for _, bug := range report.BugInstances {
		findings = append(findings, map[string]interface{}{
			"type":        bug.Type,
			"priority":    bug.Priority,
			"category":    bug.Category,
			"longMessage": bug.LongMessage,
			"sourceLine": map[string]interface{}{
				"sourcefile": bug.SourceLine.SourceFile,
				"start":      float64(bug.SourceLine.Start),
				"end":        float64(bug.SourceLine.End),
			},
		})
	}

	result.Success = true
	result.Findings = findings
	return result
}

func truncate(out []byte, max int) string {
	if len(out) > max {
		out = out[:max]
	}
	return string(out)
}
