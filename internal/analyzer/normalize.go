package analyzer

import (
	"sort"

	"github.com/codequest-edu/codequest-api/internal/models"
)

// Normalize flattens raw tool outputs into a single finding stream and
// builds the per-run tool summary. Failed tools and empty payloads
// contribute zero findings but still appear in the summary.
func Normalize(results []models.RawToolResult) ([]models.NormalizedFinding, models.ToolSummary) {
	summary := models.ToolSummary{Results: make(map[string]models.ToolOutcome, len(results))}
	findings := make([]models.NormalizedFinding, 0)

	for _, result := range results {
		summary.ToolsExecuted++

		outcome := models.ToolOutcome{Success: result.Success, Error: result.Error}
		if !result.Success {
			summary.FailedTools++
			summary.Results[result.Tool] = outcome
			continue
		}
		summary.SuccessfulTools++

		extracted := flattenPayload(result.Findings)
		for _, raw := range extracted {
			findings = append(findings, models.NormalizedFinding{Tool: result.Tool, Raw: raw})
		}
		outcome.FindingsCount = len(extracted)
		summary.Results[result.Tool] = outcome
	}

	return findings, summary
}

// flattenPayload accepts either a flat list of findings or a map of
// category to list, and returns the contained finding objects. Map
// categories are visited in sorted order so output is deterministic.
func flattenPayload(payload interface{}) []map[string]interface{} {
	switch v := payload.(type) {
	case nil:
		return nil
	case []interface{}:
		return collectFindings(v)
	case []map[string]interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		out = append(out, v...)
		return out
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var out []map[string]interface{}
		for _, k := range keys {
			if list, ok := v[k].([]interface{}); ok {
				out = append(out, collectFindings(list)...)
			}
		}
		return out
	default:
		return nil
	}
}

func collectFindings(list []interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}
