package tools

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/codequest-edu/codequest-api/internal/models"
)

// Runner executes one external analysis tool against an extracted
// project workspace. Implementations never fail the run: tool errors
// come back inside the RawToolResult with Success=false.
type Runner interface {
	// Name is the tool identifier used across findings and missions.
	Name() string

	// Applicable reports whether the workspace contains anything this
	// tool can analyze.
	Applicable(stats models.FileStats) bool

	// Run invokes the tool and returns its raw output.
	Run(ctx context.Context, workspaceDir string) models.RawToolResult
}

// Executor drives a fixed set of runners sequentially with a per-tool
// timeout.
type Executor struct {
	runners []Runner
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecutor builds an executor over the provided runners.
func NewExecutor(runners []Runner, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{runners: runners, timeout: timeout, logger: logger}
}

// Execute runs every applicable tool and collects raw results.
// Inapplicable tools are skipped entirely and do not appear in the output.
func (e *Executor) Execute(ctx context.Context, workspaceDir string, stats models.FileStats) []models.RawToolResult {
	results := make([]models.RawToolResult, 0, len(e.runners))

	for _, runner := range e.runners {
		if !runner.Applicable(stats) {
			continue
		}

		toolCtx, cancel := context.WithTimeout(ctx, e.timeout)
		start := time.Now()
		result := runner.Run(toolCtx, workspaceDir)
		cancel()

		if !result.Success {
			e.logger.Warn("tool execution failed",
				zap.String("tool", runner.Name()),
				zap.String("error", result.Error),
				zap.Duration("elapsed", time.Since(start)))
		} else {
			e.logger.Debug("tool execution finished",
				zap.String("tool", runner.Name()),
				zap.Duration("elapsed", time.Since(start)))
		}

		results = append(results, result)
	}

	return results
}
