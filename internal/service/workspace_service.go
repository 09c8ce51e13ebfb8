package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/codequest-edu/codequest-api/internal/models"
	"github.com/codequest-edu/codequest-api/pkg/config"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
	"github.com/codequest-edu/codequest-api/pkg/storage"
)

// Directories that never contain student-authored code.
var skippedDirs = map[string]struct{}{
	"node_modules": {},
	"target":       {},
	"build":        {},
	"dist":         {},
	".git":         {},
	".idea":        {},
	"__pycache__":  {},
	"venv":         {},
	".venv":        {},
}

var codeExtensions = map[string]struct{}{
	".java": {},
	".py":   {},
	".js":   {},
	".jsx":  {},
	".ts":   {},
	".tsx":  {},
}

// WorkspaceService turns an uploaded archive into an extracted working
// directory and computes the language profile of its contents.
type WorkspaceService struct {
	store  *storage.LocalStorage
	config config.UploadsConfig
	logger *zap.Logger
}

// NewWorkspaceService constructs a WorkspaceService.
func NewWorkspaceService(store *storage.LocalStorage, cfg config.UploadsConfig, logger *zap.Logger) *WorkspaceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkspaceService{store: store, config: cfg, logger: logger}
}

// Prepare stores the uploaded archive, extracts it and computes file stats.
// It returns the absolute workspace directory ready for tool execution.
func (s *WorkspaceService) Prepare(ctx context.Context, runID, filename string, archive io.Reader, size int64) (string, *models.FileStats, error) {
	if s.config.MaxFileSizeBytes > 0 && size > s.config.MaxFileSizeBytes {
		return "", nil, appErrors.Clone(appErrors.ErrUploadTooLarge,
			fmt.Sprintf("archive exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}

	if !strings.EqualFold(filepath.Ext(filename), ".zip") {
		return "", nil, appErrors.Clone(appErrors.ErrUnsupportedArchive, "only zip archives are supported")
	}

	archiveRel := filepath.Join(runID, "upload.zip")
	if _, err := s.store.SaveStream(archiveRel, archive); err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store archive")
	}

	workspaceDir := s.store.Path(filepath.Join(runID, "src"))
	if err := storage.ExtractZip(s.store.Path(archiveRel), workspaceDir); err != nil {
		s.cleanupRun(runID)
		return "", nil, appErrors.Clone(appErrors.ErrUnsupportedArchive, "failed to extract archive")
	}

	if err := s.store.Delete(archiveRel); err != nil {
		s.logger.Warn("failed to remove uploaded archive", zap.String("run_id", runID), zap.Error(err))
	}

	stats, err := s.ComputeStats(workspaceDir)
	if err != nil {
		s.cleanupRun(runID)
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect workspace")
	}

	select {
	case <-ctx.Done():
		s.cleanupRun(runID)
		return "", nil, ctx.Err()
	default:
	}

	return workspaceDir, stats, nil
}

// ComputeStats walks the directory counting files per language and non-blank
// lines in recognised source files. Dependency and build output directories
// are skipped.
func (s *WorkspaceService) ComputeStats(dir string) (*models.FileStats, error) {
	stats := &models.FileStats{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skippedDirs[d.Name()]; skip && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		stats.TotalFiles++

		ext := strings.ToLower(filepath.Ext(d.Name()))
		switch ext {
		case ".java":
			stats.JavaFiles++
		case ".py":
			stats.PythonFiles++
		case ".js", ".jsx", ".ts", ".tsx":
			stats.JSFiles++
		}

		if _, ok := codeExtensions[ext]; ok {
			lines, err := countNonBlankLines(path)
			if err != nil {
				s.logger.Warn("failed to count lines", zap.String("path", path), zap.Error(err))
				return nil
			}
			stats.LinesOfCode += lines
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk workspace: %w", err)
	}

	return stats, nil
}

// Cleanup removes the run's extracted workspace unless retention is enabled.
func (s *WorkspaceService) Cleanup(runID string) {
	if s.config.RetainWorkspaces {
		return
	}
	s.cleanupRun(runID)
}

// Sweep removes workspaces older than the cleanup interval. Wired as a
// periodic background job.
func (s *WorkspaceService) Sweep() {
	deleted, err := s.store.CleanupOlderThan(s.config.CleanupInterval)
	if err != nil {
		s.logger.Warn("workspace sweep failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("removed stale workspaces", zap.Int("count", len(deleted)))
	}
}

func (s *WorkspaceService) cleanupRun(runID string) {
	if err := s.store.DeleteDir(runID); err != nil {
		s.logger.Warn("failed to delete workspace", zap.String("run_id", runID), zap.Error(err))
	}
}

func countNonBlankLines(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close() //nolint:errcheck

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return count, nil
}
