package service

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codequest-edu/codequest-api/pkg/config"
	appErrors "github.com/codequest-edu/codequest-api/pkg/errors"
	"github.com/codequest-edu/codequest-api/pkg/storage"
)

func newWorkspaceService(t *testing.T, cfg config.UploadsConfig) *WorkspaceService {
	t.Helper()
	if cfg.StorageDir == "" {
		cfg.StorageDir = t.TempDir()
	}
	store, err := storage.NewLocalStorage(cfg.StorageDir)
	require.NoError(t, err)
	return NewWorkspaceService(store, cfg, zap.NewNop())
}

func buildZip(t *testing.T, files map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestPrepareExtractsAndCounts(t *testing.T) {
	svc := newWorkspaceService(t, config.UploadsConfig{MaxFileSizeBytes: 1 << 20})

	archive := buildZip(t, map[string]string{
		"src/Main.java":       "public class Main {\n\n  int x;\n}\n",
		"app.py":              "print('hi')\n",
		"web/index.js":        "console.log(1)\nconsole.log(2)\n",
		"node_modules/dep.js": "ignored\nignored\n",
		"README.md":           "docs\n",
	})

	dir, stats, err := svc.Prepare(context.Background(), "run-1", "project.zip", archive, int64(archive.Len()))
	require.NoError(t, err)
	require.NotNil(t, stats)

	assert.DirExists(t, dir)
	assert.Equal(t, 1, stats.JavaFiles)
	assert.Equal(t, 1, stats.PythonFiles)
	assert.Equal(t, 1, stats.JSFiles)
	// node_modules is skipped entirely, README counts as a file but not LOC.
	assert.Equal(t, 4, stats.TotalFiles)
	assert.Equal(t, 3+1+2, stats.LinesOfCode)
}

func TestPrepareRejectsOversizedUpload(t *testing.T) {
	svc := newWorkspaceService(t, config.UploadsConfig{MaxFileSizeBytes: 10})

	archive := buildZip(t, map[string]string{"a.py": "print(1)\n"})
	_, _, err := svc.Prepare(context.Background(), "run-1", "project.zip", archive, int64(archive.Len()))
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUploadTooLarge.Code, appErr.Code)
}

func TestPrepareRejectsNonZip(t *testing.T) {
	svc := newWorkspaceService(t, config.UploadsConfig{MaxFileSizeBytes: 1 << 20})

	_, _, err := svc.Prepare(context.Background(), "run-1", "project.tar.gz", bytes.NewReader([]byte("x")), 1)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnsupportedArchive.Code, appErr.Code)
}

func TestPrepareRejectsCorruptArchive(t *testing.T) {
	svc := newWorkspaceService(t, config.UploadsConfig{MaxFileSizeBytes: 1 << 20})

	_, _, err := svc.Prepare(context.Background(), "run-1", "project.zip", bytes.NewReader([]byte("not a zip")), 9)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnsupportedArchive.Code, appErr.Code)
}

func TestCleanupRemovesWorkspace(t *testing.T) {
	baseDir := t.TempDir()
	svc := newWorkspaceService(t, config.UploadsConfig{StorageDir: baseDir, MaxFileSizeBytes: 1 << 20})

	archive := buildZip(t, map[string]string{"a.py": "print(1)\n"})
	dir, _, err := svc.Prepare(context.Background(), "run-1", "project.zip", archive, int64(archive.Len()))
	require.NoError(t, err)
	require.DirExists(t, dir)

	svc.Cleanup("run-1")
	_, statErr := os.Stat(filepath.Join(baseDir, "run-1"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCleanupHonorsRetention(t *testing.T) {
	baseDir := t.TempDir()
	svc := newWorkspaceService(t, config.UploadsConfig{StorageDir: baseDir, MaxFileSizeBytes: 1 << 20, RetainWorkspaces: true})

	archive := buildZip(t, map[string]string{"a.py": "print(1)\n"})
	dir, _, err := svc.Prepare(context.Background(), "run-1", "project.zip", archive, int64(archive.Len()))
	require.NoError(t, err)

	svc.Cleanup("run-1")
	assert.DirExists(t, dir)
}
