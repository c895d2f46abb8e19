package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	require.NoError(t, os.MkdirAll(safeDir, 0o755))
	require.NoError(t, os.MkdirAll(unsafeDir, 0o755))
	require.NoError(t, os.Symlink(unsafeDir, filepath.Join(safeDir, "evil-symlink")))

	tests := []struct {
		name      string
		filePath  string
		wantError bool
	}{
		{"file in directory", filepath.Join(safeDir, "run.json"), false},
		{"nested new file", filepath.Join(safeDir, "a", "b", "run.json"), false},
		{"dot dot", filepath.Join(safeDir, "..", "run.json"), true},
		{"sibling directory", filepath.Join(unsafeDir, "run.json"), true},
		{"through symlink", filepath.Join(safeDir, "evil-symlink", "run.json"), true},
		{"new file under symlink", filepath.Join(safeDir, "evil-symlink", "x", "run.json"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, safeDir)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(tmpDir, "x"), filepath.Join(tmpDir, "missing")))
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"":                 "unknown",
		"run-42":           "run-42",
		"../../etc/passwd": "etc_passwd",
		"a b\tc":           "a_b_c",
		"..":               "unknown",
		"spots.csv #3":     "spots.csv_3",
		"résumé":           "r_sum",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}

	long := SanitizeFilename(strings.Repeat("x", 300))
	assert.Len(t, long, 128)
}

func TestRunExportPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path, err := RunExportPath(dir, "../outside")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "outside-"), path)

	path, err = RunExportPath(dir, "run-42")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-42.json"), path)
}

func TestRunExportPath_DistinctIDsDoNotCollide(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ids := []string{"a/b", "a_b", "a b", "a:b", strings.Repeat("x", 200), strings.Repeat("x", 200) + "/"}
	seen := make(map[string]string)
	for _, id := range ids {
		path, err := RunExportPath(dir, id)
		require.NoError(t, err, id)
		assert.LessOrEqual(t, len(filepath.Base(path)), 128+len(".json"), id)
		if prev, ok := seen[path]; ok {
			t.Errorf("run IDs %q and %q both map to %s", prev, id, path)
		}
		seen[path] = id

		again, err := RunExportPath(dir, id)
		require.NoError(t, err)
		assert.Equal(t, path, again, "path must be stable for %q", id)
	}
}
