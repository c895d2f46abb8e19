// Package security keeps files written from stored identifiers inside the
// directory the user chose.
package security

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ValidatePathWithinDirectory reports an error when filePath, after cleaning
// and symlink resolution, lies outside dir. For paths that do not exist yet
// the nearest existing ancestor is resolved instead.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	canonicalPath := absPath
	for ancestor := absPath; ; {
		if resolved, err := filepath.EvalSymlinks(ancestor); err == nil {
			rest, _ := filepath.Rel(ancestor, absPath)
			canonicalPath = filepath.Join(resolved, rest)
			break
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			break
		}
		ancestor = parent
	}

	rel, err := filepath.Rel(canonicalDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, dir)
	}
	return nil
}

const maxFilenameLen = 128

// SanitizeFilename maps s to a file name of ASCII letters, digits, '.', '_'
// and '-', at most 128 bytes long. Runs of other characters become a single
// underscore.
func SanitizeFilename(s string) string {
	const maxLen = maxFilenameLen
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// RunExportPath returns the graph document path of runID under dir. IDs that
// SanitizeFilename has to rewrite get a suffix derived from the full ID, so
// "a/b" and "a_b" never share a file.
func RunExportPath(dir, runID string) (string, error) {
	name := SanitizeFilename(runID)
	if name != runID {
		const suffixLen = 9 // "-" plus 8 hex digits
		if len(name) > maxFilenameLen-suffixLen {
			name = name[:maxFilenameLen-suffixLen]
		}
		name += "-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(runID)).String()[:8]
	}
	path := filepath.Join(dir, name+".json")
	if err := ValidatePathWithinDirectory(path, dir); err != nil {
		return "", err
	}
	return path, nil
}
