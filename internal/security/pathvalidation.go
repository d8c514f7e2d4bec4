// Package security validates user-supplied identifiers before they reach the
// filesystem. Capture IDs arrive over HTTP and are embedded in file paths, so
// they must never be able to escape the data directory.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateCaptureID rejects capture identifiers that could alter the resolved
// file path: empty strings, path separators, parent references, and absolute
// paths. IDs are treated as opaque single path components.
func ValidateCaptureID(captureID string) error {
	if captureID == "" {
		return fmt.Errorf("capture id must not be empty")
	}
	if strings.ContainsAny(captureID, `/\`) {
		return fmt.Errorf("capture id %q must not contain path separators", captureID)
	}
	if captureID == "." || captureID == ".." {
		return fmt.Errorf("capture id %q is not a valid path component", captureID)
	}
	return nil
}

// ValidatePathWithinDirectory ensures that path, after cleaning and symlink
// resolution of the containing directory, stays inside dir. Used as the final
// check before opening a capture file.
func ValidatePathWithinDirectory(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(absDir); err == nil {
		absDir = resolved
		// The file itself may not exist yet; resolve through its parent.
		if parent, err := filepath.EvalSymlinks(filepath.Dir(absPath)); err == nil {
			absPath = filepath.Join(parent, filepath.Base(absPath))
		}
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return fmt.Errorf("path outside directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s escapes %s", path, dir)
	}
	return nil
}

// SanitizeFilename makes a safe filename from an arbitrary string, replacing
// anything that is not an ASCII letter, digit, dot, underscore or dash with a
// single underscore. Used when deriving plot and export file names from
// capture names.
func SanitizeFilename(s string) string {
	if s == "" {
		return "unknown"
	}
	const maxLen = 128
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
