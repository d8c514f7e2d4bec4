package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateCaptureID(t *testing.T) {
	valid := []string{"cap1", "a1b2c3", "recording-2026.08.01", "f47ac10b-58cc-4372-a567-0e02b2c3d479"}
	for _, id := range valid {
		if err := ValidateCaptureID(id); err != nil {
			t.Errorf("ValidateCaptureID(%q) = %v, want nil", id, err)
		}
	}
	invalid := []string{"", ".", "..", "../etc/passwd", "a/b", `a\b`, "/abs"}
	for _, id := range invalid {
		if err := ValidateCaptureID(id); err == nil {
			t.Errorf("ValidateCaptureID(%q) = nil, want error", id)
		}
	}
}

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()
	inside := filepath.Join(dir, "capture.iq")
	if err := os.WriteFile(inside, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidatePathWithinDirectory(inside, dir); err != nil {
		t.Errorf("path inside dir rejected: %v", err)
	}
	if err := ValidatePathWithinDirectory(filepath.Join(dir, "missing.iq"), dir); err != nil {
		t.Errorf("nonexistent path inside dir rejected: %v", err)
	}
	if err := ValidatePathWithinDirectory(filepath.Join(dir, "..", "escape.iq"), dir); err == nil {
		t.Error("parent escape accepted")
	}
	if err := ValidatePathWithinDirectory("/etc/passwd", dir); err == nil {
		t.Error("absolute outside path accepted")
	}
}

func TestValidatePathSymlinkEscape(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "data")
	outside := filepath.Join(base, "outside")
	for _, d := range []string{dir, outside} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := ValidatePathWithinDirectory(filepath.Join(link, "cap.iq"), dir); err == nil {
		t.Error("symlink escape accepted")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"capture 1", "capture_1"},
		{"a//b::c", "a_b_c"},
		{"...", "unknown"},
		{"", "unknown"},
		{"ok-name_1.iq", "ok-name_1.iq"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
