package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()
	if cfg.FAMFFTSize == nil || *cfg.FAMFFTSize != 256 {
		t.Errorf("default fam_fft_size = %v, want 256", cfg.FAMFFTSize)
	}
	if cfg.LockThreshold == nil || *cfg.LockThreshold != 0.05 {
		t.Errorf("default lock_threshold = %v, want 0.05", cfg.LockThreshold)
	}
	if cfg.BatchMaxSampleCount == nil || *cfg.BatchMaxSampleCount != 100000 {
		t.Errorf("default batch_max_sample_count = %v, want 100000", cfg.BatchMaxSampleCount)
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	body := `{"fam_fft_size": 512, "convergence_tol_hz": 25}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FAMFFTSize == nil || *cfg.FAMFFTSize != 512 {
		t.Errorf("fam_fft_size = %v, want 512", cfg.FAMFFTSize)
	}
	if cfg.ConvergenceTolHz == nil || *cfg.ConvergenceTolHz != 25 {
		t.Errorf("convergence_tol_hz = %v, want 25", cfg.ConvergenceTolHz)
	}
	if cfg.FAMOverlap != nil {
		t.Errorf("omitted field should stay nil, got %v", *cfg.FAMOverlap)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("fam_fft_size: 512"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Fatal("expected error for non-.json extension")
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadTuningConfigBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMergeOverlaysOnlyNamedFields(t *testing.T) {
	base := DefaultTuningConfig()
	override := &TuningConfig{
		FAMFFTSize:    ptrInt(1024),
		LockDwell:     ptrInt(250),
		BatchMinCFOHz: ptrFloat64(5),
	}
	merged := base.Merge(override)

	if *merged.FAMFFTSize != 1024 {
		t.Errorf("fam_fft_size = %d, want 1024", *merged.FAMFFTSize)
	}
	if *merged.LockDwell != 250 {
		t.Errorf("lock_dwell = %d, want 250", *merged.LockDwell)
	}
	if *merged.BatchMinCFOHz != 5 {
		t.Errorf("batch_min_cfo_hz = %v, want 5", *merged.BatchMinCFOHz)
	}
	// Untouched fields keep their defaults.
	if *merged.FAMOverlap != 0.75 {
		t.Errorf("fam_overlap = %v, want default 0.75", *merged.FAMOverlap)
	}
	if *merged.UnlockThreshold != 0.2 {
		t.Errorf("unlock_threshold = %v, want default 0.2", *merged.UnlockThreshold)
	}
}

func TestMergeNilIsNoop(t *testing.T) {
	base := DefaultTuningConfig()
	if got := base.Merge(nil); got != base {
		t.Error("Merge(nil) should return the receiver unchanged")
	}
}
