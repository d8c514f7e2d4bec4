// Package config loads the engine tuning parameters from JSON. Fields are
// pointers so a partial config file overrides only what it names; omitted
// fields keep their defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig is the root tuning document. The same JSON shape is accepted
// at startup and on the runtime params endpoint.
type TuningConfig struct {
	// FAM / SCF params
	FAMFFTSize  *int     `json:"fam_fft_size,omitempty"`
	FAMOverlap  *float64 `json:"fam_overlap,omitempty"`
	FAMAlphaMax *float64 `json:"fam_alpha_max,omitempty"`

	// Costas loop params
	LockThreshold    *float64 `json:"lock_threshold,omitempty"`
	UnlockThreshold  *float64 `json:"unlock_threshold,omitempty"`
	LockDwell        *int     `json:"lock_dwell,omitempty"`
	ReevalInterval   *int     `json:"reeval_interval,omitempty"`
	ConvergenceTolHz *float64 `json:"convergence_tol_hz,omitempty"`

	// Batch orchestrator params
	BatchMinCFOHz       *float64 `json:"batch_min_cfo_hz,omitempty"`
	BatchMinSampleCount *int64   `json:"batch_min_sample_count,omitempty"`
	BatchMaxSampleCount *int64   `json:"batch_max_sample_count,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// DefaultTuningConfig returns the canonical defaults matching the numeric
// kernels' built-in values.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		FAMFFTSize:          ptrInt(256),
		FAMOverlap:          ptrFloat64(0.75),
		FAMAlphaMax:         ptrFloat64(0.5),
		LockThreshold:       ptrFloat64(0.05),
		UnlockThreshold:     ptrFloat64(0.2),
		LockDwell:           ptrInt(500),
		ReevalInterval:      ptrInt(1000),
		ConvergenceTolHz:    ptrFloat64(50),
		BatchMinCFOHz:       ptrFloat64(10),
		BatchMinSampleCount: ptrInt64(100),
		BatchMaxSampleCount: ptrInt64(100000),
	}
}

// LoadTuningConfig reads a JSON tuning file. The path must carry a .json
// extension and stay under 1MB; partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Merge overlays non-nil fields of other onto c and returns c.
func (c *TuningConfig) Merge(other *TuningConfig) *TuningConfig {
	if other == nil {
		return c
	}
	if other.FAMFFTSize != nil {
		c.FAMFFTSize = other.FAMFFTSize
	}
	if other.FAMOverlap != nil {
		c.FAMOverlap = other.FAMOverlap
	}
	if other.FAMAlphaMax != nil {
		c.FAMAlphaMax = other.FAMAlphaMax
	}
	if other.LockThreshold != nil {
		c.LockThreshold = other.LockThreshold
	}
	if other.UnlockThreshold != nil {
		c.UnlockThreshold = other.UnlockThreshold
	}
	if other.LockDwell != nil {
		c.LockDwell = other.LockDwell
	}
	if other.ReevalInterval != nil {
		c.ReevalInterval = other.ReevalInterval
	}
	if other.ConvergenceTolHz != nil {
		c.ConvergenceTolHz = other.ConvergenceTolHz
	}
	if other.BatchMinCFOHz != nil {
		c.BatchMinCFOHz = other.BatchMinCFOHz
	}
	if other.BatchMinSampleCount != nil {
		c.BatchMinSampleCount = other.BatchMinSampleCount
	}
	if other.BatchMaxSampleCount != nil {
		c.BatchMaxSampleCount = other.BatchMaxSampleCount
	}
	return c
}
