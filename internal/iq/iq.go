// Package iq provides the complex baseband sample model shared by the
// analysis engine: a SampleBlock holds one finite segment of I/Q samples
// plus its sample rate, and a SampleSource fetches blocks by capture and
// sample range.
package iq

import (
	"errors"
	"fmt"
	"math"
)

// Supported on-disk sample encodings.
const (
	DatatypeCF32 = "cf32_le" // interleaved little-endian float32 I/Q
	DatatypeCI16 = "ci16_le" // interleaved little-endian int16 I/Q
)

// Sentinel errors so callers can distinguish a missing capture from a
// range that runs past the end of the recording.
var (
	ErrCaptureNotFound    = errors.New("capture not found")
	ErrRangeUnavailable   = errors.New("requested sample range unavailable")
	ErrUnknownDatatype    = errors.New("unknown sample datatype")
	ErrEmptyBlock         = errors.New("sample block is empty")
	ErrLengthMismatch     = errors.New("I and Q arrays differ in length")
	ErrInvalidSampleRate  = errors.New("sample rate must be positive")
	ErrInvalidSampleRange = errors.New("sample range must be non-negative")
)

// SampleBlock is an immutable segment of complex baseband samples.
// I and Q always have equal length.
type SampleBlock struct {
	I          []float64
	Q          []float64
	SampleRate float64
}

// NewSampleBlock validates the component arrays and wraps them in a block.
func NewSampleBlock(i, q []float64, sampleRate float64) (*SampleBlock, error) {
	if len(i) != len(q) {
		return nil, fmt.Errorf("%w: len(I)=%d len(Q)=%d", ErrLengthMismatch, len(i), len(q))
	}
	if len(i) == 0 {
		return nil, ErrEmptyBlock
	}
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleRate, sampleRate)
	}
	return &SampleBlock{I: i, Q: q, SampleRate: sampleRate}, nil
}

// Len returns the number of complex samples in the block.
func (b *SampleBlock) Len() int { return len(b.I) }

// Complex materialises the block as a complex128 slice. The result is a
// fresh allocation; the block itself is never mutated.
func (b *SampleBlock) Complex() []complex128 {
	out := make([]complex128, len(b.I))
	for n := range b.I {
		out[n] = complex(b.I[n], b.Q[n])
	}
	return out
}

// Power returns the mean of |x|^2 over the block. Zero for a degenerate
// all-zero block, never negative.
func (b *SampleBlock) Power() float64 {
	if len(b.I) == 0 {
		return 0
	}
	var sum float64
	for n := range b.I {
		sum += b.I[n]*b.I[n] + b.Q[n]*b.Q[n]
	}
	return sum / float64(len(b.I))
}
