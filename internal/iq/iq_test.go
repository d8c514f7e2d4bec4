package iq

import (
	"errors"
	"math"
	"testing"
)

func TestNewSampleBlockValidation(t *testing.T) {
	tests := []struct {
		name    string
		i, q    []float64
		rate    float64
		wantErr error
	}{
		{"length mismatch", []float64{1, 2}, []float64{1}, 48000, ErrLengthMismatch},
		{"empty", nil, nil, 48000, ErrEmptyBlock},
		{"zero rate", []float64{1}, []float64{1}, 0, ErrInvalidSampleRate},
		{"negative rate", []float64{1}, []float64{1}, -100, ErrInvalidSampleRate},
		{"nan rate", []float64{1}, []float64{1}, math.NaN(), ErrInvalidSampleRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSampleBlock(tt.i, tt.q, tt.rate)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSampleBlockComplexAndPower(t *testing.T) {
	block, err := NewSampleBlock([]float64{3, 0}, []float64{4, 0}, 48000)
	if err != nil {
		t.Fatal(err)
	}
	c := block.Complex()
	if len(c) != 2 || c[0] != 3+4i || c[1] != 0 {
		t.Errorf("Complex() = %v, want [3+4i, 0]", c)
	}
	// |3+4i|^2 = 25 averaged with 0 gives 12.5.
	if got := block.Power(); got != 12.5 {
		t.Errorf("Power() = %v, want 12.5", got)
	}

	// Complex() must return a copy, not alias the block.
	c[0] = 0
	if block.I[0] != 3 {
		t.Error("Complex() aliases the block storage")
	}
}
