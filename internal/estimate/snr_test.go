package estimate

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/iq"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/testutil"
)

func TestEstimateSNRDegenerate(t *testing.T) {
	tests := []struct {
		name string
		i, q []float64
	}{
		{"all zero", make([]float64, 256), make([]float64, 256)},
		{"constant envelope", fill(256, 1), make([]float64, 256)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := iq.NewSampleBlock(tt.i, tt.q, 48000)
			testutil.AssertNoError(t, err)

			est := EstimateSNR(block, "")
			if est.SNRLinear > 0 {
				if est.SNRdB == nil {
					t.Errorf("snr_linear=%v > 0 but snr_db is nil", est.SNRLinear)
				}
				return
			}
			if est.SNRdB != nil {
				t.Errorf("snr_linear=%v <= 0 but snr_db=%v", est.SNRLinear, *est.SNRdB)
			}
			if est.NoisePowerDB != nil {
				t.Errorf("noise_power_db should be nil for degenerate input, got %v", *est.NoisePowerDB)
			}
		})
	}
}

func TestEstimateSNRNeverNaN(t *testing.T) {
	block := testutil.SynthesizePSK(4, 500, 4, 0, 100000, 15, 1)
	est := EstimateSNR(block, "qpsk")
	if est.SNRdB != nil && (math.IsNaN(*est.SNRdB) || math.IsInf(*est.SNRdB, 0)) {
		t.Errorf("snr_db must be finite when present, got %v", *est.SNRdB)
	}
	if est.ModulationHint != "qpsk" {
		t.Errorf("modulation hint not carried through: %q", est.ModulationHint)
	}
	if est.Method != MethodM2M4 {
		t.Errorf("method = %q, want %q", est.Method, MethodM2M4)
	}
}

func TestEstimateSNRMonotonic(t *testing.T) {
	// The moment estimator is biased on constant-envelope signals but must
	// order blocks correctly by noise level.
	prev := math.Inf(-1)
	for _, wantDB := range []float64{0, 5, 10, 20, 30} {
		block := testutil.SynthesizePSK(4, 2000, 4, 0, 100000, wantDB, 7)
		est := EstimateSNR(block, "")
		if est.SNRdB == nil {
			t.Fatalf("snr_db nil for %v dB input", wantDB)
		}
		if *est.SNRdB <= prev {
			t.Errorf("estimate %.2f dB for input %v dB not above previous %.2f dB",
				*est.SNRdB, wantDB, prev)
		}
		prev = *est.SNRdB
	}
}

func TestEstimateSNRIdempotent(t *testing.T) {
	block := testutil.SynthesizePSK(2, 300, 8, 250, 48000, 12, 3)
	first := EstimateSNR(block, "bpsk")
	second := EstimateSNR(block, "bpsk")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("estimator not idempotent (-first +second):\n%s", diff)
	}
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
