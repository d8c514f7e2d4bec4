// Package testutil provides shared test helpers: small assertions and
// synthetic signal generators for the estimator and synchronizer tests.
package testutil

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/iq"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertInDelta fails unless got is within delta of want.
func AssertInDelta(t *testing.T, got, want, delta float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > delta {
		t.Errorf("got %v, want %v ± %v", got, want, delta)
	}
}

// SynthesizeTone builds a block holding a unit complex exponential at
// freqHz. Deterministic; no noise.
func SynthesizeTone(freqHz, sampleRate float64, n int) *iq.SampleBlock {
	i := make([]float64, n)
	q := make([]float64, n)
	for k := 0; k < n; k++ {
		phase := 2 * math.Pi * freqHz * float64(k) / sampleRate
		i[k] = math.Cos(phase)
		q[k] = math.Sin(phase)
	}
	block, err := iq.NewSampleBlock(i, q, sampleRate)
	if err != nil {
		panic(err)
	}
	return block
}

// SynthesizePSK builds an M-ary PSK signal with rectangular pulses at sps
// samples per symbol, rotated by cfoHz, with complex AWGN at the requested
// SNR. Deterministic for a fixed seed.
func SynthesizePSK(order, numSymbols, sps int, cfoHz, sampleRate, snrDB float64, seed int64) *iq.SampleBlock {
	rng := rand.New(rand.NewSource(seed))
	n := numSymbols * sps
	i := make([]float64, n)
	q := make([]float64, n)

	noiseVar := math.Pow(10, -snrDB/10) // unit signal power
	noiseStd := math.Sqrt(noiseVar / 2)

	for s := 0; s < numSymbols; s++ {
		symPhase := 2 * math.Pi * float64(rng.Intn(order)) / float64(order)
		for k := 0; k < sps; k++ {
			idx := s*sps + k
			phase := symPhase + 2*math.Pi*cfoHz*float64(idx)/sampleRate
			i[idx] = math.Cos(phase) + noiseStd*rng.NormFloat64()
			q[idx] = math.Sin(phase) + noiseStd*rng.NormFloat64()
		}
	}
	block, err := iq.NewSampleBlock(i, q, sampleRate)
	if err != nil {
		panic(err)
	}
	return block
}

// ZeroBlock builds an all-zero block, the degenerate input for the
// estimators.
func ZeroBlock(n int, sampleRate float64) *iq.SampleBlock {
	block, err := iq.NewSampleBlock(make([]float64, n), make([]float64, n), sampleRate)
	if err != nil {
		panic(err)
	}
	return block
}
