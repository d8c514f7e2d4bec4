// Package cyclo implements the FFT Accumulation Method (FAM) estimate of a
// signal's Spectral Correlation Function. The SCF exposes the periodic
// second-order structure (symbol rate, carrier artifacts) of a
// cyclostationary signal as a function of spectral frequency f and cyclic
// frequency alpha.
package cyclo

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/iq"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/monitoring"
)

// epsilon guards divisions and log conversions on zero-energy input.
const epsilon = 1e-10

var (
	ErrFFTSizeNotPowerOfTwo = errors.New("fft size must be a power of two")
	ErrOverlapOutOfRange    = errors.New("overlap must be in [0,1)")
	ErrAlphaMaxOutOfRange   = errors.New("alphaMax must be in (0, 0.5]")
	ErrBlockTooShort        = errors.New("sample block shorter than one FFT frame")
)

// Params configures one FAM invocation. Cost scales with
// NFFT^2 * segments * alpha resolution, so callers cap NFFT (<= 512 in
// practice) and block length to keep wall time bounded.
type Params struct {
	NFFT     int     // short-time FFT size, power of two
	Overlap  float64 // segment overlap fraction in [0,1)
	AlphaMax float64 // cyclic-frequency search bound as a fraction of sample rate
}

// DefaultParams are sized for annotation-scale blocks (a few thousand samples).
func DefaultParams() Params {
	return Params{NFFT: 256, Overlap: 0.75, AlphaMax: 0.5}
}

func (p Params) validate(blockLen int) error {
	if p.NFFT <= 0 || p.NFFT&(p.NFFT-1) != 0 {
		return fmt.Errorf("%w: got %d", ErrFFTSizeNotPowerOfTwo, p.NFFT)
	}
	if p.Overlap < 0 || p.Overlap >= 1 {
		return fmt.Errorf("%w: got %v", ErrOverlapOutOfRange, p.Overlap)
	}
	if p.AlphaMax <= 0 || p.AlphaMax > 0.5 {
		return fmt.Errorf("%w: got %v", ErrAlphaMaxOutOfRange, p.AlphaMax)
	}
	if blockLen < p.NFFT {
		return fmt.Errorf("%w: block=%d nfft=%d", ErrBlockTooShort, blockLen, p.NFFT)
	}
	return nil
}

// SCFResult is the spectral correlation estimate over one block. SCF is
// row-major by cyclic frequency: len(SCF) == len(Alphas) and
// len(SCF[i]) == len(Freqs) for all i. CyclicProfile[i] is the max-hold of
// SCF[i] over the spectral axis.
type SCFResult struct {
	Alphas        []float64   `json:"alphas"`         // Hz, ascending
	Freqs         []float64   `json:"freqs"`          // Hz, ascending
	SCF           [][]float64 `json:"scf"`            // magnitude, non-negative
	CyclicProfile []float64   `json:"cyclic_profile"` // per-alpha max over freq
}

// SymbolRateCandidate returns the cyclic frequency with the strongest
// non-zero-alpha profile peak, a first-order symbol-rate detector. The
// second return is false when the profile carries no energy off alpha=0.
func (r *SCFResult) SymbolRateCandidate() (float64, bool) {
	best, bestVal := 0.0, 0.0
	for i, a := range r.Alphas {
		if a <= 0 {
			continue
		}
		if r.CyclicProfile[i] > bestVal {
			bestVal = r.CyclicProfile[i]
			best = a
		}
	}
	return best, bestVal > epsilon
}

// Analyze computes the SCF of the block using the FFT Accumulation Method:
// Hann-windowed overlapped short-time FFTs, then for every pair of spectral
// bins separated by a trial cyclic frequency, the complex correlation of the
// two bin time-series accumulated across segments.
//
// Zero-energy input degrades to an all-zero SCF; it is not an error.
func Analyze(block *iq.SampleBlock, p Params) (*SCFResult, error) {
	if err := p.validate(block.Len()); err != nil {
		return nil, err
	}

	n := p.NFFT
	hop := int(float64(n) * (1 - p.Overlap))
	if hop < 1 {
		hop = 1
	}
	numSegments := (block.Len()-n)/hop + 1

	// Short-time FFT matrix: segments x bins, bins left in FFT order and
	// re-indexed to centered order below.
	win := window.Hann(n)
	samples := block.Complex()
	frames := make([][]complex128, numSegments)
	buf := make([]complex128, n)
	for k := 0; k < numSegments; k++ {
		off := k * hop
		for j := 0; j < n; j++ {
			buf[j] = samples[off+j] * complex(win[j], 0)
		}
		frames[k] = fft.FFT(buf)
	}
	monitoring.Tracef("fam: %d segments of %d samples (hop %d)", numSegments, n, hop)

	binHz := block.SampleRate / float64(n)
	// Cyclic frequencies are quantized to the spectral bin spacing: alpha
	// index m corresponds to a bin separation of m.
	maxSep := int(p.AlphaMax * float64(n))
	if maxSep > n-1 {
		maxSep = n - 1
	}

	alphas := make([]float64, 2*maxSep+1)
	scf := make([][]float64, 2*maxSep+1)
	profile := make([]float64, 2*maxSep+1)
	freqs := make([]float64, n)
	for f := 0; f < n; f++ {
		freqs[f] = (float64(f) - float64(n)/2) * binHz
	}

	norm := 1 / float64(numSegments)
	for a := 0; a < 2*maxSep+1; a++ {
		m := a - maxSep
		alphas[a] = float64(m) * binHz
		row := make([]float64, n)
		for f := 0; f < n; f++ {
			// Centered bin index back to FFT order.
			b1 := ((f - n/2) + n) % n
			b2 := ((b1 + m) + n) % n
			var acc complex128
			for k := 0; k < numSegments; k++ {
				acc += frames[k][b2] * cmplx.Conj(frames[k][b1])
			}
			mag := cmplx.Abs(acc) * norm
			if mag < epsilon {
				mag = 0
			}
			row[f] = mag
		}
		scf[a] = row
		profile[a] = floats.Max(row)
	}

	return &SCFResult{
		Alphas:        alphas,
		Freqs:         freqs,
		SCF:           scf,
		CyclicProfile: profile,
	}, nil
}
