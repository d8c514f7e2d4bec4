package estimate

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/iq"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/units"
)

// MethodAutocorr tags coarse CFO estimates from the lag-one autocorrelation.
const MethodAutocorr = "autocorrelation"

// peakFFTSize is the FFT length used for the spectral peak sidecar estimate.
// Kept small: the peak frequency is reported for sanity checking, not used
// to seed the loop.
const peakFFTSize = 1024

// CoarseCFOEstimate is a first-pass carrier offset. It is biased and
// low-resolution; it exists to seed the Costas loop and as a fallback when
// the loop never locks.
type CoarseCFOEstimate struct {
	CFOHz         float64  `json:"cfo_hz"`
	CFONormalized float64  `json:"cfo_normalized"`
	PeakFreqHz    float64  `json:"peak_freq_hz"`
	Method        string   `json:"method"`
	SampleRate    float64  `json:"sample_rate"`
	SymbolRateHz  *float64 `json:"symbol_rate_hz,omitempty"`
}

// EstimateCoarseCFO estimates the carrier offset from the phase of the
// lag-one autocorrelation sum(x[n+1]*conj(x[n])). For a complex tone at
// +f Hz this yields +f. An all-zero block degrades to 0 Hz.
func EstimateCoarseCFO(block *iq.SampleBlock) CoarseCFOEstimate {
	var re, im float64
	for n := 0; n+1 < block.Len(); n++ {
		// x[n+1] * conj(x[n])
		re += block.I[n+1]*block.I[n] + block.Q[n+1]*block.Q[n]
		im += block.Q[n+1]*block.I[n] - block.I[n+1]*block.Q[n]
	}
	cfoHz := 0.0
	if re != 0 || im != 0 {
		cfoHz = math.Atan2(im, re) / (2 * math.Pi) * block.SampleRate
	}
	return CoarseCFOEstimate{
		CFOHz:         cfoHz,
		CFONormalized: units.NormalizeFrequency(cfoHz, block.SampleRate),
		PeakFreqHz:    peakFrequency(block),
		Method:        MethodAutocorr,
		SampleRate:    block.SampleRate,
	}
}

// peakFrequency locates the dominant spectral component with a Hann-windowed
// FFT and parabolic interpolation around the peak bin. Returns a frequency
// in [-fs/2, fs/2).
func peakFrequency(block *iq.SampleBlock) float64 {
	size := peakFFTSize
	if block.Len() < size {
		// Round down to the largest power of two that fits.
		size = 1
		for size*2 <= block.Len() {
			size *= 2
		}
	}
	if size < 4 {
		return 0
	}

	win := window.Hann(size)
	in := make([]complex128, size)
	for n := 0; n < size; n++ {
		in[n] = complex(block.I[n]*win[n], block.Q[n]*win[n])
	}
	spectrum := fft.FFT(in)

	mags := make([]float64, size)
	maxIdx, maxMag := 0, 0.0
	for i, c := range spectrum {
		mags[i] = cmplx.Abs(c)
		if mags[i] > maxMag {
			maxMag = mags[i]
			maxIdx = i
		}
	}
	if maxMag == 0 {
		return 0
	}

	binWidth := block.SampleRate / float64(size)
	// Parabolic interpolation over the peak and its circular neighbours.
	left := mags[(maxIdx-1+size)%size]
	right := mags[(maxIdx+1)%size]
	offset := 0.0
	if denom := left - 2*maxMag + right; denom != 0 {
		offset = 0.5 * (left - right) / denom
	}
	freq := (float64(maxIdx) + offset) * binWidth
	// FFT bins above Nyquist represent negative frequencies.
	if freq >= block.SampleRate/2 {
		freq -= block.SampleRate
	}
	return freq
}
