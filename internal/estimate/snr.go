// Package estimate implements the blind signal estimators that seed the
// carrier synchronizer: the M2M4 moment-based SNR estimator and the
// lag-one autocorrelation coarse CFO estimator.
package estimate

import (
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/iq"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/units"
)

// MethodM2M4 tags results from the reference moment estimator. A substituted
// accelerated estimator must use its own tag but the same result shape.
const MethodM2M4 = "m2m4"

// SNREstimate is a blind SNR measurement over one sample block. The dB
// fields are nil (not NaN, not -Inf) when the underlying linear quantity is
// non-positive, so a degenerate block is distinguishable from a failed
// measurement.
type SNREstimate struct {
	SNRdB          *float64 `json:"snr_db"`
	SNRLinear      float64  `json:"snr_linear"`
	SignalPowerDB  *float64 `json:"signal_power_db"`
	NoisePowerDB   *float64 `json:"noise_power_db"`
	M2             float64  `json:"m2"`
	M4             float64  `json:"m4"`
	M2M4Ratio      float64  `json:"m2m4_ratio"`
	Method         string   `json:"method"`
	ModulationHint string   `json:"modulation_hint,omitempty"`
}

// EstimateSNR computes the M2M4 blind SNR estimate over the block. The
// modulation hint is carried through as metadata only; it is not used as a
// correction term.
func EstimateSNR(block *iq.SampleBlock, modulationHint string) SNREstimate {
	// m2 is the mean power of the block.
	m2 := block.Power()
	var m4 float64
	for i := range block.I {
		p := block.I[i]*block.I[i] + block.Q[i]*block.Q[i]
		m4 += p * p
	}
	m4 /= float64(block.Len())

	est := SNREstimate{
		M2:             m2,
		M4:             m4,
		Method:         MethodM2M4,
		ModulationHint: modulationHint,
	}
	if m2 > 0 {
		est.M2M4Ratio = m4 / (m2 * m2)
	}

	// snr = m2^2/(m4 - m2^2) - 1, defined only when the denominator is
	// positive. A noise-dominated or constant-envelope-degenerate block
	// reports zero rather than an error.
	denom := m4 - m2*m2
	if denom > 0 {
		est.SNRLinear = m2*m2/denom - 1
	} else {
		est.SNRLinear = 0
	}

	if est.SNRLinear > 0 {
		db := units.LinearToDB(est.SNRLinear)
		est.SNRdB = &db
		noise := m2 / (est.SNRLinear + 1)
		if noise > 0 {
			ndb := units.LinearToDB(noise)
			est.NoisePowerDB = &ndb
		}
	}
	if m2 > 0 {
		sdb := units.LinearToDB(m2)
		est.SignalPowerDB = &sdb
	}
	return est
}
