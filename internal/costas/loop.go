package costas

import (
	"errors"
	"fmt"
	"math"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/estimate"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/iq"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/monitoring"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/units"
)

// ErrUnsupportedOrder is returned for modulation orders without a
// discriminator. Supported orders are 2, 4 and 8.
var ErrUnsupportedOrder = errors.New("unsupported modulation order")

// MethodCostas tags refinement results from this synchronizer.
const MethodCostas = "costas"

// Config parameterizes one synchronizer run. Zero values select defaults.
type Config struct {
	SampleRate      float64
	CoarseCFOHz     float64
	ModulationOrder int
	// LoopBandwidth fixes the normalized loop bandwidth for the whole run.
	// When 0, the adaptive controller re-evaluates the bandwidth every
	// ReevalInterval samples.
	LoopBandwidth float64
	// SNRdB feeds the adaptive controller. When nil it is measured from the
	// block with the M2M4 estimator before the loop starts.
	SNRdB *float64

	ReevalInterval   int     // samples between bandwidth re-evaluations
	LockThreshold    float64 // phase-error variance below which lock may be declared
	UnlockThreshold  float64 // variance above which lock is abandoned
	LockDwell        int     // samples the variance must hold below threshold
	ConvergenceTolHz float64 // frequency settling band for convergence detection
	ConvergenceDwell int     // samples the settling condition must hold
}

func (c *Config) setDefaults() {
	if c.ReevalInterval <= 0 {
		c.ReevalInterval = 1000
	}
	if c.LockThreshold <= 0 {
		c.LockThreshold = 0.05
	}
	if c.UnlockThreshold <= 0 {
		c.UnlockThreshold = 0.2
	}
	if c.LockDwell <= 0 {
		c.LockDwell = 500
	}
	if c.ConvergenceTolHz <= 0 {
		c.ConvergenceTolHz = 50
	}
	if c.ConvergenceDwell <= 0 {
		c.ConvergenceDwell = 200
	}
}

// Result is the output of one synchronizer run. FineCFOHz is the NCO's
// converged residual frequency; TotalCFOHz = CoarseCFOHz + FineCFOHz.
// LockTimeSamples is nil when lock was never declared; a completed run
// without lock is a valid best-effort result, not an error.
type Result struct {
	CoarseCFOHz            float64  `json:"coarse_cfo_hz"`
	FineCFOHz              float64  `json:"fine_cfo_hz"`
	TotalCFOHz             float64  `json:"total_cfo_hz"`
	CFONormalized          float64  `json:"cfo_normalized"`
	ModulationOrder        int      `json:"modulation_order"`
	LoopBandwidth          float64  `json:"loop_bandwidth"`
	LockDetected           bool     `json:"lock_detected"`
	LockTimeSamples        *int     `json:"lock_time_samples"`
	PhaseErrorVariance     float64  `json:"phase_error_variance"`
	ConvergenceTimeSamples int      `json:"convergence_time_samples"`
	Method                 string   `json:"method"`
	SNRdB                  *float64 `json:"snr_db,omitempty"`
}

// loopGains holds the second-order proportional+integral filter gains for a
// normalized bandwidth at critical-ish damping (zeta = 0.7071).
type loopGains struct {
	kp, ki float64
}

func gainsFor(bandwidth float64) loopGains {
	const zeta = 0.7071
	theta := bandwidth / (zeta + 1/(4*zeta))
	denom := 1 + 2*zeta*theta + theta*theta
	return loopGains{
		kp: 4 * zeta * theta / denom,
		ki: 4 * theta * theta / denom,
	}
}

// loopState is the per-run synchronizer state threaded through step. The
// NCO tracks only the residual offset; the coarse estimate is removed by a
// separate fixed derotator so FineCFOHz reads directly off the NCO.
type loopState struct {
	phase float64 // NCO phase, rad
	freq  float64 // NCO frequency, rad/sample
	index int

	errVar    float64 // EWMA of squared phase error
	locked    bool
	lockAt    int // first sample of the current below-threshold run
	firstLock *int

	freqMean  float64 // slow EWMA of freq for settling detection
	freqVar   float64 // EWMA variance of freq about freqMean
	convRun   int
	converged *int
}

const errVarAlpha = 0.02

// step advances the loop by one sample. mixed is the input already
// derotated by the coarse offset and the NCO.
func (s *loopState) step(e float64, g loopGains, lockThresh, unlockThresh float64, lockDwell int, convAlpha, convTol float64, convDwell int) {
	s.errVar = (1-errVarAlpha)*s.errVar + errVarAlpha*e*e

	s.freq += g.ki * e
	s.phase += s.freq + g.kp*e
	for s.phase > math.Pi {
		s.phase -= 2 * math.Pi
	}
	for s.phase < -math.Pi {
		s.phase += 2 * math.Pi
	}

	// Lock state machine: variance must hold below threshold for a dwell;
	// a locked loop drops back to searching when variance blows up.
	if s.errVar < lockThresh {
		if s.lockAt < 0 {
			s.lockAt = s.index
		}
		if !s.locked && s.index-s.lockAt >= lockDwell {
			s.locked = true
			if s.firstLock == nil {
				at := s.lockAt
				s.firstLock = &at
			}
		}
	} else {
		s.lockAt = -1
		if s.locked && s.errVar > unlockThresh {
			s.locked = false
		}
	}

	// Settling detection on the NCO frequency, variance-based: no ground
	// truth is available at runtime.
	d := s.freq - s.freqMean
	s.freqMean += convAlpha * d
	s.freqVar = (1-convAlpha)*s.freqVar + convAlpha*d*d
	if s.converged == nil {
		if s.freqVar < convTol {
			s.convRun++
			if s.convRun >= convDwell {
				at := s.index
				s.converged = &at
			}
		} else {
			s.convRun = 0
		}
	}

	s.index++
}

// phaseError computes the modulation-order-aware discriminator: raise the
// mixed sample to the M-th power to strip M-ary PSK modulation and take the
// angle, scaled back to the carrier-phase domain.
func phaseError(re, im float64, order int) float64 {
	// Repeated squaring covers the supported orders 2, 4 and 8.
	r, i := re*re-im*im, 2*re*im // ^2
	if order >= 4 {
		r, i = r*r-i*i, 2*r*i // ^4
	}
	if order >= 8 {
		r, i = r*r-i*i, 2*r*i // ^8
	}
	if r == 0 && i == 0 {
		return 0
	}
	return math.Atan2(i, r) / float64(order)
}

// Refine runs the Costas loop over the block and returns the refined CFO.
// Non-convergence is not an error: the caller receives LockDetected=false
// with a best-effort FineCFOHz.
func Refine(block *iq.SampleBlock, cfg Config) (*Result, error) {
	if !units.IsValidModulationOrder(cfg.ModulationOrder) {
		return nil, fmt.Errorf("%w: %d (valid: %s)",
			ErrUnsupportedOrder, cfg.ModulationOrder, units.GetValidOrdersString())
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = block.SampleRate
	}
	cfg.setDefaults()

	snrDB := cfg.SNRdB
	if snrDB == nil {
		est := estimate.EstimateSNR(block, "")
		snrDB = est.SNRdB
	}
	snrForControl := -10.0 // pessimistic floor when SNR is undefined
	if snrDB != nil {
		snrForControl = *snrDB
	}

	adaptive := cfg.LoopBandwidth == 0
	bandwidth := cfg.LoopBandwidth
	if adaptive {
		bandwidth = CalculateAdaptiveLoopBandwidth(BandwidthInput{
			SNRdB: snrForControl, LockDetected: false,
		}).Bandwidth
	}
	g := gainsFor(bandwidth)

	// The settling estimator averages over roughly one loop time constant,
	// so its smoothing tracks the bandwidth in use.
	convAlpha := bandwidth / 4
	convTolRad := 2 * math.Pi * cfg.ConvergenceTolHz / cfg.SampleRate
	convTol := convTolRad * convTolRad

	s := &loopState{
		errVar:  0.25, // pessimistic: uniform phase error over the decision region
		lockAt:  -1,
		freqVar: 1.0,
	}

	coarseInc := 2 * math.Pi * cfg.CoarseCFOHz / cfg.SampleRate
	n := block.Len()
	tailStart := n - n/4
	if tailStart >= n {
		tailStart = n - 1
	}
	var tailSum float64
	var tailCount int

	for idx := 0; idx < n; idx++ {
		// Derotate by the coarse offset and the NCO estimate.
		rot := -(coarseInc*float64(idx) + s.phase)
		c, sn := math.Cos(rot), math.Sin(rot)
		re := block.I[idx]*c - block.Q[idx]*sn
		im := block.I[idx]*sn + block.Q[idx]*c

		e := phaseError(re, im, cfg.ModulationOrder)
		s.step(e, g, cfg.LockThreshold, cfg.UnlockThreshold, cfg.LockDwell,
			convAlpha, convTol, cfg.ConvergenceDwell)

		if adaptive && s.index%cfg.ReevalInterval == 0 {
			v := s.errVar
			dec := CalculateAdaptiveLoopBandwidth(BandwidthInput{
				SNRdB:              snrForControl,
				LockDetected:       s.locked,
				PhaseErrorVariance: &v,
			})
			if dec.Bandwidth != bandwidth {
				monitoring.Tracef("costas: bandwidth %g -> %g (%s) at sample %d",
					bandwidth, dec.Bandwidth, dec.Mode, s.index)
				bandwidth = dec.Bandwidth
				g = gainsFor(bandwidth)
			}
		}

		if idx >= tailStart {
			tailSum += s.freq
			tailCount++
		}
	}

	fineHz := 0.0
	if tailCount > 0 {
		fineHz = tailSum / float64(tailCount) / (2 * math.Pi) * cfg.SampleRate
	}
	totalHz := cfg.CoarseCFOHz + fineHz

	convergence := n
	if s.converged != nil {
		convergence = *s.converged
	}

	return &Result{
		CoarseCFOHz:            cfg.CoarseCFOHz,
		FineCFOHz:              fineHz,
		TotalCFOHz:             totalHz,
		CFONormalized:          units.NormalizeFrequency(totalHz, cfg.SampleRate),
		ModulationOrder:        cfg.ModulationOrder,
		LoopBandwidth:          bandwidth,
		LockDetected:           s.locked,
		LockTimeSamples:        s.firstLock,
		PhaseErrorVariance:     s.errVar,
		ConvergenceTimeSamples: convergence,
		Method:                 MethodCostas,
		SNRdB:                  snrDB,
	}, nil
}
