// Package costas implements the carrier-synchronization core: the adaptive
// loop-bandwidth controller and the Costas-loop synchronizer that refines a
// coarse carrier-frequency-offset estimate into a locked fine estimate.
package costas

// Quantized normalized loop bandwidths. The controller only ever returns one
// of these values; arbitrary floats appear only through explicit smoothing.
const (
	BandwidthWide       = 0.02
	BandwidthMedium     = 0.01
	BandwidthNarrow     = 0.005
	BandwidthVeryNarrow = 0.002
)

// Operating modes reported by the controller.
const (
	ModeAcquisition = "acquisition"
	ModeTracking    = "tracking"
	ModeHoldover    = "holdover"
)

// BandwidthInput carries the loop telemetry the controller decides from.
// PhaseErrorVariance and CurrentBandwidth are optional; CurrentBandwidth is
// unused by the decision table and reserved for smoothing.
type BandwidthInput struct {
	SNRdB              float64
	LockDetected       bool
	PhaseErrorVariance *float64
	CurrentBandwidth   *float64
}

// BandwidthDecision is the controller output: a quantized normalized
// bandwidth, an operating mode, and a human-readable justification.
type BandwidthDecision struct {
	Bandwidth float64 `json:"bandwidth"`
	Mode      string  `json:"mode"`
	Reason    string  `json:"reason"`
}

// CalculateAdaptiveLoopBandwidth maps {SNR, lock state, phase-error variance}
// to a loop bandwidth and mode. It is a pure function: every call is
// reproducible from its inputs alone.
func CalculateAdaptiveLoopBandwidth(in BandwidthInput) BandwidthDecision {
	if !in.LockDetected {
		switch {
		case in.SNRdB > 15:
			return BandwidthDecision{BandwidthWide, ModeAcquisition,
				"unlocked, high SNR: wide bandwidth for fast pull-in"}
		case in.SNRdB > 5:
			return BandwidthDecision{BandwidthMedium, ModeAcquisition,
				"unlocked, medium SNR: balance acquisition speed against noise"}
		default:
			return BandwidthDecision{BandwidthNarrow, ModeAcquisition,
				"unlocked, low SNR: noise rejection dominates acquisition"}
		}
	}

	if in.PhaseErrorVariance != nil {
		v := *in.PhaseErrorVariance
		if v > 0.2 {
			return BandwidthDecision{BandwidthMedium, ModeHoldover,
				"locked but phase-error variance rising: widen to re-acquire"}
		}
		if v < 0.05 {
			if in.SNRdB > 10 {
				return BandwidthDecision{BandwidthNarrow, ModeTracking,
					"locked, excellent tracking, good SNR"}
			}
			return BandwidthDecision{BandwidthVeryNarrow, ModeTracking,
				"locked, excellent tracking, low SNR: maximize noise rejection"}
		}
	}

	// Locked with moderate or unreported variance.
	switch {
	case in.SNRdB > 15:
		return BandwidthDecision{BandwidthNarrow, ModeTracking,
			"locked, high SNR: default tracking bandwidth"}
	case in.SNRdB > 5:
		return BandwidthDecision{BandwidthNarrow, ModeTracking,
			"locked, medium SNR: default tracking bandwidth"}
	default:
		return BandwidthDecision{BandwidthVeryNarrow, ModeTracking,
			"locked, low SNR: narrowest tracking bandwidth"}
	}
}

// SmoothBandwidth computes an exponentially weighted step from the current
// bandwidth toward the target so the loop filter is never driven by a
// discontinuous jump. alpha in (0,1]; alpha=1 jumps directly to target.
func SmoothBandwidth(current, target, alpha float64) float64 {
	if alpha <= 0 {
		return current
	}
	if alpha >= 1 {
		return target
	}
	return current + alpha*(target-current)
}
