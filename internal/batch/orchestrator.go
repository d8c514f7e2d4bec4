// Package batch drives carrier-refinement runs across many previously
// detected signal annotations with per-item failure isolation: one
// annotation's missing data or synchronizer failure never aborts the queue.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/costas"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/iq"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/monitoring"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/units"
)

// Eligibility bounds for refinement. Below MinCFOHz refinement is not worth
// the compute; outside the sample-count window a run either starves the
// estimator or is disproportionately expensive.
const (
	MinCFOHz       = 10.0
	MinSampleCount = 100
	MaxSampleCount = 100000
)

// perKiloSampleSeconds is the linear cost model for ETA reporting,
// calibrated against the per-sample cost of the synchronizer.
const perKiloSampleSeconds = 0.5

// Annotation is the engine's read view of a flagged time-frequency region.
// The persistence layer owns the full record; the orchestrator reads only
// what eligibility filtering and the synchronizer need.
type Annotation struct {
	ID             string   `json:"id"`
	CaptureID      string   `json:"capture_id"`
	SampleStart    int64    `json:"sample_start"`
	SampleCount    int64    `json:"sample_count"`
	EstimatedCFOHz float64  `json:"estimated_cfo_hz"`
	EstimatedSNRdB *float64 `json:"estimated_snr_db,omitempty"`
	ModulationType string   `json:"modulation_type,omitempty"`
	SampleRate     float64  `json:"sample_rate"`
	Datatype       string   `json:"datatype"`
}

// CFOUpdate is the refined-CFO write-back applied to an annotation after a
// successful run. Failed runs never mutate the annotation.
type CFOUpdate struct {
	TotalCFOHz         float64
	Method             string
	LockDetected       bool
	PhaseErrorVariance float64
	LoopBandwidth      float64
}

// Store is the write-back side of the annotation store.
type Store interface {
	UpdateAnnotationCFO(ctx context.Context, annotationID string, upd CFOUpdate) error
}

// ItemResult records the outcome of one annotation's refinement.
type ItemResult struct {
	AnnotationID string         `json:"annotation_id"`
	Success      bool           `json:"success"`
	Result       *costas.Result `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// RunResult is the aggregate outcome of one batch invocation.
type RunResult struct {
	RunID            string       `json:"run_id"`
	Items            []ItemResult `json:"items"`
	Processed        int          `json:"processed"`
	Failed           int          `json:"failed"`
	EstimatedSeconds float64      `json:"estimated_seconds"`
	ElapsedSeconds   float64      `json:"elapsed_seconds"`
}

// Bounds are the eligibility limits applied before a batch run. Zero fields
// fall back to the package defaults, so a zero Bounds is the stock policy.
type Bounds struct {
	MinCFOHz       float64
	MinSampleCount int64
	MaxSampleCount int64
}

// DefaultBounds returns the stock eligibility limits.
func DefaultBounds() Bounds {
	return Bounds{
		MinCFOHz:       MinCFOHz,
		MinSampleCount: MinSampleCount,
		MaxSampleCount: MaxSampleCount,
	}
}

func (b Bounds) normalized() Bounds {
	if b.MinCFOHz <= 0 {
		b.MinCFOHz = MinCFOHz
	}
	if b.MinSampleCount <= 0 {
		b.MinSampleCount = MinSampleCount
	}
	if b.MaxSampleCount <= 0 {
		b.MaxSampleCount = MaxSampleCount
	}
	return b
}

// FilterAnnotationsForCFO returns the annotations worth refining:
// |estimatedCFO| >= bounds.MinCFOHz and a sample count inside
// [MinSampleCount, MaxSampleCount].
func FilterAnnotationsForCFO(annotations []Annotation, bounds Bounds) []Annotation {
	b := bounds.normalized()
	var eligible []Annotation
	for _, a := range annotations {
		cfo := a.EstimatedCFOHz
		if cfo < 0 {
			cfo = -cfo
		}
		if cfo < b.MinCFOHz {
			continue
		}
		if a.SampleCount < b.MinSampleCount || a.SampleCount > b.MaxSampleCount {
			continue
		}
		eligible = append(eligible, a)
	}
	return eligible
}

// EstimateBatchDuration returns the expected wall time in seconds for n
// annotations of representative sample count s: n * (s/1000) * 0.5. Used
// only for progress reporting, never for scheduling.
func EstimateBatchDuration(n int, representativeSampleCount int) float64 {
	return float64(n) * (float64(representativeSampleCount) / 1000.0) * perKiloSampleSeconds
}

// Orchestrator sequences refinement runs. Processing is strictly sequential:
// the numeric kernels may share an accelerator context that must not see
// concurrent work, so sequencing is the backpressure mechanism.
type Orchestrator struct {
	Source iq.SampleSource
	Store  Store
	// Loop overrides applied to every run; zero values use costas defaults.
	LoopConfig costas.Config
	// Bounds override the eligibility limits; zero fields use the defaults.
	Bounds Bounds
}

// NewOrchestrator wires a batch orchestrator over a sample source and an
// annotation store. Store may be nil when the caller only wants results.
func NewOrchestrator(source iq.SampleSource, store Store) *Orchestrator {
	return &Orchestrator{Source: source, Store: store}
}

// Run filters the candidate list, then refines each eligible annotation in
// order. Per-item failures are recorded and processing continues; the only
// error returned is context cancellation between items.
func (o *Orchestrator) Run(ctx context.Context, annotations []Annotation) (*RunResult, error) {
	eligible := FilterAnnotationsForCFO(annotations, o.Bounds)

	representative := 0
	if len(eligible) > 0 {
		var total int64
		for _, a := range eligible {
			total += a.SampleCount
		}
		representative = int(total / int64(len(eligible)))
	}

	res := &RunResult{
		RunID:            uuid.NewString(),
		EstimatedSeconds: EstimateBatchDuration(len(eligible), representative),
	}
	monitoring.Logf("batch %s: %d/%d annotations eligible, estimated %.1fs",
		res.RunID, len(eligible), len(annotations), res.EstimatedSeconds)

	start := time.Now()
	for _, a := range eligible {
		// Cooperative cancellation checkpoint; items themselves are atomic.
		if err := ctx.Err(); err != nil {
			res.ElapsedSeconds = time.Since(start).Seconds()
			return res, err
		}

		item := o.refineOne(ctx, a)
		if item.Success {
			res.Processed++
		} else {
			res.Failed++
			monitoring.Logf("batch %s: annotation %s failed: %s", res.RunID, a.ID, item.Error)
		}
		res.Items = append(res.Items, item)
	}
	res.ElapsedSeconds = time.Since(start).Seconds()
	return res, nil
}

// refineOne runs the synchronizer for a single annotation, translating every
// failure (including panics out of the numeric kernels) into an ItemResult.
func (o *Orchestrator) refineOne(ctx context.Context, a Annotation) (item ItemResult) {
	item.AnnotationID = a.ID
	defer func() {
		if r := recover(); r != nil {
			item.Success = false
			item.Result = nil
			item.Error = fmt.Sprintf("synchronizer panic: %v", r)
		}
	}()

	if a.SampleRate <= 0 {
		item.Error = fmt.Sprintf("annotation %s: missing sample-rate metadata", a.ID)
		return item
	}

	block, err := o.Source.Fetch(ctx, a.CaptureID, a.SampleStart, a.SampleCount, a.Datatype, a.SampleRate)
	if err != nil {
		item.Error = fmt.Sprintf("annotation %s: fetch samples: %v", a.ID, err)
		return item
	}

	cfg := o.LoopConfig
	cfg.SampleRate = a.SampleRate
	cfg.CoarseCFOHz = a.EstimatedCFOHz
	cfg.ModulationOrder = units.ModulationOrderFor(a.ModulationType)
	cfg.SNRdB = a.EstimatedSNRdB

	result, err := costas.Refine(block, cfg)
	if err != nil {
		item.Error = fmt.Sprintf("annotation %s: refine: %v", a.ID, err)
		return item
	}

	if o.Store != nil {
		upd := CFOUpdate{
			TotalCFOHz:         result.TotalCFOHz,
			Method:             result.Method,
			LockDetected:       result.LockDetected,
			PhaseErrorVariance: result.PhaseErrorVariance,
			LoopBandwidth:      result.LoopBandwidth,
		}
		if err := o.Store.UpdateAnnotationCFO(ctx, a.ID, upd); err != nil {
			item.Error = fmt.Sprintf("annotation %s: write back refined CFO: %v", a.ID, err)
			return item
		}
	}

	item.Success = true
	item.Result = result
	return item
}
