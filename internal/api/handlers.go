package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/batch"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/costas"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/cyclo"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/estimate"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/iq"
)

// sampleRequest is the common shape of single-shot analysis requests:
// inline I/Q arrays plus a sample rate.
type sampleRequest struct {
	I          []float64 `json:"i"`
	Q          []float64 `json:"q"`
	SampleRate float64   `json:"sample_rate"`
}

func (r *sampleRequest) block() (*iq.SampleBlock, error) {
	return iq.NewSampleBlock(r.I, r.Q, r.SampleRate)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type snrRequest struct {
	sampleRequest
	ModulationType string   `json:"modulation_type,omitempty"`
	SymbolRateHz   *float64 `json:"symbol_rate_hz,omitempty"`
	EstimateCFO    bool     `json:"estimate_cfo"`
}

type snrResponse struct {
	SNR estimate.SNREstimate        `json:"snr"`
	CFO *estimate.CoarseCFOEstimate `json:"cfo,omitempty"`
}

// handleEstimateSNRAndCFO runs the blind M2M4 SNR estimator and, on request,
// the coarse autocorrelation CFO estimator over one inline block.
func (s *Server) handleEstimateSNRAndCFO(w http.ResponseWriter, r *http.Request) {
	var req snrRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	block, err := req.block()
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := snrResponse{SNR: estimate.EstimateSNR(block, req.ModulationType)}
	if req.EstimateCFO {
		cfo := estimate.EstimateCoarseCFO(block)
		if req.SymbolRateHz != nil {
			cfo.SymbolRateHz = req.SymbolRateHz
		}
		resp.CFO = &cfo
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type cycloRequest struct {
	sampleRequest
	NFFT     int     `json:"nfft"`
	Overlap  float64 `json:"overlap"`
	AlphaMax float64 `json:"alpha_max"`
}

type cycloResponse struct {
	cyclo.SCFResult
	// SymbolRateCandidateHz is the strongest non-zero cyclic feature; nil
	// when the profile carries no energy off alpha=0.
	SymbolRateCandidateHz *float64 `json:"symbol_rate_candidate_hz"`
}

// handleCyclostationary computes the SCF and cyclic profile over one block.
func (s *Server) handleCyclostationary(w http.ResponseWriter, r *http.Request) {
	var req cycloRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	block, err := req.block()
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := s.famDefaults()
	if req.NFFT != 0 {
		params.NFFT = req.NFFT
	}
	if req.Overlap != 0 {
		params.Overlap = req.Overlap
	}
	if req.AlphaMax != 0 {
		params.AlphaMax = req.AlphaMax
	}

	result, err := cyclo.Analyze(block, params)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := cycloResponse{SCFResult: *result}
	if rate, ok := result.SymbolRateCandidate(); ok {
		resp.SymbolRateCandidateHz = &rate
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type refineRequest struct {
	sampleRequest
	CoarseCFOHz     float64  `json:"coarse_cfo_hz"`
	ModulationOrder int      `json:"modulation_order"`
	LoopBandwidth   float64  `json:"loop_bandwidth,omitempty"`
	SNRdB           *float64 `json:"snr_db,omitempty"`
}

// handleRefineCFO runs one Costas-loop refinement over an inline block.
func (s *Server) handleRefineCFO(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	block, err := req.block()
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := s.loopDefaults()
	cfg.SampleRate = req.SampleRate
	cfg.CoarseCFOHz = req.CoarseCFOHz
	cfg.ModulationOrder = req.ModulationOrder
	cfg.LoopBandwidth = req.LoopBandwidth
	cfg.SNRdB = req.SNRdB

	result, err := costas.Refine(block, cfg)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, costas.ErrUnsupportedOrder) {
			status = http.StatusBadRequest
		}
		s.writeJSONError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	// AnnotationIDs limits the run; empty means all stored annotations.
	AnnotationIDs []string `json:"annotation_ids,omitempty"`
}

// handleBatchCFO refines every eligible stored annotation sequentially and
// reports per-item outcomes. Item failures are data, not an HTTP error.
func (s *Server) handleBatchCFO(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "annotation store not configured")
		return
	}

	annotations, err := s.db.ListAnnotations(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list annotations: %v", err))
		return
	}
	if len(req.AnnotationIDs) > 0 {
		want := make(map[string]bool, len(req.AnnotationIDs))
		for _, id := range req.AnnotationIDs {
			want[id] = true
		}
		filtered := annotations[:0]
		for _, a := range annotations {
			if want[a.ID] {
				filtered = append(filtered, a)
			}
		}
		annotations = filtered
	}

	orch := batch.NewOrchestrator(s.source, s.db)
	orch.LoopConfig = s.loopDefaults()
	orch.Bounds = s.batchBounds()
	result, err := orch.Run(r.Context(), annotations)
	if err != nil {
		// Cancellation between items; return what completed.
		s.writeJSON(w, http.StatusOK, result)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "annotation store not configured")
		return
	}
	captures, err := s.db.ListCaptures(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, captures)
}

func (s *Server) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "annotation store not configured")
		return
	}
	annotations, err := s.db.ListAnnotations(r.Context())
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, annotations)
}
