package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/cyclo"
)

// handleSCFHeatmap renders a quick HTML heatmap of the SCF for a stored
// capture range using go-echarts. Debugging-only endpoint to eyeball the
// cyclic structure without the full UI.
// Query params:
//   - capture (required), datatype + sample rate come from the store
//   - start, count (optional; defaults 0, 4096)
//   - nfft, overlap, alpha_max (optional FAM params)
func (s *Server) handleSCFHeatmap(w http.ResponseWriter, r *http.Request) {
	if s.db == nil || s.source == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "capture store not configured")
		return
	}
	captureID := r.URL.Query().Get("capture")
	if captureID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "capture query param required")
		return
	}
	capture, err := s.db.GetCapture(r.Context(), captureID)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	start := int64(0)
	count := int64(4096)
	if v := r.URL.Query().Get("start"); v != "" {
		if p, err := strconv.ParseInt(v, 10, 64); err == nil && p >= 0 {
			start = p
		}
	}
	if v := r.URL.Query().Get("count"); v != "" {
		if p, err := strconv.ParseInt(v, 10, 64); err == nil && p > 0 && p <= 65536 {
			count = p
		}
	}

	params := s.famDefaults()
	if v := r.URL.Query().Get("nfft"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			params.NFFT = p
		}
	}
	if v := r.URL.Query().Get("overlap"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			params.Overlap = p
		}
	}
	if v := r.URL.Query().Get("alpha_max"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			params.AlphaMax = p
		}
	}

	block, err := s.source.Fetch(r.Context(), captureID, start, count, capture.Datatype, capture.SampleRate)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := cyclo.Analyze(block, params)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Downsample the alpha axis by stride to keep the payload browsable.
	const maxCells = 40000
	stride := 1
	if cells := len(result.Alphas) * len(result.Freqs); cells > maxCells {
		stride = cells/maxCells + 1
	}

	data := make([]opts.HeatMapData, 0, len(result.Alphas)*len(result.Freqs)/stride)
	maxMag := 0.0
	for ai := 0; ai < len(result.Alphas); ai += stride {
		for fi := 0; fi < len(result.Freqs); fi++ {
			mag := result.SCF[ai][fi]
			if mag > maxMag {
				maxMag = mag
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{fi, ai, mag}})
		}
	}
	if maxMag == 0 {
		maxMag = 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "SCF Heatmap", Theme: "dark", Width: "1100px", Height: "700px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Spectral Correlation Function",
			Subtitle: fmt.Sprintf("capture=%s start=%d count=%d nfft=%d", captureID, start, count, params.NFFT),
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxMag),
			InRange: &opts.VisualMapInRange{Color: []string{
				"#440154", "#3e4989", "#26828e", "#35b779", "#b5de2b", "#fde725"}},
		}),
	)
	hm.AddSeries("scf", data)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
