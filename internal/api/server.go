// Package api exposes the analysis engine over HTTP JSON: single-shot
// SNR/CFO estimation, cyclostationary analysis, Costas-loop refinement, and
// batch refinement over stored annotations.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/batch"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/config"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/costas"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/cyclo"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/db"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/iq"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db     *db.DB
	source iq.SampleSource
	tuning *config.TuningConfig
}

// NewServer wires the HTTP layer over the store and sample source. A nil
// tuning config falls back to the built-in defaults.
func NewServer(database *db.DB, source iq.SampleSource, tuning *config.TuningConfig) *Server {
	if tuning == nil {
		tuning = config.DefaultTuningConfig()
	}
	return &Server{
		db:     database,
		source: source,
		tuning: tuning,
	}
}

// famDefaults builds the FAM parameter defaults from the tuning config.
func (s *Server) famDefaults() cyclo.Params {
	p := cyclo.DefaultParams()
	if s.tuning.FAMFFTSize != nil {
		p.NFFT = *s.tuning.FAMFFTSize
	}
	if s.tuning.FAMOverlap != nil {
		p.Overlap = *s.tuning.FAMOverlap
	}
	if s.tuning.FAMAlphaMax != nil {
		p.AlphaMax = *s.tuning.FAMAlphaMax
	}
	return p
}

// loopDefaults builds the synchronizer config defaults from the tuning config.
func (s *Server) loopDefaults() costas.Config {
	var c costas.Config
	if s.tuning.LockThreshold != nil {
		c.LockThreshold = *s.tuning.LockThreshold
	}
	if s.tuning.UnlockThreshold != nil {
		c.UnlockThreshold = *s.tuning.UnlockThreshold
	}
	if s.tuning.LockDwell != nil {
		c.LockDwell = *s.tuning.LockDwell
	}
	if s.tuning.ReevalInterval != nil {
		c.ReevalInterval = *s.tuning.ReevalInterval
	}
	if s.tuning.ConvergenceTolHz != nil {
		c.ConvergenceTolHz = *s.tuning.ConvergenceTolHz
	}
	return c
}

// batchBounds builds the batch eligibility limits from the tuning config.
func (s *Server) batchBounds() batch.Bounds {
	var b batch.Bounds
	if s.tuning.BatchMinCFOHz != nil {
		b.MinCFOHz = *s.tuning.BatchMinCFOHz
	}
	if s.tuning.BatchMinSampleCount != nil {
		b.MinSampleCount = *s.tuning.BatchMinSampleCount
	}
	if s.tuning.BatchMaxSampleCount != nil {
		b.MaxSampleCount = *s.tuning.BatchMaxSampleCount
	}
	return b
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf("%s%s%s %s %s %s", colorCyan, r.Method, colorReset,
			r.URL.Path, statusCodeColor(lrw.statusCode), time.Since(start))
	})
}

// Routes builds the engine's HTTP mux, including the SQL debug console.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/analysis/snr", s.handleEstimateSNRAndCFO)
	mux.HandleFunc("POST /api/analysis/cyclostationary", s.handleCyclostationary)
	mux.HandleFunc("POST /api/analysis/cfo/refine", s.handleRefineCFO)
	mux.HandleFunc("POST /api/analysis/cfo/batch", s.handleBatchCFO)

	mux.HandleFunc("GET /api/captures", s.handleListCaptures)
	mux.HandleFunc("GET /api/annotations", s.handleListAnnotations)

	mux.HandleFunc("GET /debug/scf", s.handleSCFHeatmap)
	if s.db != nil {
		s.db.AttachAdminRoutes(mux)
	}

	return logRequests(mux)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
