// Command scf-plot runs the FAM analyzer over a raw IQ file and renders the
// cyclic profile to a PNG for offline inspection.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/cyclo"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/iq"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/security"
)

var (
	inPath     = flag.String("in", "", "Path to the capture file (<name>.iq)")
	outPath    = flag.String("out", "", "Output PNG path (default <name>-profile.png)")
	sampleRate = flag.Float64("rate", 1e6, "Sample rate in Hz")
	datatype   = flag.String("datatype", iq.DatatypeCF32, "Sample encoding (cf32_le or ci16_le)")
	start      = flag.Int64("start", 0, "First sample to analyze")
	count      = flag.Int64("count", 4096, "Number of samples to analyze")
	nfft       = flag.Int("nfft", 256, "FFT size (power of two)")
	overlap    = flag.Float64("overlap", 0.75, "Segment overlap fraction [0,1)")
	alphaMax   = flag.Float64("alpha-max", 0.5, "Cyclic frequency bound as a fraction of sample rate")
)

func main() {
	flag.Parse()
	if *inPath == "" {
		log.Fatal("-in is required")
	}

	source := iq.NewFileSource(filepath.Dir(*inPath))
	captureID := strings.TrimSuffix(filepath.Base(*inPath), ".iq")
	block, err := source.Fetch(context.Background(), captureID, *start, *count, *datatype, *sampleRate)
	if err != nil {
		log.Fatalf("failed to read samples: %v", err)
	}

	result, err := cyclo.Analyze(block, cyclo.Params{
		NFFT:     *nfft,
		Overlap:  *overlap,
		AlphaMax: *alphaMax,
	})
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	if rate, ok := result.SymbolRateCandidate(); ok {
		fmt.Printf("strongest cyclic feature: %.1f Hz\n", rate)
	}

	pts := make(plotter.XYs, len(result.Alphas))
	for i := range result.Alphas {
		pts[i] = plotter.XY{X: result.Alphas[i], Y: result.CyclicProfile[i]}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Cyclic profile: %s (nfft=%d)", captureID, *nfft)
	p.X.Label.Text = "cyclic frequency (Hz)"
	p.Y.Label.Text = "SCF magnitude (max over f)"

	line, err := plotter.NewLine(pts)
	if err != nil {
		log.Fatalf("failed to build plot: %v", err)
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line, plotter.NewGrid())

	out := *outPath
	if out == "" {
		out = security.SanitizeFilename(captureID) + "-profile.png"
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, out); err != nil {
		log.Fatalf("failed to save plot: %v", err)
	}
	log.Printf("wrote %s", out)
}
