package iq

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/security"
)

// SampleSource fetches a range of complex baseband samples for a capture.
// Implementations must return ErrCaptureNotFound when the capture has no
// backing data and ErrRangeUnavailable when the requested range runs past
// the end of the recording.
type SampleSource interface {
	Fetch(ctx context.Context, captureID string, sampleStart, sampleCount int64, datatype string, sampleRate float64) (*SampleBlock, error)
}

// FileSource reads interleaved I/Q sample files named <captureID>.iq from
// a data directory. It supports cf32_le and ci16_le encodings.
type FileSource struct {
	Dir string
}

// NewFileSource returns a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

func bytesPerComplex(datatype string) (int64, error) {
	switch datatype {
	case DatatypeCF32:
		return 8, nil
	case DatatypeCI16:
		return 4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDatatype, datatype)
	}
}

// Fetch reads sampleCount complex samples starting at sampleStart.
func (s *FileSource) Fetch(ctx context.Context, captureID string, sampleStart, sampleCount int64, datatype string, sampleRate float64) (*SampleBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sampleStart < 0 || sampleCount <= 0 {
		return nil, fmt.Errorf("%w: start=%d count=%d", ErrInvalidSampleRange, sampleStart, sampleCount)
	}
	stride, err := bytesPerComplex(datatype)
	if err != nil {
		return nil, err
	}

	// Capture IDs come in over the API; they must resolve to a file inside
	// the data directory.
	if err := security.ValidateCaptureID(captureID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureNotFound, err)
	}
	path := filepath.Join(s.Dir, captureID+".iq")
	if err := security.ValidatePathWithinDirectory(path, s.Dir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureNotFound, err)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCaptureNotFound, captureID)
		}
		return nil, fmt.Errorf("open capture %s: %w", captureID, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat capture %s: %w", captureID, err)
	}
	total := info.Size() / stride
	if sampleStart+sampleCount > total {
		return nil, fmt.Errorf("%w: want [%d,%d) of %d samples in %s",
			ErrRangeUnavailable, sampleStart, sampleStart+sampleCount, total, captureID)
	}

	raw := make([]byte, sampleCount*stride)
	if _, err := f.ReadAt(raw, sampleStart*stride); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read capture %s: %w", captureID, err)
	}

	i := make([]float64, sampleCount)
	q := make([]float64, sampleCount)
	switch datatype {
	case DatatypeCF32:
		for n := int64(0); n < sampleCount; n++ {
			i[n] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[n*8:])))
			q[n] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[n*8+4:])))
		}
	case DatatypeCI16:
		for n := int64(0); n < sampleCount; n++ {
			i[n] = float64(int16(binary.LittleEndian.Uint16(raw[n*4:]))) / 32768.0
			q[n] = float64(int16(binary.LittleEndian.Uint16(raw[n*4+2:]))) / 32768.0
		}
	}
	return NewSampleBlock(i, q, sampleRate)
}
