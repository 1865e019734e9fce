package spectral

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Backend selects the FFT implementation
type Backend string

const (
	// BackendGoDSP uses mjibson/go-dsp, which handles any length
	BackendGoDSP Backend = "go-dsp"
	// BackendGonum uses a precomputed gonum plan for a fixed length
	BackendGonum Backend = "gonum"
)

// FFT computes one-sided magnitude spectra of real frames at a fixed
// resolution. Frames longer than the resolution are truncated and shorter
// ones are zero-padded, like a length-n real FFT.
//
// An FFT reuses internal buffers and must not be shared between goroutines.
type FFT struct {
	size    int
	backend Backend
	plan    *fourier.FFT
	buf     []float64
	coeffs  []complex128
}

// NewFFT creates an FFT of the given resolution
func NewFFT(size int, backend Backend) (*FFT, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid FFT size: %d", size)
	}

	f := &FFT{
		size:    size,
		backend: backend,
		buf:     make([]float64, size),
	}

	switch backend {
	case BackendGoDSP, "":
		f.backend = BackendGoDSP
	case BackendGonum:
		f.plan = fourier.NewFFT(size)
		f.coeffs = make([]complex128, size/2+1)
	default:
		return nil, fmt.Errorf("unknown FFT backend: %q", backend)
	}

	return f, nil
}

// Size returns the FFT resolution
func (f *FFT) Size() int {
	return f.size
}

// Bins returns the number of one-sided frequency bins, size/2+1
func (f *FFT) Bins() int {
	return f.size/2 + 1
}

// Magnitudes writes |X[k]| for k in [0, size/2] into dst and returns it.
// dst is allocated when it is too short.
func (f *FFT) Magnitudes(dst, frame []float64) []float64 {
	bins := f.Bins()
	if len(dst) < bins {
		dst = make([]float64, bins)
	}
	dst = dst[:bins]

	n := copy(f.buf, frame)
	clear(f.buf[n:])

	switch f.backend {
	case BackendGonum:
		f.coeffs = f.plan.Coefficients(f.coeffs, f.buf)
		for i := range bins {
			dst[i] = cmplx.Abs(f.coeffs[i])
		}
	default:
		spectrum := fft.FFTReal(f.buf)
		for i := range bins {
			dst[i] = cmplx.Abs(spectrum[i])
		}
	}

	return dst
}
