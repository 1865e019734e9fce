package windowing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownWindow is returned by New for a window name with no generator.
var ErrUnknownWindow = errors.New("unknown window type")

// Window is a fixed-size table of window coefficients
type Window struct {
	name         string
	size         int
	coefficients []float64
}

// generator fills coeffs with the coefficients of one window shape over a
// period of denominator samples
type generator func(coeffs []float64, denominator float64)

var generators = map[string]generator{
	"square":          rectangular,
	"rectangular":     rectangular,
	"boxcar":          rectangular,
	"hann":            hann,
	"hanning":         hann,
	"hamming":         hamming,
	"blackman":        blackman,
	"blackman-harris": blackmanHarris,
	"bartlett":        bartlett,
	"welch":           welch,
}

// New creates a periodic window of the given type and size.
// Periodic windows are the ones used for spectral analysis.
func New(name string, size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	key := strings.ToLower(strings.TrimSpace(name))
	gen, ok := generators[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownWindow, name, strings.Join(Names(), ", "))
	}

	w := &Window{
		name:         key,
		size:         size,
		coefficients: make([]float64, size),
	}
	gen(w.coefficients, float64(size))

	return w, nil
}

// Names lists every accepted window name in sorted order
func Names() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != w.size {
		return fmt.Errorf("%s window: signal length (%d) doesn't match window size (%d)", w.name, len(signal), w.size)
	}

	for i, c := range w.coefficients {
		signal[i] *= c
	}
	return nil
}
