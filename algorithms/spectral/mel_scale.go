package spectral

import (
	"math"
)

// HzToMel converts frequency in Hz to mel scale
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// MelFilterBank is a set of triangular filters over one-sided FFT bins
type MelFilterBank struct {
	filters [][]float64
	bins    int
}

// NewMelFilterBank creates numFilters triangular filters equally spaced on
// the mel scale between lowFreq and highFreq, for an FFT of fftSize points.
func NewMelFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) *MelFilterBank {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil
	}

	bins := fftSize/2 + 1

	lowMel := HzToMel(lowFreq)
	highMel := HzToMel(highFreq)
	melStep := (highMel - lowMel) / float64(numFilters+1)

	// Filter edges as FFT bin indices
	binPoints := make([]int, numFilters+2)
	for i := range binPoints {
		hz := MelToHz(lowMel + float64(i)*melStep)
		binPoints[i] = min(int(math.Floor((float64(fftSize)+1.0)*hz/float64(sampleRate)+0.5)), fftSize/2)
	}

	filters := make([][]float64, numFilters)
	for m := range filters {
		filter := make([]float64, bins)
		left, center, right := binPoints[m], binPoints[m+1], binPoints[m+2]

		if center != left {
			for k := left; k < center && k < bins; k++ {
				filter[k] = float64(k-left) / float64(center-left)
			}
		}
		if right != center {
			for k := center; k < right && k < bins; k++ {
				filter[k] = float64(right-k) / float64(right-center)
			}
		}
		filters[m] = filter
	}

	return &MelFilterBank{filters: filters, bins: bins}
}

// Len returns the number of filters
func (fb *MelFilterBank) Len() int {
	return len(fb.filters)
}

// Filters returns the filter weights (for debugging/visualization)
func (fb *MelFilterBank) Filters() [][]float64 {
	return fb.filters
}

// Apply writes the filter bank energies of powerSpectrum into dst
func (fb *MelFilterBank) Apply(dst, powerSpectrum []float64) []float64 {
	if len(dst) < len(fb.filters) {
		dst = make([]float64, len(fb.filters))
	}
	dst = dst[:len(fb.filters)]

	for i, filter := range fb.filters {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		dst[i] = sum
	}

	return dst
}
