package spectral

import (
	"fmt"
	"math"
)

// logFloor replaces zero mel energies before the logarithm
const logFloor = 1e-10

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // Number of MFCC coefficients (default: 13)
	NumMelFilters   int     `json:"num_mel_filters"`  // Number of mel filter bank filters (default: 26)
	LowFreq         float64 `json:"low_freq"`         // Low frequency bound (default: 0)
	HighFreq        float64 `json:"high_freq"`        // High frequency bound (default: sampleRate/2)
	UseLiftering    bool    `json:"use_liftering"`    // Apply liftering (default: true)
	LifterCoeff     float64 `json:"lifter_coeff"`     // Liftering coefficient (default: 22)
}

// DefaultMFCCParams returns the usual 13-coefficient configuration
func DefaultMFCCParams() MFCCParams {
	return MFCCParams{
		NumCoefficients: 13,
		NumMelFilters:   26,
		UseLiftering:    true,
		LifterCoeff:     22.0,
	}
}

// MFCC computes Mel-Frequency Cepstral Coefficients from magnitude spectra
// of one fixed FFT size. It keeps scratch buffers and is not safe for
// concurrent use.
type MFCC struct {
	params     MFCCParams
	filterBank *MelFilterBank
	dctMatrix  [][]float64
	lifter     []float64

	power  []float64
	logMel []float64
}

// NewMFCC prepares an MFCC computer for spectra of an fftSize-point FFT
func NewMFCC(sampleRate, fftSize int, params MFCCParams) (*MFCC, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if fftSize <= 0 {
		return nil, fmt.Errorf("invalid FFT size: %d", fftSize)
	}

	defaults := DefaultMFCCParams()
	if params.NumCoefficients <= 0 {
		params.NumCoefficients = defaults.NumCoefficients
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = defaults.NumMelFilters
	}
	if params.HighFreq <= 0 {
		params.HighFreq = float64(sampleRate) / 2.0
	}
	if params.LifterCoeff <= 0 {
		params.LifterCoeff = defaults.LifterCoeff
	}
	if params.NumCoefficients > params.NumMelFilters {
		return nil, fmt.Errorf("%d coefficients requested from %d mel filters", params.NumCoefficients, params.NumMelFilters)
	}
	if params.LowFreq < 0 || params.LowFreq >= params.HighFreq {
		return nil, fmt.Errorf("invalid mel frequency range [%g, %g]", params.LowFreq, params.HighFreq)
	}

	m := &MFCC{
		params:     params,
		filterBank: NewMelFilterBank(params.NumMelFilters, fftSize, sampleRate, params.LowFreq, params.HighFreq),
		power:      make([]float64, fftSize/2+1),
		logMel:     make([]float64, params.NumMelFilters),
	}
	m.createDCTMatrix()
	m.createLifter()

	return m, nil
}

// NumCoefficients returns the number of coefficients per frame
func (m *MFCC) NumCoefficients() int {
	return m.params.NumCoefficients
}

// Params returns the resolved parameters
func (m *MFCC) Params() MFCCParams {
	return m.params
}

// Compute writes the MFCCs of one magnitude spectrum into dst
func (m *MFCC) Compute(dst, magnitudeSpectrum []float64) ([]float64, error) {
	if len(magnitudeSpectrum) != len(m.power) {
		return nil, fmt.Errorf("magnitude spectrum has %d bins, expected %d", len(magnitudeSpectrum), len(m.power))
	}

	for i, mag := range magnitudeSpectrum {
		m.power[i] = mag * mag
	}

	m.logMel = m.filterBank.Apply(m.logMel, m.power)
	for i, mel := range m.logMel {
		m.logMel[i] = math.Log(math.Max(mel, logFloor))
	}

	n := m.params.NumCoefficients
	if len(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	for k, basis := range m.dctMatrix {
		sum := 0.0
		for j, v := range m.logMel {
			sum += v * basis[j]
		}
		dst[k] = sum * m.lifter[k]
	}

	return dst, nil
}

// createDCTMatrix builds an orthonormal DCT-II basis
func (m *MFCC) createDCTMatrix() {
	filters := m.params.NumMelFilters
	m.dctMatrix = make([][]float64, m.params.NumCoefficients)

	for k := range m.dctMatrix {
		row := make([]float64, filters)
		scale := math.Sqrt(2.0 / float64(filters))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(filters))
		}
		for n := range row {
			row[n] = scale * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/float64(filters))
		}
		m.dctMatrix[k] = row
	}
}

// createLifter precomputes the sinusoidal lifter; C0 is never liftered.
func (m *MFCC) createLifter() {
	m.lifter = make([]float64, m.params.NumCoefficients)
	for i := range m.lifter {
		m.lifter[i] = 1.0
		if m.params.UseLiftering && i > 0 {
			m.lifter[i] += (m.params.LifterCoeff / 2.0) * math.Sin(math.Pi*float64(i)/m.params.LifterCoeff)
		}
	}
}
