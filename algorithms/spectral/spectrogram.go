package spectral

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/SunnyCat2013/genretron/algorithms/windowing"
)

// ErrSignalTooShort is returned when a waveform cannot hold a single window
var ErrSignalTooShort = errors.New("signal too short for given window size")

// Kind selects the per-frame feature
type Kind int

const (
	// KindSpectrogram keeps the magnitude of every one-sided FFT bin
	KindSpectrogram Kind = iota
	// KindMFCC reduces every frame to its mel cepstral coefficients
	KindMFCC
)

func (k Kind) String() string {
	switch k {
	case KindSpectrogram:
		return "spectrogram"
	case KindMFCC:
		return "mfcc"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Orientation is the layout of the output matrix
type Orientation int

const (
	// OrientationFrequencyMajor lays out bins as rows and frames as columns
	OrientationFrequencyMajor Orientation = iota
	// OrientationTimeMajor lays out frames as rows and bins as columns
	OrientationTimeMajor
)

// Flip returns the other orientation
func (o Orientation) Flip() Orientation {
	if o == OrientationTimeMajor {
		return OrientationFrequencyMajor
	}
	return OrientationTimeMajor
}

// SpectrogramParams configures a Spectrogram
type SpectrogramParams struct {
	SampleRate    int         `json:"sample_rate"`
	WindowSize    int         `json:"window_size"`
	StepSize      int         `json:"step_size"`
	Window        string      `json:"window"`
	FFTResolution int         `json:"fft_resolution"`
	Kind          Kind        `json:"kind"`
	Orientation   Orientation `json:"orientation"`
	Backend       Backend     `json:"backend"`
	MFCC          MFCCParams  `json:"mfcc"`
}

// DefaultSpectrogramParams returns a square-window, half-overlap magnitude
// spectrogram at 22050 Hz
func DefaultSpectrogramParams() SpectrogramParams {
	return SpectrogramParams{
		SampleRate:    22050,
		WindowSize:    2048,
		StepSize:      1024,
		Window:        "square",
		FFTResolution: 1024,
		Kind:          KindSpectrogram,
		Orientation:   OrientationFrequencyMajor,
		Backend:       BackendGoDSP,
		MFCC:          DefaultMFCCParams(),
	}
}

// FrameCount returns the number of whole windows that fit in a signal of
// the given length when advancing by stepSize.
func FrameCount(length, windowSize, stepSize int) int {
	if windowSize <= 0 || stepSize <= 0 || length < windowSize {
		return 0
	}
	return (length-windowSize)/stepSize + 1
}

// BinCount returns the number of values each frame is reduced to
func BinCount(p SpectrogramParams) int {
	if p.Kind == KindMFCC {
		n := p.MFCC.NumCoefficients
		if n <= 0 {
			n = DefaultMFCCParams().NumCoefficients
		}
		return n
	}
	return p.FFTResolution/2 + 1
}

// SpectrogramResult holds a transformed waveform
type SpectrogramResult struct {
	Data        *mat.Dense
	Frames      int
	Bins        int
	Orientation Orientation
}

// Flatten returns the row-major reshape of the matrix
func (r *SpectrogramResult) Flatten() []float64 {
	rows, cols := r.Data.Dims()
	flat := make([]float64, 0, rows*cols)
	for i := range rows {
		flat = append(flat, r.Data.RawRowView(i)...)
	}
	return flat
}

// Spectrogram converts waveforms into framed spectral matrices. Frames are
// processed sequentially with shared scratch buffers, so a Spectrogram must
// not be used from several goroutines at once.
type Spectrogram struct {
	params SpectrogramParams
	window *windowing.Window
	fft    *FFT
	mfcc   *MFCC
	bins   int

	frame   []float64
	mags    []float64
	cepstra []float64
}

// NewSpectrogram validates params and prepares the window, FFT and, for
// KindMFCC, the mel filter bank
func NewSpectrogram(params SpectrogramParams) (*Spectrogram, error) {
	if params.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if params.StepSize <= 0 {
		return nil, fmt.Errorf("step size must be positive")
	}
	if params.FFTResolution <= 0 {
		return nil, fmt.Errorf("FFT resolution must be positive")
	}
	if params.Window == "" {
		params.Window = "square"
	}

	window, err := windowing.New(params.Window, params.WindowSize)
	if err != nil {
		return nil, err
	}

	f, err := NewFFT(params.FFTResolution, params.Backend)
	if err != nil {
		return nil, err
	}

	s := &Spectrogram{
		params: params,
		window: window,
		fft:    f,
		frame:  make([]float64, params.WindowSize),
		mags:   make([]float64, f.Bins()),
	}

	switch params.Kind {
	case KindSpectrogram:
		s.bins = f.Bins()
	case KindMFCC:
		if params.SampleRate <= 0 {
			return nil, fmt.Errorf("MFCC requires a positive sample rate")
		}
		s.mfcc, err = NewMFCC(params.SampleRate, params.FFTResolution, params.MFCC)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MFCC: %w", err)
		}
		s.bins = s.mfcc.NumCoefficients()
		s.cepstra = make([]float64, s.bins)
	default:
		return nil, fmt.Errorf("unknown spectral kind: %v", params.Kind)
	}

	return s, nil
}

// Params returns the configuration
func (s *Spectrogram) Params() SpectrogramParams {
	return s.params
}

// Bins returns the number of values per frame
func (s *Spectrogram) Bins() int {
	return s.bins
}

// Frames returns the number of frames produced for a waveform of length n
func (s *Spectrogram) Frames(n int) int {
	return FrameCount(n, s.params.WindowSize, s.params.StepSize)
}

// Shape returns the output dimensions for a waveform of length n
func (s *Spectrogram) Shape(n int) (rows, cols int) {
	frames := s.Frames(n)
	if s.params.Orientation == OrientationTimeMajor {
		return frames, s.bins
	}
	return s.bins, frames
}

// Transform computes the spectral matrix of waveform
func (s *Spectrogram) Transform(waveform []float64) (*SpectrogramResult, error) {
	frames := s.Frames(len(waveform))
	if frames == 0 {
		return nil, fmt.Errorf("%w: %d samples, window %d", ErrSignalTooShort, len(waveform), s.params.WindowSize)
	}

	rows, cols := s.Shape(len(waveform))
	data := make([]float64, rows*cols)
	if err := s.TransformInto(data, waveform); err != nil {
		return nil, err
	}

	return &SpectrogramResult{
		Data:        mat.NewDense(rows, cols, data),
		Frames:      frames,
		Bins:        s.bins,
		Orientation: s.params.Orientation,
	}, nil
}

// TransformInto writes the flattened (row-major) spectral matrix of waveform
// into dst, which must have exactly Bins()*Frames(len(waveform)) elements.
func (s *Spectrogram) TransformInto(dst, waveform []float64) error {
	frames := s.Frames(len(waveform))
	if frames == 0 {
		return fmt.Errorf("%w: %d samples, window %d", ErrSignalTooShort, len(waveform), s.params.WindowSize)
	}
	if len(dst) != frames*s.bins {
		return fmt.Errorf("destination holds %d values, transform produces %d", len(dst), frames*s.bins)
	}

	for t := range frames {
		start := t * s.params.StepSize
		copy(s.frame, waveform[start:start+s.params.WindowSize])

		if err := s.window.ApplyInPlace(s.frame); err != nil {
			return err
		}

		values, err := s.frameValues()
		if err != nil {
			return fmt.Errorf("frame %d: %w", t, err)
		}

		if s.params.Orientation == OrientationTimeMajor {
			copy(dst[t*s.bins:(t+1)*s.bins], values)
			continue
		}
		for b, v := range values {
			dst[b*frames+t] = v
		}
	}

	return nil
}

func (s *Spectrogram) frameValues() ([]float64, error) {
	s.mags = s.fft.Magnitudes(s.mags, s.frame)
	if s.mfcc == nil {
		return s.mags, nil
	}

	var err error
	s.cepstra, err = s.mfcc.Compute(s.cepstra, s.mags)
	return s.cepstra, err
}
