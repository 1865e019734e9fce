package dataset

import (
	"fmt"

	"github.com/SunnyCat2013/genretron/algorithms/spectral"
	"github.com/SunnyCat2013/genretron/logging"
)

// Geometry is the derived, immutable shape of one example
type Geometry struct {
	Seconds float64                    `json:"seconds"`
	Params  spectral.SpectrogramParams `json:"params"`

	Samples   int `json:"samples"` // mono frames read per track
	Wins      int `json:"wins_per_track"`
	Bins      int `json:"bins_per_track"`
	ImageSize int `json:"image_size"`
}

// NewGeometry derives the frame counts for tracks of the given duration.
// Wins is computed from seconds*sample rate, never from decoded lengths.
func NewGeometry(seconds float64, params spectral.SpectrogramParams) (Geometry, error) {
	if seconds <= 0 {
		return Geometry{}, fmt.Errorf("track duration must be positive, got %v", seconds)
	}
	if params.SampleRate <= 0 {
		return Geometry{}, fmt.Errorf("sample rate must be positive, got %d", params.SampleRate)
	}

	samples := int(seconds * float64(params.SampleRate))
	wins := spectral.FrameCount(samples, params.WindowSize, params.StepSize)
	if wins == 0 {
		return Geometry{}, fmt.Errorf("%w: %d samples, window %d", spectral.ErrSignalTooShort, samples, params.WindowSize)
	}
	bins := spectral.BinCount(params)

	return Geometry{
		Seconds:   seconds,
		Params:    params,
		Samples:   samples,
		Wins:      wins,
		Bins:      bins,
		ImageSize: wins * bins,
	}, nil
}

// ImageShape returns the per-example matrix shape in the configured
// orientation
func (g Geometry) ImageShape() (rows, cols int) {
	if g.Params.Orientation == spectral.OrientationTimeMajor {
		return g.Wins, g.Bins
	}
	return g.Bins, g.Wins
}

func (g Geometry) fields() logging.Fields {
	return logging.Fields{
		"seconds":        g.Seconds,
		"sample_rate":    g.Params.SampleRate,
		"window_size":    g.Params.WindowSize,
		"step_size":      g.Params.StepSize,
		"fft_resolution": g.Params.FFTResolution,
		"wins_per_track": g.Wins,
		"bins_per_track": g.Bins,
		"image_size":     g.ImageSize,
	}
}
