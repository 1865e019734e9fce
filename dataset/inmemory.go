package dataset

import (
	"context"
	"fmt"
	"runtime"

	"gonum.org/v1/gonum/mat"

	"github.com/SunnyCat2013/genretron/algorithms/spectral"
	"github.com/SunnyCat2013/genretron/corpus"
	"github.com/SunnyCat2013/genretron/folds"
	"github.com/SunnyCat2013/genretron/logging"
)

// InMemoryOptions configures a dataset that is rebuilt from the corpus on
// every construction and never touches a cache file
type InMemoryOptions struct {
	Options

	Seconds       float64 `json:"seconds"`
	WindowSize    int     `json:"window_size"` // step is half the window
	FFTResolution int     `json:"fft_resolution"`
	Seed          uint64  `json:"seed"`
	// Transpose selects the frequency-major layout (bins as rows). The
	// inv_ features flip it.
	Transpose bool `json:"transpose"`

	SampleRate     int                 `json:"sample_rate"`
	NFolds         int                 `json:"n_folds"`
	NumberOfTracks int                 `json:"number_of_tracks"`
	Genres         []string            `json:"genres"`
	MFCC           spectral.MFCCParams `json:"mfcc"`
	Backend        spectral.Backend    `json:"backend"`
}

// DefaultInMemoryOptions returns the training split of the spectrogram
// feature with a 1024-sample window over 29 s of audio
func DefaultInMemoryOptions() InMemoryOptions {
	return InMemoryOptions{
		Options:        DefaultOptions(),
		Seconds:        29.0,
		WindowSize:     1024,
		FFTResolution:  1024,
		Seed:           1234,
		Transpose:      true,
		SampleRate:     22050,
		NFolds:         4,
		NumberOfTracks: 1000,
		Genres:         corpus.DefaultGenres,
		MFCC:           spectral.DefaultMFCCParams(),
		Backend:        spectral.BackendGoDSP,
	}
}

// Orientation returns the per-example matrix layout for the feature
func (o *InMemoryOptions) Orientation() spectral.Orientation {
	orientation := spectral.OrientationTimeMajor
	if o.Transpose {
		orientation = spectral.OrientationFrequencyMajor
	}
	if o.Feature.Inverted() {
		orientation = orientation.Flip()
	}
	return orientation
}

// Geometry derives the example geometry
func (o *InMemoryOptions) Geometry() (Geometry, error) {
	if o.WindowSize < 2 {
		return Geometry{}, fmt.Errorf("window size must be at least 2, got %d", o.WindowSize)
	}

	params := spectral.DefaultSpectrogramParams()
	params.SampleRate = o.SampleRate
	params.WindowSize = o.WindowSize
	params.StepSize = o.WindowSize / 2
	params.FFTResolution = o.FFTResolution
	params.Kind = o.Feature.Kind()
	params.Orientation = o.Orientation()
	params.Backend = o.Backend
	params.MFCC = o.MFCC
	return NewGeometry(o.Seconds, params)
}

// InMemory is a split held entirely in process memory
type InMemory struct {
	opts     InMemoryOptions
	geometry Geometry
	dm       *DesignMatrix
}

// NewInMemory builds the split described by opts from the corpus
func NewInMemory(ctx context.Context, opts InMemoryOptions) (*InMemory, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.Options = opts.Options.withDefaults()

	logger := opts.Logger.WithFields(logging.Fields{
		"component": "gtzan_in_memory",
		"split":     opts.Split,
		"feature":   opts.Feature,
	})

	geometry, err := opts.Geometry()
	if err != nil {
		return nil, err
	}
	logger.Debug("Geometry derived", geometry.fields())

	vocabulary, err := corpus.NewVocabulary(opts.Genres)
	if err != nil {
		return nil, err
	}

	dir, _, err := opts.location(logger)
	if err != nil {
		return nil, err
	}
	root, err := opts.corpusRoot(dir)
	if err != nil {
		return nil, err
	}

	mc := DefaultMaterializerConfig(root, geometry)
	mc.Vocabulary = vocabulary
	mc.NumberOfTracks = opts.NumberOfTracks
	mc.NFolds = opts.NFolds
	mc.Seed = opts.Seed
	mc.Precision = opts.Precision
	mc.Logger = opts.Logger
	mc.Progress = opts.Progress

	m, err := NewMaterializer(mc)
	if err != nil {
		return nil, err
	}
	built, err := m.Build(ctx, opts.Split)
	if err != nil {
		return nil, err
	}

	x, y := built.X, built.Y
	if opts.Rows != nil {
		x, y, err = sliceRows(x, y, *opts.Rows)
		if err != nil {
			return nil, err
		}
	}

	rows, cols := geometry.ImageShape()
	view, err := NewViewConverter([3]int{rows, cols, 1}, opts.Axes)
	if err != nil {
		return nil, err
	}
	dm, err := NewDesignMatrix(x, y, view)
	if err != nil {
		return nil, err
	}

	// release the full build and scratch buffers before preprocessing
	runtime.GC()

	if opts.Preprocessor != nil {
		canFit := opts.Split == folds.Train
		if err := opts.Preprocessor.Apply(dm, canFit); err != nil {
			return nil, fmt.Errorf("preprocessing %s: %w", opts.Split, err)
		}
		roundMatrix(dm.X, opts.Precision)
	}

	logger.Info("Split loaded", logging.Fields{"rows": dm.NumExamples()})

	return &InMemory{opts: opts, geometry: geometry, dm: dm}, nil
}

func sliceRows(x *mat.Dense, y *LabelMatrix, r RowRange) (*mat.Dense, *LabelMatrix, error) {
	rows, cols := x.Dims()
	if r.Stop > rows {
		return nil, nil, fmt.Errorf("%w: [%d, %d) of %d rows", ErrInvalidRows, r.Start, r.Stop, rows)
	}
	return mat.DenseCopyOf(x.Slice(r.Start, r.Stop, 0, cols)), y.Slice(r.Start, r.Stop), nil
}

// Split returns the split this dataset holds
func (d *InMemory) Split() folds.Split { return d.opts.Split }

// Feature returns the feature this dataset holds
func (d *InMemory) Feature() Feature { return d.opts.Feature }

// Geometry returns the example geometry
func (d *InMemory) Geometry() Geometry { return d.geometry }

// DesignMatrix returns the built examples
func (d *InMemory) DesignMatrix() *DesignMatrix { return d.dm }

// TestSet rebuilds the test split with the same configuration
func (d *InMemory) TestSet(ctx context.Context) (*InMemory, error) {
	opts := d.opts
	opts.Split = folds.Test
	return NewInMemory(ctx, opts)
}
