package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/SunnyCat2013/genretron/algorithms/spectral"
	"github.com/SunnyCat2013/genretron/corpus"
	"github.com/SunnyCat2013/genretron/folds"
	"github.com/SunnyCat2013/genretron/logging"
	"github.com/SunnyCat2013/genretron/store"
)

// CachedConfig fixes the geometry and partitioning of the disk-cached
// dataset. Cache files built with one configuration are not valid for
// another.
type CachedConfig struct {
	Seconds        float64             `json:"seconds"`
	SampleRate     int                 `json:"sample_rate"`
	WindowSize     int                 `json:"window_size"`
	StepSize       int                 `json:"step_size"`
	FFTResolution  int                 `json:"fft_resolution"`
	Seed           uint64              `json:"seed"`
	NFolds         int                 `json:"n_folds"`
	NumberOfTracks int                 `json:"number_of_tracks"`
	SplitSizes     map[folds.Split]int `json:"split_sizes"`
	Genres         []string            `json:"genres"`
	MFCC           spectral.MFCCParams `json:"mfcc"`
	Store          store.Options       `json:"store"`
}

// DefaultCachedConfig returns the canonical GTZAN cache layout
func DefaultCachedConfig() CachedConfig {
	return CachedConfig{
		Seconds:        29,
		SampleRate:     22050,
		WindowSize:     2048,
		StepSize:       1024,
		FFTResolution:  1024,
		Seed:           322,
		NFolds:         4,
		NumberOfTracks: 1000,
		SplitSizes: map[folds.Split]int{
			folds.Train: 500,
			folds.Test:  250,
			folds.Valid: 250,
		},
		Genres: corpus.DefaultGenres,
		MFCC:   spectral.DefaultMFCCParams(),
		Store:  store.DefaultOptions(),
	}
}

// Geometry derives the example geometry of a feature
func (c CachedConfig) Geometry(feature Feature) (Geometry, error) {
	params := spectral.DefaultSpectrogramParams()
	params.SampleRate = c.SampleRate
	params.WindowSize = c.WindowSize
	params.StepSize = c.StepSize
	params.FFTResolution = c.FFTResolution
	params.Kind = feature.Kind()
	params.Orientation = spectral.OrientationFrequencyMajor
	params.MFCC = c.MFCC
	return NewGeometry(c.Seconds, params)
}

// CacheFileName returns "{feature}_{split}.gtzc"
func CacheFileName(feature Feature, split folds.Split) string {
	return fmt.Sprintf("%s_%s%s", feature, split, store.Extension)
}

// Cached is a split backed by a compressed cache file. The file is built
// from the corpus the first time it is requested.
type Cached struct {
	opts     Options
	config   CachedConfig
	geometry Geometry
	file     *store.File
	dm       *DesignMatrix
	logger   logging.Logger
}

// NewCached opens, or builds then opens, the cache of opts.Split and
// opts.Feature using the canonical layout
func NewCached(ctx context.Context, opts Options) (*Cached, error) {
	return NewCachedWithConfig(ctx, opts, DefaultCachedConfig())
}

// NewCachedWithConfig is NewCached with a custom layout
func NewCachedWithConfig(ctx context.Context, opts Options, config CachedConfig) (*Cached, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseFeature(string(opts.Feature), CachedFeatures); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	logger := opts.Logger.WithFields(logging.Fields{
		"component": "gtzan_cached",
		"split":     opts.Split,
		"feature":   opts.Feature,
	})

	geometry, err := config.Geometry(opts.Feature)
	if err != nil {
		return nil, err
	}

	dir, mode, err := opts.location(logger)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, CacheFileName(opts.Feature, opts.Split))

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := buildCache(ctx, path, opts, config, geometry, dir, logger); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("checking feature cache: %w", err)
	}

	file, err := store.Open(path, mode)
	if err != nil {
		return nil, err
	}

	c := &Cached{
		opts:     opts,
		config:   config,
		geometry: geometry,
		file:     file,
		logger:   logger,
	}
	if err := c.load(); err != nil {
		c.file.Close()
		return nil, err
	}
	return c, nil
}

func buildCache(ctx context.Context, path string, opts Options, config CachedConfig, geometry Geometry, dir string, logger logging.Logger) error {
	logger = logger.WithFields(logging.Fields{"function": "buildCache"})
	logger.Info("Feature cache missing, building it", logging.Fields{"path": path})

	vocabulary, err := corpus.NewVocabulary(config.Genres)
	if err != nil {
		return err
	}

	root, err := opts.corpusRoot(dir)
	if err != nil {
		return err
	}

	mc := DefaultMaterializerConfig(root, geometry)
	mc.Vocabulary = vocabulary
	mc.NumberOfTracks = config.NumberOfTracks
	mc.NFolds = config.NFolds
	mc.Seed = config.Seed
	mc.Precision = opts.Precision
	mc.Logger = opts.Logger
	mc.Progress = opts.Progress

	m, err := NewMaterializer(mc)
	if err != nil {
		return err
	}
	built, err := m.Build(ctx, opts.Split)
	if err != nil {
		return err
	}

	rows, _ := built.X.Dims()
	if want, ok := config.SplitSizes[opts.Split]; ok && rows != want {
		return fmt.Errorf("%w: %s split has %d rows, want %d", ErrShapeMismatch, opts.Split, rows, want)
	}

	attrs := map[string]string{
		"feature":        string(opts.Feature),
		"split":          string(opts.Split),
		"seed":           strconv.FormatUint(config.Seed, 10),
		"wins_per_track": strconv.Itoa(geometry.Wins),
		"bins_per_track": strconv.Itoa(geometry.Bins),
		"precision":      string(opts.Precision),
	}
	if err := store.Write(path, cacheArrays(built.X, built.Y, opts.Precision), attrs, config.Store); err != nil {
		return err
	}

	logger.Info("Feature cache written", logging.Fields{"path": path, "rows": rows})
	return nil
}

func cacheArrays(x *mat.Dense, y *LabelMatrix, precision Precision) []store.Array {
	xRows, xCols := x.Dims()
	yRows, yCols := y.Dims()

	data := make([]float64, 0, xRows*xCols)
	for i := range xRows {
		data = append(data, x.RawRowView(i)...)
	}

	return []store.Array{
		{Name: "X", DType: precision.dtype(), Rows: xRows, Cols: xCols, Floats: data},
		{Name: "y", DType: store.Int8, Rows: yRows, Cols: yCols, Int8s: y.Raw()},
	}
}

// load reads the cache into the design matrix, restricting rows and
// running the preprocessor as configured
func (c *Cached) load() error {
	if c.opts.Rows != nil {
		resized, err := c.file.Resize(c.opts.Rows.Start, c.opts.Rows.Stop, c.config.Store)
		if err != nil {
			return err
		}
		c.file.Close()
		c.file = resized
		c.logger.Info("Using resized cache", logging.Fields{
			"path": resized.Path(),
			"rows": resized.Rows(),
		})
	}

	xa, err := c.file.ReadAll("X")
	if err != nil {
		return err
	}
	ya, err := c.file.ReadAll("y")
	if err != nil {
		return err
	}

	if xa.Cols != c.geometry.ImageSize {
		return fmt.Errorf("%w: cached X has %d columns, want %d", ErrShapeMismatch, xa.Cols, c.geometry.ImageSize)
	}
	if ya.Cols != len(c.config.Genres) {
		return fmt.Errorf("%w: cached y has %d columns, want %d", ErrShapeMismatch, ya.Cols, len(c.config.Genres))
	}
	if xa.Rows == 0 {
		return fmt.Errorf("%w: %s", ErrEmptySplit, c.file.Path())
	}

	y, err := LabelMatrixFrom(ya.Rows, ya.Cols, ya.Int8s)
	if err != nil {
		return err
	}

	rows, cols := c.geometry.ImageShape()
	view, err := NewViewConverter([3]int{rows, cols, 1}, c.opts.Axes)
	if err != nil {
		return err
	}

	c.dm, err = NewDesignMatrix(mat.NewDense(xa.Rows, xa.Cols, xa.Floats), y, view)
	if err != nil {
		return err
	}

	return c.preprocess()
}

func (c *Cached) preprocess() error {
	if c.opts.Preprocessor == nil {
		return nil
	}

	canFit := c.opts.Split == folds.Train
	if err := c.opts.Preprocessor.Apply(c.dm, canFit); err != nil {
		return fmt.Errorf("preprocessing %s: %w", c.opts.Split, err)
	}
	roundMatrix(c.dm.X, c.opts.Precision)

	if c.file.Mode() != store.ReadWrite {
		return nil
	}

	attrs := c.file.Attrs()
	attrs["preprocessed"] = "true"
	if err := c.file.Replace(cacheArrays(c.dm.X, c.dm.Y, c.opts.Precision), attrs, c.config.Store); err != nil {
		return err
	}
	return c.file.Flush()
}

// Split returns the split this dataset holds
func (c *Cached) Split() folds.Split { return c.opts.Split }

// Feature returns the feature this dataset holds
func (c *Cached) Feature() Feature { return c.opts.Feature }

// Geometry returns the example geometry
func (c *Cached) Geometry() Geometry { return c.geometry }

// DesignMatrix returns the loaded examples
func (c *Cached) DesignMatrix() *DesignMatrix { return c.dm }

// Path returns the cache file backing the dataset
func (c *Cached) Path() string { return c.file.Path() }

// TestSet opens the test split with the same configuration
func (c *Cached) TestSet(ctx context.Context) (*Cached, error) {
	opts := c.opts
	opts.Split = folds.Test
	return NewCachedWithConfig(ctx, opts, c.config)
}

// Close releases the cache file
func (c *Cached) Close() error {
	return c.file.Close()
}
