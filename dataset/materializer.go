package dataset

import (
	"context"
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/SunnyCat2013/genretron/algorithms/common"
	"github.com/SunnyCat2013/genretron/algorithms/spectral"
	"github.com/SunnyCat2013/genretron/corpus"
	"github.com/SunnyCat2013/genretron/folds"
	"github.com/SunnyCat2013/genretron/logging"
	"github.com/SunnyCat2013/genretron/transcode"
)

// MaterializerConfig describes how a corpus becomes feature matrices
type MaterializerConfig struct {
	Root           string             `json:"root"`
	Extensions     []string           `json:"extensions"`
	Vocabulary     *corpus.Vocabulary `json:"-"`
	NumberOfTracks int                `json:"number_of_tracks"`
	NFolds         int                `json:"n_folds"`
	Run            int                `json:"run"`
	Seed           uint64             `json:"seed"`
	Shuffle        bool               `json:"shuffle"`
	Geometry       Geometry           `json:"geometry"`
	Precision      Precision          `json:"precision"`

	Decoder  *transcode.Decoder `json:"-"`
	Logger   logging.Logger     `json:"-"`
	Progress io.Writer          `json:"-"`
}

// DefaultMaterializerConfig returns the GTZAN settings for a corpus at root:
// 1000 tracks, 4 folds, run 0, shuffled with seed 322
func DefaultMaterializerConfig(root string, geometry Geometry) MaterializerConfig {
	return MaterializerConfig{
		Root:           root,
		Extensions:     corpus.DefaultExtensions(),
		Vocabulary:     corpus.DefaultVocabulary(),
		NumberOfTracks: 1000,
		NFolds:         4,
		Seed:           322,
		Shuffle:        true,
		Geometry:       geometry,
		Precision:      PrecisionFloat32,
	}
}

// Matrices is one materialized split
type Matrices struct {
	X *mat.Dense
	Y *LabelMatrix
}

// Materializer turns the audio corpus into the X and Y matrices of a split
type Materializer struct {
	config      MaterializerConfig
	spectrogram *spectral.Spectrogram
	logger      logging.Logger
}

// NewMaterializer validates config and prepares the spectral transform
func NewMaterializer(config MaterializerConfig) (*Materializer, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("corpus root is empty")
	}
	if config.NumberOfTracks <= 0 {
		return nil, fmt.Errorf("number of tracks must be positive, got %d", config.NumberOfTracks)
	}
	if config.Vocabulary == nil {
		config.Vocabulary = corpus.DefaultVocabulary()
	}
	if config.Precision == "" {
		config.Precision = PrecisionFloat32
	}
	if config.Logger == nil {
		config.Logger = logging.GetGlobalLogger()
	}
	if config.Decoder == nil {
		dc := transcode.DefaultDecoderConfig()
		dc.TargetSampleRate = config.Geometry.Params.SampleRate
		config.Decoder = transcode.NewDecoder(dc)
		config.Decoder.SetLogger(config.Logger)
	}
	if len(config.Extensions) == 0 {
		config.Extensions = config.Decoder.Extensions()
	}

	s, err := spectral.NewSpectrogram(config.Geometry.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to create spectrogram: %w", err)
	}
	if s.Bins() != config.Geometry.Bins {
		return nil, fmt.Errorf("%w: transform yields %d bins, geometry expects %d", ErrShapeMismatch, s.Bins(), config.Geometry.Bins)
	}

	return &Materializer{
		config:      config,
		spectrogram: s,
		logger: config.Logger.WithFields(logging.Fields{
			"component": "materializer",
		}),
	}, nil
}

// Config returns the effective configuration
func (m *Materializer) Config() MaterializerConfig {
	return m.config
}

// Indices returns the corpus positions that make up split, in build order
func (m *Materializer) Indices(split folds.Split) ([]int, error) {
	var indices []int
	if m.config.Shuffle {
		indices = folds.Shuffle(m.config.NumberOfTracks, m.config.Seed)
	} else {
		indices = make([]int, m.config.NumberOfTracks)
		for i := range indices {
			indices[i] = i
		}
	}

	kf, err := folds.MakeFolds(indices, m.config.NFolds)
	if err != nil {
		return nil, err
	}
	run, err := kf.Run(m.config.Run)
	if err != nil {
		return nil, err
	}

	subset, ok := run[split]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSplit, split)
	}
	if len(subset) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySplit, split)
	}
	return subset, nil
}

// Build scans the corpus and extracts the features of every track in
// split. Tracks are decoded one at a time; ctx is checked between tracks.
func (m *Materializer) Build(ctx context.Context, split folds.Split) (*Matrices, error) {
	logger := m.logger.WithFields(logging.Fields{
		"function": "Build",
		"split":    split,
	})

	tracks, err := corpus.Scan(m.config.Root, m.config.Extensions)
	if err != nil {
		return nil, err
	}
	if len(tracks) != m.config.NumberOfTracks {
		return nil, fmt.Errorf("%w: found %d tracks under %s, want %d", ErrCorpusSize, len(tracks), m.config.Root, m.config.NumberOfTracks)
	}
	logger.Debug("Corpus scanned", logging.Fields{
		"tracks":    len(tracks),
		"per_genre": corpus.CountByGenre(tracks),
	})

	indices, err := m.Indices(split)
	if err != nil {
		return nil, err
	}

	g := m.config.Geometry
	genres := m.config.Vocabulary.Len()
	x := mat.NewDense(len(indices), g.ImageSize, nil)
	y := NewLabelMatrix(len(indices), genres)

	logger.Info("Materializing split", logging.Fields{
		"tracks":     len(indices),
		"image_size": g.ImageSize,
		"genres":     genres,
	})

	bar := newProgress(m.config.Progress, string(split), len(indices))
	defer bar.finish()

	for row, index := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()

		track := tracks[index]
		logger.Debug("Reading track", logging.Fields{
			"row":   row,
			"index": index,
			"path":  track.Path,
			"genre": track.Genre,
		})

		if err := m.extract(x.RawRowView(row), track); err != nil {
			return nil, err
		}

		class, err := m.config.Vocabulary.Index(track.Genre)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", track.Path, err)
		}
		y.SetOneHot(row, class)

		bar.increment(time.Since(start))
	}

	if err := checkShape(x, y, len(indices), g.ImageSize, genres); err != nil {
		return nil, err
	}

	summary := common.Summarize(x.RawMatrix().Data)
	logger.Debug("Split materialized", logging.Fields{
		"rows":    len(indices),
		"mean":    summary.Mean,
		"std_dev": summary.StdDev,
		"min":     summary.Min,
		"max":     summary.Max,
	})

	return &Matrices{X: x, Y: y}, nil
}

// extract decodes a track and writes its flattened feature into row
func (m *Materializer) extract(row []float64, track corpus.Track) error {
	audio, err := m.config.Decoder.ReadFrames(track.Path, m.config.Geometry.Samples)
	if err != nil {
		return err
	}

	if err := m.spectrogram.TransformInto(row, audio.PCM); err != nil {
		return fmt.Errorf("transforming %s: %w", track.Path, err)
	}

	for i, v := range row {
		row[i] = m.config.Precision.Round(v)
	}
	return nil
}

func checkShape(x *mat.Dense, y *LabelMatrix, rows, imageSize, genres int) error {
	xRows, xCols := x.Dims()
	yRows, yCols := y.Dims()

	switch {
	case xRows != rows || yRows != rows:
		return fmt.Errorf("%w: X has %d rows, Y has %d, want %d", ErrShapeMismatch, xRows, yRows, rows)
	case xCols != imageSize:
		return fmt.Errorf("%w: X has %d columns, want %d", ErrShapeMismatch, xCols, imageSize)
	case yCols != genres:
		return fmt.Errorf("%w: Y has %d columns, want %d", ErrShapeMismatch, yCols, genres)
	}
	return y.Validate()
}

func roundMatrix(x *mat.Dense, precision Precision) {
	rows, _ := x.Dims()
	for i := range rows {
		row := x.RawRowView(i)
		for j, v := range row {
			row[j] = precision.Round(v)
		}
	}
}
