package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/SunnyCat2013/genretron/algorithms/spectral"
	"github.com/SunnyCat2013/genretron/folds"
	"github.com/SunnyCat2013/genretron/logging"
	"github.com/SunnyCat2013/genretron/store"
)

const (
	// DataPathEnv names the environment variable holding the data root
	DataPathEnv = "GENRETRON_DATA_PATH"

	canonicalLocation = "${" + DataPathEnv + "}/GTZAN"
)

// CanonicalPath returns the shared read-only GTZAN location. It fails with
// ErrUndefinedVariable when GENRETRON_DATA_PATH is unset or empty.
func CanonicalPath() (string, error) {
	return expandPath(canonicalLocation)
}

// expandPath substitutes environment variables in path, refusing unset or
// empty ones so that "${X}/GTZAN" never collapses to "/GTZAN"
func expandPath(path string) (string, error) {
	var missing []string
	expanded := os.Expand(path, func(name string) string {
		value := os.Getenv(name)
		if value == "" {
			missing = append(missing, name)
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s in %q", ErrUndefinedVariable, strings.Join(missing, ", "), path)
	}
	return filepath.Clean(expanded), nil
}

// Feature names the per-example representation
type Feature string

const (
	FeatureSpectrogram    Feature = "spectrogram"
	FeatureMFCC           Feature = "mfcc"
	FeatureInvSpectrogram Feature = "inv_spectrogram"
	FeatureInvMFCC        Feature = "inv_mfcc"
)

// Features lists every feature the in-memory dataset understands
var Features = []Feature{FeatureSpectrogram, FeatureMFCC, FeatureInvSpectrogram, FeatureInvMFCC}

// CachedFeatures lists the features the disk-cached dataset understands
var CachedFeatures = []Feature{FeatureSpectrogram, FeatureMFCC}

// ParseFeature validates a feature name against allowed
func ParseFeature(s string, allowed []Feature) (Feature, error) {
	f := Feature(s)
	if !slices.Contains(allowed, f) {
		return "", fmt.Errorf("%w: %q (want one of %v)", ErrInvalidFeature, s, allowed)
	}
	return f, nil
}

// Kind returns the spectral transform behind the feature
func (f Feature) Kind() spectral.Kind {
	if f == FeatureMFCC || f == FeatureInvMFCC {
		return spectral.KindMFCC
	}
	return spectral.KindSpectrogram
}

// Inverted reports whether the feature flips the matrix orientation
func (f Feature) Inverted() bool {
	return f == FeatureInvSpectrogram || f == FeatureInvMFCC
}

// Precision is the floating point width feature values are rounded to
type Precision string

const (
	PrecisionFloat32 Precision = "float32"
	PrecisionFloat64 Precision = "float64"
)

// Round rounds v to the precision
func (p Precision) Round(v float64) float64 {
	if p == PrecisionFloat64 {
		return v
	}
	return float64(float32(v))
}

func (p Precision) dtype() store.DType {
	if p == PrecisionFloat64 {
		return store.Float64
	}
	return store.Float32
}

func (p Precision) valid() bool {
	return p == PrecisionFloat32 || p == PrecisionFloat64
}

// RowRange restricts a dataset to rows [Start, Stop)
type RowRange struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
}

func (r *RowRange) validate() error {
	if r.Start < 0 || r.Stop <= r.Start {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidRows, r.Start, r.Stop)
	}
	return nil
}

// Options is the configuration shared by both dataset variants
type Options struct {
	Split   folds.Split `json:"split"`
	Feature Feature     `json:"feature"`

	// Path is a private, writable data directory. Empty selects the
	// canonical read-only location.
	Path string `json:"path"`

	// Center and Scale are accepted but not applied
	Center bool `json:"center"`
	Scale  bool `json:"scale"`

	Rows *RowRange `json:"rows,omitempty"`
	Axes []Axis    `json:"axes"`

	// CorpusRoot holds the genre directories. Defaults to the data
	// directory.
	CorpusRoot string    `json:"corpus_root"`
	Precision  Precision `json:"precision"`

	Preprocessor Preprocessor   `json:"-"`
	Logger       logging.Logger `json:"-"`
	// Progress receives a progress bar while tracks are read. Nil disables it.
	Progress io.Writer `json:"-"`
}

// DefaultOptions returns the training split of the spectrogram feature at
// the canonical location
func DefaultOptions() Options {
	return Options{
		Split:     folds.Train,
		Feature:   FeatureSpectrogram,
		Axes:      DefaultAxes(),
		Precision: PrecisionFloat32,
	}
}

// Validate checks the configuration without touching the filesystem
func (o *Options) Validate() error {
	if _, err := folds.ParseSplit(string(o.Split)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSplit, err)
	}
	if _, err := ParseFeature(string(o.Feature), Features); err != nil {
		return err
	}
	if o.Precision != "" && !o.Precision.valid() {
		return fmt.Errorf("unknown precision %q", o.Precision)
	}
	if o.Axes != nil {
		if err := validateAxes(o.Axes); err != nil {
			return err
		}
	}
	if o.Rows != nil {
		if err := o.Rows.validate(); err != nil {
			return err
		}
	}

	if o.Path == "" && (o.Center || o.Scale || o.Rows != nil) {
		return ErrReadOnlyCache
	}
	return nil
}

// withDefaults fills unset optional fields
func (o Options) withDefaults() Options {
	if o.Axes == nil {
		o.Axes = DefaultAxes()
	}
	if o.Precision == "" {
		o.Precision = PrecisionFloat32
	}
	if o.Logger == nil {
		o.Logger = logging.GetGlobalLogger()
	}
	return o
}

// location resolves the data directory and the mode it is opened in.
// A private path logs a warning since its contents may differ from the
// canonical data.
func (o *Options) location(logger logging.Logger) (string, store.Mode, error) {
	if o.Path == "" {
		path, err := CanonicalPath()
		return path, store.ReadOnly, err
	}

	path, err := expandPath(o.Path)
	if err != nil {
		return "", store.ReadWrite, err
	}
	logger.Warn("Data path differs from the canonical location; data may have been modified or preprocessed", logging.Fields{
		"path":      path,
		"canonical": canonicalLocation,
	})
	return path, store.ReadWrite, nil
}

func (o *Options) corpusRoot(dataDir string) (string, error) {
	if o.CorpusRoot == "" {
		return dataDir, nil
	}
	return expandPath(o.CorpusRoot)
}
