package dataset

import "errors"

// Configuration errors
var (
	ErrInvalidSplit   = errors.New("invalid split")
	ErrInvalidFeature = errors.New("invalid feature")
	ErrInvalidRows    = errors.New("invalid row range")
	ErrInvalidAxes    = errors.New("invalid axes")
	ErrReadOnlyCache  = errors.New("the canonical GTZAN cache is read-only; pass a private path to modify the data")

	ErrUndefinedVariable = errors.New("undefined environment variable in data path")
)

// Integrity errors
var (
	ErrCorpusSize    = errors.New("corpus does not hold the expected number of tracks")
	ErrShapeMismatch = errors.New("dataset shape mismatch")
	ErrEmptySplit    = errors.New("split selects no tracks")
	ErrNotFitted     = errors.New("preprocessor applied before fitting")
)
