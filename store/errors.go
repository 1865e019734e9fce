package store

import "errors"

var (
	// ErrNotCacheFile means the file is not parquet or lacks the cache metadata
	ErrNotCacheFile = errors.New("not a feature cache file")
	// ErrCorrupt means the stored rows disagree with the cache metadata
	ErrCorrupt = errors.New("corrupt feature cache")
	// ErrReadOnly is returned for writes on a file opened read-only
	ErrReadOnly = errors.New("feature cache opened read-only")
	// ErrNoSuchArray is returned for an unknown array name
	ErrNoSuchArray = errors.New("no such array")
	// ErrRowRange is returned for a row range outside the stored rows
	ErrRowRange = errors.New("row range out of bounds")
	// ErrShape is returned when arrays disagree on row count or data length
	ErrShape = errors.New("array shape mismatch")
)
