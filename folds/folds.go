// Package folds partitions track indices into reproducible k-fold splits.
package folds

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var (
	// ErrInvalidFolds is returned for a fold count outside [2, N]
	ErrInvalidFolds = errors.New("invalid number of folds")
	// ErrNoSuchRun is returned by KFold.Run for an out-of-range run
	ErrNoSuchRun = errors.New("no such run")
)

// Split names one of the three dataset partitions
type Split string

const (
	Train Split = "train"
	Test  Split = "test"
	Valid Split = "valid"
)

// Splits lists the partitions in their canonical order
var Splits = []Split{Train, Test, Valid}

// ParseSplit validates a split name
func ParseSplit(s string) (Split, error) {
	for _, split := range Splits {
		if string(split) == s {
			return split, nil
		}
	}
	return "", fmt.Errorf("unknown split %q", s)
}

// Run assigns an index subset to every split
type Run map[Split][]int

// KFold holds k contiguous folds of an index sequence and the k runs
// derived from them
type KFold struct {
	Folds [][]int
	Runs  []Run
}

// Shuffle returns a permutation of [0, n) determined only by seed.
// The PCG source makes it identical across processes and platforms.
func Shuffle(n int, seed uint64) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	return indices
}

// MakeFolds splits indices into nFolds contiguous folds. The first
// len(indices)%nFolds folds get one extra element. Run r takes fold r as
// test, fold (r+1)%k as valid and every other fold, in order, as train.
func MakeFolds(indices []int, nFolds int) (*KFold, error) {
	n := len(indices)
	if nFolds < 2 || nFolds > n {
		return nil, fmt.Errorf("%w: %d folds for %d indices", ErrInvalidFolds, nFolds, n)
	}

	kf := &KFold{
		Folds: make([][]int, nFolds),
		Runs:  make([]Run, nFolds),
	}

	base, extra := n/nFolds, n%nFolds
	start := 0
	for i := range kf.Folds {
		size := base
		if i < extra {
			size++
		}
		fold := make([]int, size)
		copy(fold, indices[start:start+size])
		kf.Folds[i] = fold
		start += size
	}

	for r := range kf.Runs {
		valid := (r + 1) % nFolds
		train := make([]int, 0, n-len(kf.Folds[r])-len(kf.Folds[valid]))
		for i, fold := range kf.Folds {
			if i != r && i != valid {
				train = append(train, fold...)
			}
		}
		kf.Runs[r] = Run{
			Test:  kf.Folds[r],
			Valid: kf.Folds[valid],
			Train: train,
		}
	}

	return kf, nil
}

// Run returns run r
func (kf *KFold) Run(r int) (Run, error) {
	if r < 0 || r >= len(kf.Runs) {
		return nil, fmt.Errorf("%w: %d of %d", ErrNoSuchRun, r, len(kf.Runs))
	}
	return kf.Runs[r], nil
}
