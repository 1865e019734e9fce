package dataset

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Preprocessor transforms a built design matrix in place. canFit is true
// only for the training split; other splits reuse what was learned there.
type Preprocessor interface {
	Apply(dm *DesignMatrix, canFit bool) error
}

// Pipeline applies preprocessors in order
type Pipeline []Preprocessor

// Apply runs every stage
func (p Pipeline) Apply(dm *DesignMatrix, canFit bool) error {
	for _, stage := range p {
		if err := stage.Apply(dm, canFit); err != nil {
			return err
		}
	}
	return nil
}

// Standardize subtracts the mean and divides by the standard deviation
// (population, plus StdEps) learned from the training split
type Standardize struct {
	GlobalMean bool    `json:"global_mean"` // one mean over all features
	GlobalStd  bool    `json:"global_std"`  // one std over all features
	StdEps     float64 `json:"std_eps"`

	mean []float64
	std  []float64
}

// NewStandardize returns a per-feature standardizer
func NewStandardize() *Standardize {
	return &Standardize{StdEps: 1e-4}
}

// Fitted reports whether statistics have been learned
func (s *Standardize) Fitted() bool {
	return s.mean != nil
}

// Mean returns the learned means
func (s *Standardize) Mean() []float64 { return s.mean }

// Std returns the learned standard deviations
func (s *Standardize) Std() []float64 { return s.std }

// Apply fits when allowed, then standardizes every row of dm.X
func (s *Standardize) Apply(dm *DesignMatrix, canFit bool) error {
	if canFit {
		s.fit(dm.X)
	}
	if !s.Fitted() {
		return ErrNotFitted
	}

	rows, cols := dm.X.Dims()
	if len(s.mean) != cols {
		return ErrShapeMismatch
	}

	denom := make([]float64, cols)
	for j := range denom {
		denom[j] = s.std[j] + s.StdEps
	}

	for i := range rows {
		row := dm.X.RawRowView(i)
		floats.Sub(row, s.mean)
		floats.Div(row, denom)
	}
	return nil
}

func (s *Standardize) fit(x *mat.Dense) {
	rows, cols := x.Dims()
	s.mean = make([]float64, cols)
	s.std = make([]float64, cols)

	if s.GlobalMean || s.GlobalStd {
		all := make([]float64, 0, rows*cols)
		for i := range rows {
			all = append(all, x.RawRowView(i)...)
		}
		mean, std := stat.PopMeanStdDev(all, nil)
		if s.GlobalMean {
			fill(s.mean, mean)
		}
		if s.GlobalStd {
			fill(s.std, std)
		}
	}

	col := make([]float64, rows)
	for j := range cols {
		if s.GlobalMean && s.GlobalStd {
			break
		}
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		if !s.GlobalMean {
			s.mean[j] = mean
		}
		if !s.GlobalStd {
			s.std[j] = std
		}
	}
}

func fill(dst []float64, v float64) {
	for i := range dst {
		dst[i] = v
	}
}
