package common

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of a set of values
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes count, mean, sample standard deviation and range
func Summarize(data []float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}

	s := Summary{
		Count: len(data),
		Min:   floats.Min(data),
		Max:   floats.Max(data),
	}

	if len(data) < 2 {
		s.Mean = data[0]
		return s
	}

	s.Mean, s.StdDev = stat.MeanStdDev(data, nil)
	return s
}
