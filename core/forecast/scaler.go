package forecast

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes features to zero mean and unit variance. Parameters are
// fit on the training split only and reused verbatim at inference time; they
// travel with the model artifact.
type Scaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// FitScaler computes per-feature mean and standard deviation over x.
// Constant features get a unit deviation so transforming them is a no-op
// around the mean.
func FitScaler(x [][]float64) (*Scaler, error) {
	if len(x) == 0 {
		return nil, errors.New("cannot fit scaler on empty matrix")
	}
	width := len(x[0])
	col := make([]float64, len(x))
	s := &Scaler{Means: make([]float64, width), Stds: make([]float64, width)}
	for f := 0; f < width; f++ {
		for i, row := range x {
			col[i] = row[f]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || len(x) < 2 {
			std = 1
		}
		s.Means[f] = mean
		s.Stds[f] = std
	}
	return s, nil
}

// Transform returns a standardized copy of the vector.
func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.Means[i]) / s.Stds[i]
	}
	return out
}

// TransformAll standardizes every row of the matrix.
func (s *Scaler) TransformAll(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = s.Transform(row)
	}
	return out
}
