package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DesignMatrix holds the examples of one split: features X, one-hot labels
// Y and the view that reshapes an X row into an image
type DesignMatrix struct {
	X    *mat.Dense
	Y    *LabelMatrix
	View *ViewConverter
}

// NewDesignMatrix checks that X and Y agree and that X rows fit the view
func NewDesignMatrix(x *mat.Dense, y *LabelMatrix, view *ViewConverter) (*DesignMatrix, error) {
	xRows, xCols := x.Dims()
	yRows, _ := y.Dims()
	if xRows != yRows {
		return nil, fmt.Errorf("%w: X has %d rows, Y has %d", ErrShapeMismatch, xRows, yRows)
	}
	if view != nil && xCols != view.ImageSize() {
		return nil, fmt.Errorf("%w: X has %d columns, view holds %d", ErrShapeMismatch, xCols, view.ImageSize())
	}
	return &DesignMatrix{X: x, Y: y, View: view}, nil
}

// NumExamples returns the number of rows
func (dm *DesignMatrix) NumExamples() int {
	rows, _ := dm.X.Dims()
	return rows
}

// Batch returns views of rows [start, stop). X shares storage with the
// design matrix; Y is copied.
func (dm *DesignMatrix) Batch(start, stop int) (mat.Matrix, *LabelMatrix, error) {
	if start < 0 || stop > dm.NumExamples() || start >= stop {
		return nil, nil, fmt.Errorf("%w: [%d, %d) of %d examples", ErrInvalidRows, start, stop, dm.NumExamples())
	}
	_, cols := dm.X.Dims()
	return dm.X.Slice(start, stop, 0, cols), dm.Y.Slice(start, stop), nil
}

// Topological returns rows [start, stop) as an image tensor in the view's
// axis order
func (dm *DesignMatrix) Topological(start, stop int) ([]float64, []int, error) {
	x, _, err := dm.Batch(start, stop)
	if err != nil {
		return nil, nil, err
	}
	return dm.View.DesignToTopo(x)
}
