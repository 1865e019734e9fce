package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Axis names one dimension of the topological view
type Axis string

const (
	AxisBatch   Axis = "b"
	AxisRows    Axis = "0"
	AxisCols    Axis = "1"
	AxisChannel Axis = "c"
)

// DefaultAxes is batch, rows, cols, channel
func DefaultAxes() []Axis {
	return []Axis{AxisBatch, AxisRows, AxisCols, AxisChannel}
}

var canonicalAxes = DefaultAxes()

func validateAxes(axes []Axis) error {
	if len(axes) != len(canonicalAxes) {
		return fmt.Errorf("%w: %v", ErrInvalidAxes, axes)
	}
	seen := make(map[Axis]bool, len(axes))
	for _, a := range axes {
		if axisPosition(a) < 0 || seen[a] {
			return fmt.Errorf("%w: %v", ErrInvalidAxes, axes)
		}
		seen[a] = true
	}
	return nil
}

func axisPosition(a Axis) int {
	for i, c := range canonicalAxes {
		if c == a {
			return i
		}
	}
	return -1
}

// ViewConverter maps design matrix rows to an image tensor of shape
// rows×cols×channels laid out in a chosen axis order
type ViewConverter struct {
	shape [3]int
	axes  []Axis
}

// NewViewConverter creates a converter for images of the given shape
func NewViewConverter(shape [3]int, axes []Axis) (*ViewConverter, error) {
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("%w: view shape %v", ErrShapeMismatch, shape)
		}
	}
	if err := validateAxes(axes); err != nil {
		return nil, err
	}
	return &ViewConverter{shape: shape, axes: append([]Axis(nil), axes...)}, nil
}

// Shape returns the image shape (rows, cols, channels)
func (v *ViewConverter) Shape() [3]int {
	return v.shape
}

// Axes returns the axis order
func (v *ViewConverter) Axes() []Axis {
	return append([]Axis(nil), v.axes...)
}

// ImageSize is the number of design matrix columns one image occupies
func (v *ViewConverter) ImageSize() int {
	return v.shape[0] * v.shape[1] * v.shape[2]
}

// TopoShape returns the tensor dimensions for a batch, in axis order
func (v *ViewConverter) TopoShape(batch int) []int {
	canonical := [4]int{batch, v.shape[0], v.shape[1], v.shape[2]}
	dims := make([]int, len(v.axes))
	for i, a := range v.axes {
		dims[i] = canonical[axisPosition(a)]
	}
	return dims
}

// DesignToTopo converts design rows into a flat tensor in axis order,
// returned together with its dimensions
func (v *ViewConverter) DesignToTopo(x mat.Matrix) ([]float64, []int, error) {
	batch, cols := x.Dims()
	if cols != v.ImageSize() {
		return nil, nil, fmt.Errorf("%w: %d columns, view holds %d", ErrShapeMismatch, cols, v.ImageSize())
	}

	dims := v.TopoShape(batch)
	strides := v.strides(dims)
	out := make([]float64, batch*cols)

	rows, width, channels := v.shape[0], v.shape[1], v.shape[2]
	for b := range batch {
		for i := range rows {
			for j := range width {
				for c := range channels {
					src := (i*width+j)*channels + c
					dst := b*strides[0] + i*strides[1] + j*strides[2] + c*strides[3]
					out[dst] = x.At(b, src)
				}
			}
		}
	}
	return out, dims, nil
}

// TopoToDesign reverses DesignToTopo
func (v *ViewConverter) TopoToDesign(topo []float64, batch int) (*mat.Dense, error) {
	cols := v.ImageSize()
	if batch <= 0 {
		return nil, fmt.Errorf("%w: batch of %d images", ErrShapeMismatch, batch)
	}
	if len(topo) != batch*cols {
		return nil, fmt.Errorf("%w: %d values for %d images of %d", ErrShapeMismatch, len(topo), batch, cols)
	}

	strides := v.strides(v.TopoShape(batch))
	out := mat.NewDense(batch, cols, nil)

	rows, width, channels := v.shape[0], v.shape[1], v.shape[2]
	for b := range batch {
		row := out.RawRowView(b)
		for i := range rows {
			for j := range width {
				for c := range channels {
					src := b*strides[0] + i*strides[1] + j*strides[2] + c*strides[3]
					row[(i*width+j)*channels+c] = topo[src]
				}
			}
		}
	}
	return out, nil
}

// strides returns the step of each canonical axis (b, 0, 1, c) within a
// tensor laid out in v.axes order with the given dims
func (v *ViewConverter) strides(dims []int) [4]int {
	var strides [4]int
	step := 1
	for i := len(v.axes) - 1; i >= 0; i-- {
		strides[axisPosition(v.axes[i])] = step
		step *= dims[i]
	}
	return strides
}
