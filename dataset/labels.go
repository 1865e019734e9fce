package dataset

import (
	"fmt"
)

// LabelMatrix is a dense row-major int8 matrix of one-hot genre labels
type LabelMatrix struct {
	rows, cols int
	data       []int8
}

// NewLabelMatrix allocates a zeroed rows×cols matrix
func NewLabelMatrix(rows, cols int) *LabelMatrix {
	return &LabelMatrix{rows: rows, cols: cols, data: make([]int8, rows*cols)}
}

// LabelMatrixFrom wraps row-major data without copying
func LabelMatrixFrom(rows, cols int, data []int8) (*LabelMatrix, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d labels for %dx%d", ErrShapeMismatch, len(data), rows, cols)
	}
	return &LabelMatrix{rows: rows, cols: cols, data: data}, nil
}

// Dims returns the matrix shape
func (m *LabelMatrix) Dims() (rows, cols int) {
	return m.rows, m.cols
}

// At returns the element at (i, j)
func (m *LabelMatrix) At(i, j int) int8 {
	return m.data[i*m.cols+j]
}

// SetOneHot clears row i and marks column class
func (m *LabelMatrix) SetOneHot(i, class int) {
	row := m.RawRow(i)
	clear(row)
	row[class] = 1
}

// RawRow returns row i backed by the matrix storage
func (m *LabelMatrix) RawRow(i int) []int8 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

// Raw returns the row-major storage
func (m *LabelMatrix) Raw() []int8 {
	return m.data
}

// Class returns the marked column of row i, or -1 if the row is not one-hot
func (m *LabelMatrix) Class(i int) int {
	class := -1
	for j, v := range m.RawRow(i) {
		switch {
		case v == 0:
		case v == 1 && class < 0:
			class = j
		default:
			return -1
		}
	}
	return class
}

// Slice returns a copy of rows [start, stop)
func (m *LabelMatrix) Slice(start, stop int) *LabelMatrix {
	data := make([]int8, (stop-start)*m.cols)
	copy(data, m.data[start*m.cols:stop*m.cols])
	return &LabelMatrix{rows: stop - start, cols: m.cols, data: data}
}

// Validate checks that every row holds exactly one 1
func (m *LabelMatrix) Validate() error {
	for i := range m.rows {
		if m.Class(i) < 0 {
			return fmt.Errorf("%w: label row %d is not one-hot", ErrShapeMismatch, i)
		}
	}
	return nil
}
