package store

import "fmt"

// DType is the on-disk element type of an array
type DType string

const (
	Float32 DType = "float32"
	Float64 DType = "float64"
	Int8    DType = "int8"
)

// Size returns the element width in bytes
func (d DType) Size() int {
	switch d {
	case Float32:
		return 4
	case Float64:
		return 8
	case Int8:
		return 1
	default:
		return 0
	}
}

func (d DType) valid() bool {
	return d.Size() > 0
}

// record is one parquet row: a single row of one array. Only the column
// matching the array's dtype is populated; the others stay empty.
type record struct {
	Array   string    `parquet:"array,dict"`
	Row     int64     `parquet:"row"`
	Float32 []float32 `parquet:"float32"`
	Float64 []float64 `parquet:"float64"`
	Int8    []int8    `parquet:"int8"`
}

// encodeRow copies row r of a into rec
func encodeRow(rec *record, a *Array, r int) {
	lo, hi := r*a.Cols, (r+1)*a.Cols
	*rec = record{Array: a.Name, Row: int64(r)}

	switch a.DType {
	case Float32:
		rec.Float32 = make([]float32, a.Cols)
		for i, v := range a.Floats[lo:hi] {
			rec.Float32[i] = float32(v)
		}
	case Float64:
		rec.Float64 = a.Floats[lo:hi]
	case Int8:
		rec.Int8 = a.Int8s[lo:hi]
	}
}

// decodeRow checks rec against the expected array row and copies its
// values into out at row position dst
func decodeRow(out *Array, rec *record, row int64, dst int) error {
	if rec.Array != out.Name || rec.Row != row {
		return fmt.Errorf("%w: expected %s row %d, found %s row %d", ErrCorrupt, out.Name, row, rec.Array, rec.Row)
	}

	var n int
	switch out.DType {
	case Float32:
		n = len(rec.Float32)
	case Float64:
		n = len(rec.Float64)
	case Int8:
		n = len(rec.Int8)
	}
	if n != out.Cols {
		return fmt.Errorf("%w: %s row %d holds %d values, want %d", ErrCorrupt, out.Name, row, n, out.Cols)
	}

	lo := dst * out.Cols
	switch out.DType {
	case Float32:
		for i, v := range rec.Float32 {
			out.Floats[lo+i] = float64(v)
		}
	case Float64:
		copy(out.Floats[lo:], rec.Float64)
	case Int8:
		copy(out.Int8s[lo:], rec.Int8)
	}
	return nil
}
