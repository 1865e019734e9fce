// Package store reads and writes the feature cache: a parquet file holding
// equally-row-counted arrays. Each parquet row is one row of one array;
// arrays are stored one after another, so row r of the i-th array is file
// row i*Rows+r. Array names, dtypes and attributes live in the file's
// key/value metadata.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

const (
	formatVersion = 2
	metadataKey   = "genretron.store"

	// Extension is the file extension of feature cache files
	Extension = ".gtzc"
)

// Mode selects how a cache file is opened
type Mode int

const (
	// ReadOnly is the mode for the shared canonical cache
	ReadOnly Mode = iota
	// ReadWrite allows Replace and Resize on a private copy
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "r+"
	}
	return "r"
}

// Options tunes how arrays are written
type Options struct {
	ChunkRows       int  `json:"chunk_rows"`       // rows per parquet row group (default 16)
	HighCompression bool `json:"high_compression"` // zstd instead of lz4
}

// DefaultOptions mirrors a blosc:lz4 table
func DefaultOptions() Options {
	return Options{
		ChunkRows: 16,
	}
}

func (o Options) codec() compress.Codec {
	if o.HighCompression {
		return &parquet.Zstd
	}
	return &parquet.Lz4Raw
}

// Array is one named 2-D array. Float arrays use Floats, Int8 arrays use
// Int8s; both are row-major with Rows*Cols elements.
type Array struct {
	Name   string
	DType  DType
	Rows   int
	Cols   int
	Floats []float64
	Int8s  []int8
}

func (a *Array) validate() error {
	if a.Name == "" {
		return fmt.Errorf("array name is empty")
	}
	if !a.DType.valid() {
		return fmt.Errorf("array %q: unknown dtype %q", a.Name, a.DType)
	}
	if a.Rows < 0 || a.Cols <= 0 {
		return fmt.Errorf("%w: array %q is %dx%d", ErrShape, a.Name, a.Rows, a.Cols)
	}

	n := len(a.Floats)
	if a.DType == Int8 {
		n = len(a.Int8s)
	}
	if n != a.Rows*a.Cols {
		return fmt.Errorf("%w: array %q has %d values, want %d", ErrShape, a.Name, n, a.Rows*a.Cols)
	}
	return nil
}

// ArrayInfo describes a stored array
type ArrayInfo struct {
	Name  string `json:"name"`
	DType DType  `json:"dtype"`
	Cols  int    `json:"cols"`
}

type footer struct {
	Version int               `json:"version"`
	Rows    int               `json:"rows"`
	Arrays  []ArrayInfo       `json:"arrays"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// Write stores arrays and attributes at path. The file is written to a
// temporary sibling and renamed into place, so readers never observe a
// partial cache.
func Write(path string, arrays []Array, attrs map[string]string, opts Options) error {
	if len(arrays) == 0 {
		return fmt.Errorf("no arrays to write")
	}
	if opts.ChunkRows <= 0 {
		opts.ChunkRows = DefaultOptions().ChunkRows
	}

	rows := arrays[0].Rows
	for i := range arrays {
		if err := arrays[i].validate(); err != nil {
			return err
		}
		if arrays[i].Rows != rows {
			return fmt.Errorf("%w: array %q has %d rows, %q has %d", ErrShape, arrays[i].Name, arrays[i].Rows, arrays[0].Name, rows)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := writeTo(tmp, rows, arrays, attrs, opts); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("installing cache file: %w", err)
	}
	return nil
}

func writeTo(w io.Writer, rows int, arrays []Array, attrs map[string]string, opts Options) error {
	ft := footer{Version: formatVersion, Rows: rows, Attrs: attrs}
	for _, a := range arrays {
		ft.Arrays = append(ft.Arrays, ArrayInfo{Name: a.Name, DType: a.DType, Cols: a.Cols})
	}
	meta, err := json.Marshal(ft)
	if err != nil {
		return fmt.Errorf("encoding cache metadata: %w", err)
	}

	pw := parquet.NewGenericWriter[record](w,
		parquet.Compression(opts.codec()),
		parquet.KeyValueMetadata(metadataKey, string(meta)),
	)

	batch := make([]record, 0, opts.ChunkRows)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pw.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		// one row group per chunk
		return pw.Flush()
	}

	for i := range arrays {
		a := &arrays[i]
		for r := range rows {
			batch = batch[:len(batch)+1]
			encodeRow(&batch[len(batch)-1], a, r)
			if len(batch) == cap(batch) {
				if err := flush(); err != nil {
					return fmt.Errorf("writing array %q: %w", a.Name, err)
				}
			}
		}
		if err := flush(); err != nil {
			return fmt.Errorf("writing array %q: %w", a.Name, err)
		}
	}

	if err := pw.Close(); err != nil {
		return fmt.Errorf("closing cache writer: %w", err)
	}
	return nil
}

// File is an open feature cache
type File struct {
	path   string
	mode   Mode
	f      *os.File
	pf     *parquet.File
	footer footer
}

// Open opens a cache file and reads its metadata; array data is read on demand
func Open(path string, mode Mode) (*File, error) {
	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR
	}

	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening feature cache: %w", err)
	}

	pf, ft, err := readFooter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &File{path: path, mode: mode, f: f, pf: pf, footer: ft}, nil
}

func readFooter(f *os.File) (*parquet.File, footer, error) {
	var ft footer

	st, err := f.Stat()
	if err != nil {
		return nil, ft, err
	}

	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, ft, fmt.Errorf("%w: %v", ErrNotCacheFile, err)
	}

	meta, ok := pf.Lookup(metadataKey)
	if !ok {
		return nil, ft, fmt.Errorf("%w: missing %s metadata", ErrNotCacheFile, metadataKey)
	}
	if err := json.Unmarshal([]byte(meta), &ft); err != nil {
		return nil, ft, fmt.Errorf("%w: metadata: %v", ErrCorrupt, err)
	}
	if ft.Version != formatVersion {
		return nil, ft, fmt.Errorf("%w: unsupported version %d", ErrNotCacheFile, ft.Version)
	}
	if want := int64(ft.Rows) * int64(len(ft.Arrays)); pf.NumRows() != want {
		return nil, ft, fmt.Errorf("%w: file holds %d rows, metadata describes %d", ErrCorrupt, pf.NumRows(), want)
	}
	return pf, ft, nil
}

// Path returns the file path
func (c *File) Path() string { return c.path }

// Mode returns the open mode
func (c *File) Mode() Mode { return c.mode }

// Rows returns the shared row count of every array
func (c *File) Rows() int { return c.footer.Rows }

// Attrs returns a copy of the stored attributes
func (c *File) Attrs() map[string]string {
	attrs := make(map[string]string, len(c.footer.Attrs))
	for k, v := range c.footer.Attrs {
		attrs[k] = v
	}
	return attrs
}

// Info describes the named array
func (c *File) Info(name string) (ArrayInfo, error) {
	index := c.index(name)
	if index < 0 {
		return ArrayInfo{}, fmt.Errorf("%w: %q", ErrNoSuchArray, name)
	}
	return c.footer.Arrays[index], nil
}

// Names lists the stored arrays in write order
func (c *File) Names() []string {
	names := make([]string, len(c.footer.Arrays))
	for i, a := range c.footer.Arrays {
		names[i] = a.Name
	}
	return names
}

// Read loads rows [start, stop) of the named array
func (c *File) Read(name string, start, stop int) (Array, error) {
	index := c.index(name)
	if index < 0 {
		return Array{}, fmt.Errorf("%w: %q", ErrNoSuchArray, name)
	}
	if start < 0 || stop > c.footer.Rows || start > stop {
		return Array{}, fmt.Errorf("%w: [%d, %d) of %d rows", ErrRowRange, start, stop, c.footer.Rows)
	}

	info := c.footer.Arrays[index]
	out := Array{
		Name:  name,
		DType: info.DType,
		Rows:  stop - start,
		Cols:  info.Cols,
	}
	if info.DType == Int8 {
		out.Int8s = make([]int8, out.Rows*out.Cols)
	} else {
		out.Floats = make([]float64, out.Rows*out.Cols)
	}
	if out.Rows == 0 {
		return out, nil
	}

	first := int64(index)*int64(c.footer.Rows) + int64(start)
	reader := parquet.NewGenericReader[record](c.pf)
	defer reader.Close()
	if err := reader.SeekToRow(first); err != nil {
		return Array{}, fmt.Errorf("reading array %q: %w", name, err)
	}

	batch := make([]record, min(out.Rows, 16))
	for done := 0; done < out.Rows; {
		n, err := reader.Read(batch[:min(len(batch), out.Rows-done)])
		for i := range n {
			if err := decodeRow(&out, &batch[i], int64(start+done+i), done+i); err != nil {
				return Array{}, err
			}
		}
		done += n

		if n == 0 && err == nil {
			return Array{}, fmt.Errorf("%w: array %q stalled at row %d", ErrCorrupt, name, start+done)
		}
		if errors.Is(err, io.EOF) && done < out.Rows {
			return Array{}, fmt.Errorf("%w: array %q ends after %d of %d rows", ErrCorrupt, name, start+done, stop)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return Array{}, fmt.Errorf("reading array %q: %w", name, err)
		}
	}

	return out, nil
}

func (c *File) index(name string) int {
	for i, a := range c.footer.Arrays {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// ReadAll loads every row of the named array
func (c *File) ReadAll(name string) (Array, error) {
	return c.Read(name, 0, c.footer.Rows)
}

// Replace rewrites the file with new contents and reopens it. Only
// allowed in ReadWrite mode.
func (c *File) Replace(arrays []Array, attrs map[string]string, opts Options) error {
	if c.mode != ReadWrite {
		return ErrReadOnly
	}

	if err := Write(c.path, arrays, attrs, opts); err != nil {
		return err
	}

	reopened, err := Open(c.path, c.mode)
	if err != nil {
		return err
	}
	c.f.Close()
	*c = *reopened
	return nil
}

// ResizedPath returns where Resize writes a row-restricted copy
func ResizedPath(path string) string {
	return strings.TrimSuffix(path, Extension) + "_resized" + Extension
}

// Resize copies rows [start, stop) of every array into a sibling file
// (see ResizedPath) and opens it read-write. The receiver is left
// untouched. Only allowed in ReadWrite mode, since the copy is meant to be
// modified.
func (c *File) Resize(start, stop int, opts Options) (*File, error) {
	if c.mode != ReadWrite {
		return nil, ErrReadOnly
	}
	if start < 0 || stop > c.footer.Rows || start >= stop {
		return nil, fmt.Errorf("%w: [%d, %d) of %d rows", ErrRowRange, start, stop, c.footer.Rows)
	}

	arrays := make([]Array, 0, len(c.footer.Arrays))
	for _, info := range c.footer.Arrays {
		a, err := c.Read(info.Name, start, stop)
		if err != nil {
			return nil, err
		}
		arrays = append(arrays, a)
	}

	attrs := c.Attrs()
	attrs["resized_from"] = filepath.Base(c.path)
	attrs["resized_rows"] = fmt.Sprintf("%d:%d", start, stop)

	path := ResizedPath(c.path)
	if err := Write(path, arrays, attrs, opts); err != nil {
		return nil, err
	}
	return Open(path, ReadWrite)
}

// Flush commits pending writes to disk
func (c *File) Flush() error {
	if c.mode != ReadWrite {
		return nil
	}
	return c.f.Sync()
}

// Close closes the file
func (c *File) Close() error {
	return c.f.Close()
}
