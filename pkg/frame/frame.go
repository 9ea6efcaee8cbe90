// Package frame is a small columnar table used to carry tabular data
// between connectors, dataset statistics and the ML engine.
//
// Cells are nil (null), int64, float64, bool, time.Time or string.
package frame

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	xe "github.com/opst/mlengine/pkg/errors"
)

type DType string

const (
	Int64    DType = "int64"
	Float64  DType = "float64"
	Bool     DType = "bool"
	Datetime DType = "datetime64[ns]"
	Object   DType = "object"
)

func (d DType) String() string {
	return string(d)
}

// Series is a named column.
type Series struct {
	Name   string
	DType  DType
	Values []any
}

// Nulls counts nil cells.
func (s *Series) Nulls() int {
	n := 0
	for _, v := range s.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Unique counts distinct non-null cells.
func (s *Series) Unique() int {
	seen := map[string]struct{}{}
	for _, v := range s.Values {
		if v == nil {
			continue
		}
		seen[key(v)] = struct{}{}
	}
	return len(seen)
}

type Frame struct {
	columns []string
	series  map[string]*Series
	rows    int
}

// Empty is a frame without rows and columns.
func Empty() *Frame {
	return &Frame{series: map[string]*Series{}}
}

// FromRows builds a frame from rows of Go values, inferring the dtype of each column.
//
// Values of rows are normalised: []byte becomes string, sized ints become int64,
// float32 becomes float64. Strings are kept as they are.
func FromRows(columns []string, rows [][]any) (*Frame, error) {
	cols := make([][]any, len(columns))
	for i := range cols {
		cols[i] = make([]any, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, xe.Errorf("row %d has %d values, but %d columns", r, len(row), len(columns))
		}
		for c, v := range row {
			cols[c][r] = normalize(v)
		}
	}

	f := &Frame{
		columns: dedupeColumns(columns),
		series:  make(map[string]*Series, len(columns)),
		rows:    len(rows),
	}
	for i, name := range f.columns {
		f.series[name] = typed(name, cols[i])
	}
	return f, nil
}

// fromStrings builds a frame from text cells, parsing each column into its inferred dtype.
func fromStrings(columns []string, rows [][]string) *Frame {
	f := &Frame{
		columns: dedupeColumns(columns),
		series:  make(map[string]*Series, len(columns)),
		rows:    len(rows),
	}
	for c, name := range f.columns {
		cells := make([]string, len(rows))
		for r := range rows {
			cells[r] = rows[r][c]
		}
		f.series[name] = parseColumn(name, cells)
	}
	return f
}

func (f *Frame) Columns() []string {
	return slices.Clone(f.columns)
}

// Len is the number of rows.
func (f *Frame) Len() int {
	return f.rows
}

// Width is the number of columns.
func (f *Frame) Width() int {
	return len(f.columns)
}

func (f *Frame) Series(name string) (*Series, bool) {
	s, ok := f.series[name]
	return s, ok
}

func (f *Frame) DTypes() map[string]DType {
	d := make(map[string]DType, len(f.columns))
	for _, c := range f.columns {
		d[c] = f.series[c].DType
	}
	return d
}

func (f *Frame) Row(i int) []any {
	row := make([]any, len(f.columns))
	for c, name := range f.columns {
		row[c] = f.series[name].Values[i]
	}
	return row
}

func (f *Frame) Rows() [][]any {
	rows := make([][]any, f.rows)
	for i := range rows {
		rows[i] = f.Row(i)
	}
	return rows
}

// Records returns rows as column-to-value maps.
func (f *Frame) Records() []map[string]any {
	recs := make([]map[string]any, f.rows)
	for i := range recs {
		rec := make(map[string]any, len(f.columns))
		for _, name := range f.columns {
			rec[name] = f.series[name].Values[i]
		}
		recs[i] = rec
	}
	return recs
}

// Head returns the first n rows. n larger than Len gives every row.
func (f *Frame) Head(n int) *Frame {
	n = max(0, min(n, f.rows))
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return f.take(idx)
}

// Sample picks n rows at random, deterministically for the seed.
//
// Picked rows keep their original order. When n >= Len, the frame is returned as is.
func (f *Frame) Sample(n int, seed uint64) *Frame {
	if n >= f.rows {
		return f
	}
	rnd := rand.New(rand.NewPCG(seed, seed))
	idx := rnd.Perm(f.rows)[:max(n, 0)]
	slices.Sort(idx)
	return f.take(idx)
}

func (f *Frame) take(idx []int) *Frame {
	out := &Frame{
		columns: slices.Clone(f.columns),
		series:  make(map[string]*Series, len(f.columns)),
		rows:    len(idx),
	}
	for _, name := range f.columns {
		src := f.series[name]
		vals := make([]any, len(idx))
		for i, r := range idx {
			vals[i] = src.Values[r]
		}
		out.series[name] = &Series{Name: name, DType: src.DType, Values: vals}
	}
	return out
}

func (f *Frame) NullCounts() map[string]int {
	nc := make(map[string]int, len(f.columns))
	for _, c := range f.columns {
		nc[c] = f.series[c].Nulls()
	}
	return nc
}

// MissingCells counts null cells over the whole frame.
func (f *Frame) MissingCells() int {
	n := 0
	for _, c := range f.columns {
		n += f.series[c].Nulls()
	}
	return n
}

// DuplicateRows counts rows equal to some earlier row.
func (f *Frame) DuplicateRows() int {
	seen := make(map[string]struct{}, f.rows)
	dup := 0
	for i := 0; i < f.rows; i++ {
		k := rowKey(f.Row(i))
		if _, ok := seen[k]; ok {
			dup++
			continue
		}
		seen[k] = struct{}{}
	}
	return dup
}

func rowKey(row []any) string {
	b := new(strings.Builder)
	for _, v := range row {
		b.WriteString(key(v))
		b.WriteByte(0x1f)
	}
	return b.String()
}

func key(v any) string {
	switch x := v.(type) {
	case nil:
		return "\x00"
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case float64:
		return "f:" + strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

// dedupeColumns renames repeated column names as "name.1", "name.2", ...
func dedupeColumns(columns []string) []string {
	out := make([]string, len(columns))
	taken := make(map[string]bool, len(columns))
	counts := map[string]int{}
	for i, c := range columns {
		name := c
		for taken[name] {
			counts[c]++
			name = fmt.Sprintf("%s.%d", c, counts[c])
		}
		taken[name] = true
		out[i] = name
	}
	return out
}
