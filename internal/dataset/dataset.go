// Package dataset holds materialized querysets: tables indexed by a time
// level and a unit level, with one float64 column per queryset column.
//
// Storage is columnar. Index keys are kept as int32 (month, year, country and
// grid identifiers all fit), which keeps a grid-month dataset of tens of
// millions of rows within a few gigabytes. Missing values are NaN.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
)

// ErrAmbiguousKey is returned when more than one row carries the same
// (time, unit) key.
var ErrAmbiguousKey = errors.New("ambiguous key")

// KeyError is returned by Loc when no row has the requested key.
type KeyError struct {
	Time int64
	Unit int64
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("no row at (%d, %d)", e.Time, e.Unit)
}

// ColumnError is returned when a column is not part of the dataset.
type ColumnError struct {
	Column    string
	Available []string
}

// Error implements the error interface.
func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q not in dataset (have %v)", e.Column, e.Available)
}

// Dataset is an immutable two-level indexed table.
type Dataset struct {
	indexNames [2]string
	columns    []string
	colIndex   map[string]int

	times  []int32
	units  []int32
	values [][]float64 // values[col][row]

	sorted bool
	once   sync.Once
	order  []int32 // row positions sorted by (time, unit), built lazily when !sorted
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.times)
}

// IndexNames returns the (time, unit) index level names.
func (d *Dataset) IndexNames() [2]string {
	return d.indexNames
}

// Columns returns the data column names in order.
func (d *Dataset) Columns() []string {
	return slices.Clone(d.columns)
}

// HasColumn reports whether name is a data column.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.colIndex[name]
	return ok
}

// Row returns the i-th row in storage order.
func (d *Dataset) Row(i int) Row {
	return Row{ds: d, pos: i}
}

// Loc returns the row at (time, unit).
//
// Lookup is a binary search over the key order; the first lookup on an
// unsorted dataset builds the sort permutation once.
func (d *Dataset) Loc(time, unit int64) (Row, error) {
	if time < math.MinInt32 || time > math.MaxInt32 || unit < math.MinInt32 || unit > math.MaxInt32 {
		return Row{}, &KeyError{Time: time, Unit: unit}
	}
	t, u := int32(time), int32(unit)

	n := d.Len()
	at := func(i int) int {
		if d.sorted {
			return i
		}
		return int(d.order[i])
	}
	if !d.sorted {
		d.once.Do(d.buildOrder)
	}

	i := sort.Search(n, func(i int) bool {
		p := at(i)
		return compareKey(d.times[p], d.units[p], t, u) >= 0
	})
	if i == n || d.times[at(i)] != t || d.units[at(i)] != u {
		return Row{}, &KeyError{Time: time, Unit: unit}
	}
	if i+1 < n && d.times[at(i+1)] == t && d.units[at(i+1)] == u {
		return Row{}, fmt.Errorf("%w: more than one row at (%d, %d)", ErrAmbiguousKey, time, unit)
	}
	return Row{ds: d, pos: at(i)}, nil
}

// TimeValues returns the distinct time keys in ascending order.
func (d *Dataset) TimeValues() []int64 {
	seen := make(map[int32]struct{})
	for _, t := range d.times {
		seen[t] = struct{}{}
	}
	out := make([]int64, 0, len(seen))
	for t := range seen {
		out = append(out, int64(t))
	}
	slices.Sort(out)
	return out
}

func (d *Dataset) buildOrder() {
	order := make([]int32, d.Len())
	for i := range order {
		order[i] = int32(i)
	}
	sort.Slice(order, func(a, b int) bool {
		pa, pb := order[a], order[b]
		return compareKey(d.times[pa], d.units[pa], d.times[pb], d.units[pb]) < 0
	})
	d.order = order
}

func compareKey(t1, u1, t2, u2 int32) int {
	switch {
	case t1 < t2:
		return -1
	case t1 > t2:
		return 1
	case u1 < u2:
		return -1
	case u1 > u2:
		return 1
	default:
		return 0
	}
}

// Row is a view of one dataset row.
type Row struct {
	ds  *Dataset
	pos int
}

// Time returns the row's time key.
func (r Row) Time() int64 {
	return int64(r.ds.times[r.pos])
}

// Unit returns the row's unit key.
func (r Row) Unit() int64 {
	return int64(r.ds.units[r.pos])
}

// Value returns the value of column. Missing values are NaN.
func (r Row) Value(column string) (float64, error) {
	c, ok := r.ds.colIndex[column]
	if !ok {
		return 0, &ColumnError{Column: column, Available: r.ds.Columns()}
	}
	return r.ds.values[c][r.pos], nil
}

// Values returns all column values keyed by column name.
func (r Row) Values() map[string]float64 {
	out := make(map[string]float64, len(r.ds.columns))
	for i, name := range r.ds.columns {
		out[name] = r.ds.values[i][r.pos]
	}
	return out
}

// Builder accumulates rows into a Dataset.
type Builder struct {
	ds    *Dataset
	last  [2]int32
	built bool
}

// NewBuilder creates a builder for a dataset with the given index level
// names and data columns. Column names must be unique and non-empty.
func NewBuilder(indexNames [2]string, columns []string) (*Builder, error) {
	colIndex := make(map[string]int, len(columns))
	for i, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("column %d: empty name", i)
		}
		if _, dup := colIndex[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		colIndex[c] = i
	}

	return &Builder{
		ds: &Dataset{
			indexNames: indexNames,
			columns:    slices.Clone(columns),
			colIndex:   colIndex,
			values:     make([][]float64, len(columns)),
			sorted:     true,
		},
	}, nil
}

// Append adds a row. values must have one entry per column.
func (b *Builder) Append(time, unit int64, values []float64) error {
	if b.built {
		return errors.New("append after Build")
	}
	if len(values) != len(b.ds.columns) {
		return fmt.Errorf("row has %d values, dataset has %d columns", len(values), len(b.ds.columns))
	}
	if time < math.MinInt32 || time > math.MaxInt32 {
		return fmt.Errorf("time key %d out of range", time)
	}
	if unit < math.MinInt32 || unit > math.MaxInt32 {
		return fmt.Errorf("unit key %d out of range", unit)
	}

	t, u := int32(time), int32(unit)
	ds := b.ds
	if len(ds.times) > 0 && compareKey(b.last[0], b.last[1], t, u) > 0 {
		ds.sorted = false
	}
	b.last = [2]int32{t, u}

	ds.times = append(ds.times, t)
	ds.units = append(ds.units, u)
	for i, v := range values {
		ds.values[i] = append(ds.values[i], v)
	}
	return nil
}

// Build returns the dataset. The builder cannot be used afterwards.
func (b *Builder) Build() *Dataset {
	b.built = true
	return b.ds
}
