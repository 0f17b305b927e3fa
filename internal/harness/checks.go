package harness

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/prio-data/queries-benchmark/internal/dataset"
)

// Assertion type constants.
const (
	AssertRowCount = "row_count"
	AssertValue    = "value"
	AssertColumns  = "columns"
)

// AssertionError is returned when a check fails.
type AssertionError struct {
	Trial    string // Set by the runner
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// CheckFunc inspects a fetched dataset. It returns nil when the dataset is
// as expected and an *AssertionError otherwise.
type CheckFunc func(ds *dataset.Dataset) error

// All runs checks in order and returns the first failure.
func All(checks ...CheckFunc) CheckFunc {
	return func(ds *dataset.Dataset) error {
		for _, check := range checks {
			if err := check(ds); err != nil {
				return err
			}
		}
		return nil
	}
}

// RowCount checks the dataset has exactly n rows.
func RowCount(n int) CheckFunc {
	return func(ds *dataset.Dataset) error {
		if got := ds.Len(); got != n {
			return &AssertionError{
				Type:     AssertRowCount,
				Expected: fmt.Sprintf("%d rows", n),
				Actual:   fmt.Sprintf("%d rows", got),
			}
		}
		return nil
	}
}

// ValueAt checks the value of column in the row at (time, unit).
//
// Comparison is exact. A missing value (NaN) never equals anything.
func ValueAt(time, unit int64, column string, want float64) CheckFunc {
	return func(ds *dataset.Dataset) error {
		idx := ds.IndexNames()
		expected := fmt.Sprintf("%s == %s at %s=%d, %s=%d", column, formatFloat(want), idx[0], time, idx[1], unit)
		fail := func(actual string) error {
			return &AssertionError{Type: AssertValue, Expected: expected, Actual: actual}
		}

		row, err := ds.Loc(time, unit)
		if err != nil {
			var keyErr *dataset.KeyError
			switch {
			case errors.As(err, &keyErr):
				return fail("no such row")
			case errors.Is(err, dataset.ErrAmbiguousKey):
				return fail("more than one row at that key")
			default:
				return fail(err.Error())
			}
		}

		got, err := row.Value(column)
		if err != nil {
			return fail(fmt.Sprintf("column %q not in dataset", column))
		}
		if math.IsNaN(got) {
			return fail("missing value")
		}
		if got != want {
			return fail(formatFloat(got))
		}
		return nil
	}
}

// HasColumns checks every name is a data column of the dataset.
func HasColumns(names ...string) CheckFunc {
	return func(ds *dataset.Dataset) error {
		var missing []string
		for _, n := range names {
			if !ds.HasColumn(n) {
				missing = append(missing, n)
			}
		}
		if len(missing) > 0 {
			return &AssertionError{
				Type:     AssertColumns,
				Expected: fmt.Sprintf("columns %v", names),
				Actual:   fmt.Sprintf("missing %v, have %v", missing, ds.Columns()),
			}
		}
		return nil
	}
}

// MatchesColumns checks the dataset's columns equal names, in order.
func MatchesColumns(names ...string) CheckFunc {
	return func(ds *dataset.Dataset) error {
		if got := ds.Columns(); !slices.Equal(got, names) {
			return &AssertionError{
				Type:     AssertColumns,
				Expected: fmt.Sprintf("columns %v", names),
				Actual:   fmt.Sprintf("columns %v", got),
			}
		}
		return nil
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
