package queryset

import (
	"fmt"
	"regexp"
	"slices"
)

// validIdentifier matches names the engine accepts for querysets, tables and columns.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError reports a malformed queryset definition.
type ValidationError struct {
	Queryset string // Queryset name (may be empty)
	Field    string // Offending field, e.g. "columns[1].from_table"
	Message  string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Queryset == "" {
		return fmt.Sprintf("invalid queryset: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid queryset %q: %s: %s", e.Queryset, e.Field, e.Message)
}

// Validate checks the definition before it is published.
//
// A queryset needs a name, a supported level, and at least one column.
// Column names must be unique, every column needs a source table and
// column, and the aggregation operator must be recognized.
func (q *Queryset) Validate() error {
	fail := func(field, format string, args ...any) error {
		return &ValidationError{Queryset: q.Name, Field: field, Message: fmt.Sprintf(format, args...)}
	}

	if q.Name == "" {
		return fail("name", "name is required")
	}
	if !validIdentifier.MatchString(q.Name) {
		return fail("name", "must match %s", validIdentifier.String())
	}
	if !q.LevelOfAnalysis.Valid() {
		return fail("loa", "unknown level of analysis %q (want one of %v)", string(q.LevelOfAnalysis), Levels)
	}
	if len(q.Columns) == 0 {
		return fail("columns", "at least one column is required")
	}

	seen := make(map[string]int, len(q.Columns))
	for i, c := range q.Columns {
		field := fmt.Sprintf("columns[%d]", i)
		if c.Name == "" {
			return fail(field+".name", "name is required")
		}
		if !validIdentifier.MatchString(c.Name) {
			return fail(field+".name", "%q must match %s", c.Name, validIdentifier.String())
		}
		if prev, ok := seen[c.Name]; ok {
			return fail(field+".name", "duplicate column name %q (first used by columns[%d])", c.Name, prev)
		}
		seen[c.Name] = i

		if !validIdentifier.MatchString(c.FromTable) {
			return fail(field+".from_table", "%q must match %s", c.FromTable, validIdentifier.String())
		}
		if !validIdentifier.MatchString(c.FromColumn) {
			return fail(field+".from_column", "%q must match %s", c.FromColumn, validIdentifier.String())
		}
		if !slices.Contains(Aggregations, c.Operator()) {
			return fail(field+".aggregation", "unknown aggregation %q (want one of %v)", string(c.Aggregation), Aggregations)
		}
	}

	return nil
}
