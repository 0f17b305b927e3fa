package queryset

import (
	"fmt"
	"slices"
)

// LevelOfAnalysis is the spatial/temporal resolution of a dataset.
type LevelOfAnalysis string

// Supported levels of analysis.
const (
	CountryMonth  LevelOfAnalysis = "country_month"
	PriogridMonth LevelOfAnalysis = "priogrid_month"
	CountryYear   LevelOfAnalysis = "country_year"
	PriogridYear  LevelOfAnalysis = "priogrid_year"
)

// Levels lists every supported level of analysis.
var Levels = []LevelOfAnalysis{CountryMonth, PriogridMonth, CountryYear, PriogridYear}

// IndexNames returns the (time, unit) index level names for datasets at this level.
func (l LevelOfAnalysis) IndexNames() ([2]string, error) {
	switch l {
	case CountryMonth:
		return [2]string{"month_id", "country_id"}, nil
	case PriogridMonth:
		return [2]string{"month_id", "priogrid_gid"}, nil
	case CountryYear:
		return [2]string{"year_id", "country_id"}, nil
	case PriogridYear:
		return [2]string{"year_id", "priogrid_gid"}, nil
	default:
		return [2]string{}, fmt.Errorf("unknown level of analysis %q", string(l))
	}
}

// Valid reports whether l is a supported level.
func (l LevelOfAnalysis) Valid() bool {
	return slices.Contains(Levels, l)
}

// Aggregation is the operator used to collapse finer source data into the
// queryset's level of analysis.
type Aggregation string

// Recognized aggregation operators. Values is the implicit direct copy.
const (
	Values Aggregation = "values"
	Sum    Aggregation = "sum"
	Avg    Aggregation = "avg"
	Max    Aggregation = "max"
	Min    Aggregation = "min"
	Count  Aggregation = "count"
	Last   Aggregation = "last"
)

// Aggregations lists every recognized operator.
var Aggregations = []Aggregation{Values, Sum, Avg, Max, Min, Count, Last}

// Column names a target column and where its values come from.
type Column struct {
	// Name is the column name in the materialized dataset.
	Name string `yaml:"name" json:"name"`

	// FromTable is the source table (e.g., "ged2_cm").
	FromTable string `yaml:"from_table" json:"from_table"`

	// FromColumn is the column within FromTable.
	FromColumn string `yaml:"from_column" json:"from_column"`

	// Aggregation is applied when the source is finer than the target level.
	// Empty means Values.
	Aggregation Aggregation `yaml:"aggregation,omitempty" json:"aggregation,omitempty"`
}

// NewColumn creates a column copied directly from fromTable.fromColumn.
func NewColumn(name, fromTable, fromColumn string) Column {
	return Column{
		Name:       name,
		FromTable:  fromTable,
		FromColumn: fromColumn,
	}
}

// Aggregate returns a copy of c with the aggregation operator set.
func (c Column) Aggregate(op Aggregation) Column {
	c.Aggregation = op
	return c
}

// Operator returns the effective aggregation operator.
func (c Column) Operator() Aggregation {
	if c.Aggregation == "" {
		return Values
	}
	return c.Aggregation
}

// Operation is one step of a column's operation chain in the wire form.
type Operation struct {
	Namespace string
	Name      string
	Arguments []string
}

// Operations returns the column as the engine's operation chain:
// a rename to the target name, then the base lookup.
func (c Column) Operations() []Operation {
	return []Operation{
		{Namespace: "trf", Name: "util.rename", Arguments: []string{c.Name}},
		{Namespace: "base", Name: c.FromTable + "." + c.FromColumn, Arguments: []string{string(c.Operator())}},
	}
}

// Queryset is a named, declarative request for a dataset.
//
// Querysets are values: WithColumn and Describe return new querysets and
// leave the receiver untouched, so a queryset shared between trials is
// never modified after construction.
type Queryset struct {
	// Name identifies the queryset in the engine. Publishing a queryset
	// with an existing name replaces the previous definition.
	Name string `yaml:"name" json:"name"`

	// LevelOfAnalysis is the target resolution.
	LevelOfAnalysis LevelOfAnalysis `yaml:"loa" json:"loa"`

	// Description is free text stored alongside the definition.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Themes are optional tags used by the engine to group querysets.
	Themes []string `yaml:"themes,omitempty" json:"themes,omitempty"`

	// Columns in dataset order.
	Columns []Column `yaml:"columns" json:"columns"`
}

// New creates an empty queryset.
func New(name string, loa LevelOfAnalysis) *Queryset {
	return &Queryset{
		Name:            name,
		LevelOfAnalysis: loa,
	}
}

// WithColumn returns a new queryset with c appended.
func (q *Queryset) WithColumn(c Column) *Queryset {
	next := q.clone()
	next.Columns = append(next.Columns, c)
	return next
}

// Describe returns a new queryset with the description set.
func (q *Queryset) Describe(description string) *Queryset {
	next := q.clone()
	next.Description = description
	return next
}

// WithThemes returns a new queryset with the given themes appended.
func (q *Queryset) WithThemes(themes ...string) *Queryset {
	next := q.clone()
	next.Themes = append(next.Themes, themes...)
	return next
}

// ColumnNames returns the target column names in order.
func (q *Queryset) ColumnNames() []string {
	names := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		names[i] = c.Name
	}
	return names
}

// Operations returns the wire form of every column, in column order.
func (q *Queryset) Operations() [][]Operation {
	chains := make([][]Operation, len(q.Columns))
	for i, c := range q.Columns {
		chains[i] = c.Operations()
	}
	return chains
}

func (q *Queryset) clone() *Queryset {
	next := *q
	next.Columns = slices.Clone(q.Columns)
	next.Themes = slices.Clone(q.Themes)
	return &next
}
