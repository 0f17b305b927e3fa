// Package queryset provides declarative dataset requests for the views query engine.
//
// A Queryset names a dataset at a level of analysis (for example
// country_month) and lists the columns to pull from source tables. Columns
// whose source resolution is finer than the target are collapsed with an
// aggregation operator; everything else is copied directly.
//
// # Building
//
// Querysets are built with a chainable builder that never mutates its
// receiver:
//
//	qs := queryset.New("mihai_simple_sys_up", queryset.CountryMonth).
//	    WithColumn(queryset.NewColumn("sb_count_cm", "ged2_cm", "ged_sb_best_count_nokgi")).
//	    WithColumn(queryset.NewColumn("ged_pgm", "ged2_pgm", "ged_sb_best_sum_nokgi").Aggregate(queryset.Sum))
//
// # Wire Form
//
// The engine receives each column as an operation chain: a rename
// transform followed by a base lookup of table.column whose single argument
// is the aggregation operator ("values" for a direct copy). MarshalCanonical
// renders the queryset as RFC 8785 canonical JSON, and Hash derives a stable
// identity from those bytes.
package queryset
