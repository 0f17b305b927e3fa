// Package harness runs trials against the views query engine.
//
// A trial publishes one queryset, fetches the dataset the engine
// materializes for it, and checks literal values in that dataset. Trials run
// strictly in order and the first failure stops the run: the purpose is a
// binary verdict on the engine, not a report.
//
// # Trial Format
//
// Besides the built-in catalog, trials can be loaded from YAML or CUE files:
//
//	name: baseline
//	description: "Country-month GED and ACLED counts"
//	message: "Baseline data worked!"
//	queryset:
//	  name: mihai_simple_sys_up
//	  loa: country_month
//	  columns:
//	    - name: sb_count_cm
//	      from_table: ged2_cm
//	      from_column: ged_sb_best_count_nokgi
//	    - name: sb_acled_cm
//	      from_table: acled2_cm
//	      from_column: acled_sb_count
//	assertions:
//	  - type: value
//	    at: [501, 60]
//	    column: sb_count_cm
//	    equals: 27
//
// # Assertion Types
//
//   - row_count: the dataset has exactly count rows
//   - value: the row at (time, unit) holds equals in column
//   - columns: the dataset carries every listed column
//
// # Trace
//
// Every run records an ordered trace of publish, fetch, check and message
// events stamped by a logical clock, so the order in which the runner talked
// to the engine can be asserted and compared against golden files.
package harness
