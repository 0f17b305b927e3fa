// Package store is the SQLite run ledger.
//
// Every run of the trial runner is recorded with one row per trial it
// started. The ledger answers two questions: what happened in past runs,
// and whether the engine still returns the same number of rows for a
// queryset definition it has answered before. Definitions are identified by
// their content hash, not their name, because trials reuse names with
// different definitions.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: trial rows are removed with their run
//
// Listings are ordered deterministically: runs by start time then id,
// trials by their position in the run.
package store
