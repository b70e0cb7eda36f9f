// Package storage persists the schedule table.
//
// Drivers:
//   - file: a single JSON document keyed by schedule id, rewritten atomically
//   - sqlite: one row per schedule (modernc.org/sqlite, no cgo)
//   - memory: process-local, for tests and dry runs
//
// Load skips malformed records with a warning so one bad entry never hides
// the rest of the table.
package storage
