// Package schedule defines lock schedules and computes their next occurrence.
//
// The package is pure: it owns the Schedule value, the Anchor sum type,
// validation, the next-occurrence calculator and the flat record codec used
// by persistence. Timers and concurrency live in internal/scheduler.
package schedule
